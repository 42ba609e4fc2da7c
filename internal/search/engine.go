// Package search ranks candidates against a free-text job description by decomposing it into
// aspects, searching each aspect separately, and combining the weighted evidence.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/aspect"
	"github.com/hyperjump/saiyo/internal/metrics"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/internal/vector"
)

var (
	ErrInvalidQuery      = errors.New("invalid query")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrNoMatches         = errors.New("no matching candidates")
	ErrEmbeddingProvider = errors.New("embedding provider failed")
	ErrProfileStore      = errors.New("profile store failed")
)

// MatchMode decides which index entries may contribute to an aspect's score.
type MatchMode string

const (
	// MatchScoped only lets entries tagged with the query aspect contribute to it.
	MatchScoped MatchMode = "scoped"
	// MatchUnscoped lets any entry contribute to the query aspect, whatever its tag.
	MatchUnscoped MatchMode = "unscoped"
)

// ParseMatchMode maps a config value to a MatchMode. Empty means scoped.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case "", MatchScoped:
		return MatchScoped, nil
	case MatchUnscoped:
		return MatchUnscoped, nil
	}
	return "", fmt.Errorf("unknown match mode %q", s)
}

// AspectParser decomposes a query into per-aspect texts for its weight table.
type AspectParser interface {
	Parse(ctx context.Context, raw string) map[aspect.Aspect]string
	Table() aspect.WeightTable
}

// QueryEmbedder embeds aspect texts. embedding.Provider implements it.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine runs multi-aspect candidate search.
type Engine struct {
	index    vector.Index
	parser   AspectParser
	embedder QueryEmbedder
	store    storage.ProfileStore
	mode     MatchMode
	defaultK int
	maxK     int
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatchMode sets the match mode.
func WithMatchMode(m MatchMode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithLimits sets the k used when a request leaves it unset, and the largest k accepted.
func WithLimits(defaultK, maxK int) Option {
	return func(e *Engine) {
		if defaultK > 0 {
			e.defaultK = defaultK
		}
		if maxK > 0 {
			e.maxK = maxK
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(index vector.Index, parser AspectParser, embedder QueryEmbedder, store storage.ProfileStore, opts ...Option) *Engine {
	e := &Engine{
		index:    index,
		parser:   parser,
		embedder: embedder,
		store:    store,
		mode:     MatchScoped,
		defaultK: 10,
		maxK:     100,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MatchMode returns the configured match mode.
func (e *Engine) MatchMode() MatchMode {
	return e.mode
}

// Table returns the active weight table.
func (e *Engine) Table() aspect.WeightTable {
	return e.parser.Table()
}

// Search returns up to req.K candidates ranked by weighted aspect similarity.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	resp, err := e.search(ctx, req)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchRequestsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func (e *Engine) search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request", ErrInvalidQuery)
	}
	if err := req.Validate(e.defaultK, e.maxK); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if e.index.Size() == 0 {
		return nil, ErrEmptyIndex
	}

	requestID := uuid.NewString()
	logger := e.logger.With(zap.String("request_id", requestID))
	table := e.parser.Table()
	order := table.Aspects()
	texts := e.parser.Parse(ctx, req.Query)

	board := NewScoreboard()
	for _, a := range order {
		text := texts[a]
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				logger.Debug("search canceled", zap.String("stage", "embed"), zap.String("aspect", string(a)))
				return nil, ctxErr
			}
			logger.Error("aspect embedding failed",
				zap.String("stage", "embed"), zap.String("aspect", string(a)), zap.Error(err))
			return nil, fmt.Errorf("%w: aspect %s: %w", ErrEmbeddingProvider, a, err)
		}
		var opts []vector.SearchOption
		if e.mode == MatchScoped {
			opts = append(opts, vector.WithAspect(a))
		}
		hits, err := e.index.Search(ctx, vector.Normalize(vec), req.K, opts...)
		if err != nil {
			return nil, fmt.Errorf("search aspect %s: %w", a, err)
		}
		weight := table.Weight(a)
		for _, h := range hits {
			board.Add(h.Identity, a, h.Score*weight)
		}
		logger.Debug("aspect searched",
			zap.String("stage", "search"), zap.String("aspect", string(a)), zap.Int("hits", len(hits)))
	}
	if board.Len() == 0 {
		return nil, ErrNoMatches
	}

	ranked := board.Rank(order)
	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}

	resp := &models.SearchResponse{
		RequestID:      requestID,
		Query:          req.Query,
		Results:        make([]*models.CandidateResult, 0, len(ranked)),
		Weights:        make(map[string]float64, len(order)),
		WeightsVersion: table.Version,
		MatchMode:      string(e.mode),
	}
	for _, w := range table.Weights {
		resp.Weights[string(w.Aspect)] = w.Weight
	}
	queries := make(map[string]string, len(order))
	for _, a := range order {
		queries[string(a)] = texts[a]
	}

	for _, c := range ranked {
		sum, err := e.store.GetProfileSummary(ctx, c.Identity)
		if errors.Is(err, storage.ErrProfileNotFound) {
			metrics.ProfileResolutionMissesTotal.Inc()
			logger.Warn("ranked candidate has no profile, skipping",
				zap.String("stage", "resolve"), zap.String("identity", c.Identity))
			resp.Dropped++
			continue
		}
		if err != nil {
			logger.Error("profile resolution failed",
				zap.String("stage", "resolve"), zap.String("identity", c.Identity), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrProfileStore, err)
		}
		scores := make(map[string]float64, len(c.Aspects))
		for a, s := range c.Aspects {
			scores[string(a)] = s
		}
		resp.Results = append(resp.Results, &models.CandidateResult{
			Rank:          len(resp.Results) + 1,
			Identity:      c.Identity,
			Name:          sum.Name,
			CurrentRole:   sum.CurrentRole,
			Company:       sum.Company,
			TotalScore:    c.Total,
			AspectScores:  scores,
			AspectQueries: queries,
		})
	}
	return resp, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, ErrNoMatches):
		return "no_matches"
	case errors.Is(err, ErrEmbeddingProvider):
		return "embedding_error"
	case errors.Is(err, ErrProfileStore):
		return "store_error"
	}
	return "error"
}
