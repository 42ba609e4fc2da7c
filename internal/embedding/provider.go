package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/metrics"
)

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 30 * time.Second

// Provider turns an Embedder into a total function of fixed dimension: vectors are padded or
// truncated to Dimensions, and backend failures degrade to the zero vector. Embed only errors
// when the caller's context is done, or, in strict mode, when the backend fails.
type Provider struct {
	embedder    Embedder
	dimensions  int
	timeout     time.Duration
	strict      bool
	name        string
	concurrency int
	pool        *ants.Pool
	logger      *zap.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider) error

// WithTimeout bounds each backend call. Zero disables the bound.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
		p.timeout = d
		return nil
	}
}

// WithStrict makes backend failures surface as ErrProvider instead of zero vectors.
func WithStrict(strict bool) ProviderOption {
	return func(p *Provider) error {
		p.strict = strict
		return nil
	}
}

// WithConcurrency sets how many texts EmbedMany embeds at once.
func WithConcurrency(n int) ProviderOption {
	return func(p *Provider) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive")
		}
		p.concurrency = n
		return nil
	}
}

// WithProviderName sets the provider label used in metrics.
func WithProviderName(name string) ProviderOption {
	return func(p *Provider) error {
		p.name = name
		return nil
	}
}

// WithProviderLogger sets the logger.
func WithProviderLogger(l *zap.Logger) ProviderOption {
	return func(p *Provider) error {
		if l != nil {
			p.logger = l
		}
		return nil
	}
}

// NewProvider wraps embedder at the given dimension.
func NewProvider(embedder Embedder, dimensions int, opts ...ProviderOption) (*Provider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	p := &Provider{
		embedder:    embedder,
		dimensions:  dimensions,
		timeout:     DefaultTimeout,
		name:        "default",
		concurrency: 4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.concurrency > 1 {
		pool, err := ants.NewPool(p.concurrency)
		if err != nil {
			return nil, fmt.Errorf("create embedding pool: %w", err)
		}
		p.pool = pool
	}
	return p, nil
}

// Dimensions returns the fixed output dimension.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed returns a vector of length Dimensions for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := p.embedder.Embed(callCtx, text)
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	if err == nil && len(vec) == 0 {
		err = fmt.Errorf("empty embedding: %w", ErrProvider)
	}
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.name, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if p.strict {
			return nil, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		metrics.EmbeddingFallbacksTotal.Inc()
		p.logger.Warn("embedding failed, using zero vector",
			zap.String("stage", "embed"),
			zap.String("provider", p.name),
			zap.Int("text_len", len(text)),
			zap.Error(err))
		return make([]float32, p.dimensions), nil
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(p.name, "success").Inc()
	if len(vec) != p.dimensions {
		p.logger.Debug("reconciling embedding length",
			zap.Int("got", len(vec)), zap.Int("want", p.dimensions))
	}
	return Fit(vec, p.dimensions), nil
}

// EmbedMany embeds texts concurrently on the worker pool and returns vectors in input order.
// The first error, if any, is returned after all calls finish.
func (p *Provider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if p.pool == nil {
		for i, text := range texts {
			vec, err := p.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = vec
		}
		return out, nil
	}

	errs := make([]error, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			out[i], errs[i] = p.Embed(ctx, text)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit embedding task: %w", err)
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close releases the worker pool and closes the backend.
func (p *Provider) Close() error {
	if p.pool != nil {
		p.pool.Release()
	}
	return p.embedder.Close()
}
