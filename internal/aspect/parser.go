package aspect

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/metrics"
)

// ErrCategorizerUnavailable is returned by categorizers that cannot run (not configured).
// The parser treats it like any other categorization failure.
var ErrCategorizerUnavailable = errors.New("text categorizer unavailable")

// TextCategorizer rewrites free text into a narrative with one titled section per label.
type TextCategorizer interface {
	Categorize(ctx context.Context, text string, sections []string) (string, error)
}

// Parser decomposes text into one non-empty text per aspect of its weight table.
type Parser struct {
	table       WeightTable
	defs        []Definition
	categorizer TextCategorizer
	logger      *zap.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParserLogger sets the logger used for fallback diagnostics.
func WithParserLogger(l *zap.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a parser for table. A nil categorizer makes every Parse fall back to the raw text.
func NewParser(table WeightTable, categorizer TextCategorizer, opts ...ParserOption) *Parser {
	p := &Parser{
		table:       table,
		defs:        table.Definitions(),
		categorizer: categorizer,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the weight table the parser decomposes into.
func (p *Parser) Table() WeightTable {
	return p.table
}

// Parse never fails: every aspect of the table maps to a non-empty text. When categorization fails
// each aspect gets raw verbatim; aspects absent from the narrative get Placeholder.
func (p *Parser) Parse(ctx context.Context, raw string) map[Aspect]string {
	narrative, err := p.categorize(ctx, raw)
	if err != nil {
		metrics.AspectParseFallbacksTotal.Inc()
		p.logger.Warn("aspect categorization failed, using raw text for every aspect",
			zap.String("stage", "categorize"), zap.Error(err))
		return p.fallback(raw)
	}
	return p.Scan(narrative)
}

func (p *Parser) categorize(ctx context.Context, raw string) (string, error) {
	if p.categorizer == nil {
		return "", ErrCategorizerUnavailable
	}
	labels := make([]string, len(p.table.Weights))
	defsByAspect := make(map[Aspect]Definition, len(p.defs))
	for _, d := range p.defs {
		defsByAspect[d.Aspect] = d
	}
	for i, a := range p.table.Aspects() {
		labels[i] = defsByAspect[a].Label
	}
	return p.categorizer.Categorize(ctx, raw, labels)
}

func (p *Parser) fallback(raw string) map[Aspect]string {
	out := make(map[Aspect]string, len(p.table.Weights))
	for _, a := range p.table.Aspects() {
		out[a] = raw
	}
	return out
}

// Scan runs the header state machine over a categorized narrative.
// A header line switches the current aspect; text after its first colon is kept.
// Other lines are space-joined into the current aspect. Lines before the first header are dropped.
func (p *Parser) Scan(narrative string) map[Aspect]string {
	acc := make(map[Aspect][]string, len(p.defs))
	var current Aspect
	for _, line := range strings.Split(narrative, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if a, ok := p.header(line); ok {
			current = a
			if _, rest, found := strings.Cut(line, ":"); found {
				if rest = strings.TrimSpace(strings.Trim(rest, "*# ")); rest != "" {
					acc[current] = append(acc[current], rest)
				}
			}
			continue
		}
		if current != "" {
			acc[current] = append(acc[current], line)
		}
	}

	out := make(map[Aspect]string, len(p.table.Weights))
	for _, a := range p.table.Aspects() {
		text := strings.TrimSpace(strings.Join(acc[a], " "))
		if text == "" {
			text = Placeholder
		}
		out[a] = text
	}
	return out
}

func (p *Parser) header(line string) (Aspect, bool) {
	for _, d := range p.defs {
		for _, h := range d.Headers {
			if strings.Contains(line, h) {
				return d.Aspect, true
			}
		}
	}
	return "", false
}
