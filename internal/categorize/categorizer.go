// Package categorize rewrites job descriptions into titled sections with a chat model,
// for the aspect parser's header scan.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/aspect"
)

const systemPrompt = "You are an expert recruiter. You split job descriptions into clearly titled sections " +
	"without inventing requirements that are not in the text."

// Config holds settings for an OpenAI-compatible chat endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// LLMCategorizer implements aspect.TextCategorizer with a langchaingo chat model.
type LLMCategorizer struct {
	client      llms.Model
	temperature float64
	logger      *zap.Logger
}

var _ aspect.TextCategorizer = (*LLMCategorizer)(nil)

// Option configures an LLMCategorizer.
type Option func(*LLMCategorizer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *LLMCategorizer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTemperature sets the sampling temperature (0 by default).
func WithTemperature(t float64) Option {
	return func(c *LLMCategorizer) {
		c.temperature = t
	}
}

// New creates a categorizer talking to an OpenAI-compatible chat API.
func New(cfg Config, opts ...Option) (*LLMCategorizer, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}
	clientOpts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, openai.WithModel(cfg.Model))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return NewWithModel(client, append([]Option{WithTemperature(cfg.Temperature)}, opts...)...), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, opts ...Option) *LLMCategorizer {
	c := &LLMCategorizer{client: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize asks the model to rewrite text under one numbered heading per section.
func (c *LLMCategorizer) Categorize(ctx context.Context, text string, sections []string) (string, error) {
	messages := []llms.MessageContent{
		{Role: schema.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(systemPrompt)}},
		{Role: schema.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(BuildPrompt(text, sections))}},
	}
	resp, err := c.client.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", errors.New("model returned no content")
	}
	c.logger.Debug("categorized text", zap.Int("input_len", len(text)), zap.Int("output_len", len(resp.Choices[0].Content)))
	return resp.Choices[0].Content, nil
}

// BuildPrompt lists the requested sections in order and appends the text.
func BuildPrompt(text string, sections []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following job description and categorize its requirements into these sections:\n")
	for i, s := range sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nStart each section with its title on its own line, exactly as written above. ")
	b.WriteString("Leave a section empty when the description says nothing about it.\n\n")
	b.WriteString("Job description:\n")
	b.WriteString(text)
	return b.String()
}

// Disabled is a categorizer for deployments without a chat model; every query falls back to raw text.
type Disabled struct{}

// Categorize always returns aspect.ErrCategorizerUnavailable.
func (Disabled) Categorize(context.Context, string, []string) (string, error) {
	return "", aspect.ErrCategorizerUnavailable
}
