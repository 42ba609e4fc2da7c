// Package embedding turns text into fixed-length vectors: raw embedders (OpenAI-compatible, ONNX,
// deterministic mock), a caching decorator, and the total Provider used by search and indexing.
package embedding

import (
	"context"
	"errors"
)

// ErrProvider wraps every failure reported by an embedding backend.
var ErrProvider = errors.New("embedding provider failure")

// Embedder produces vector embeddings for text. Implementations may fail.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Fit returns a copy of vec zero-padded or truncated to dimensions.
func Fit(vec []float32, dimensions int) []float32 {
	out := make([]float32, dimensions)
	copy(out, vec)
	return out
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
