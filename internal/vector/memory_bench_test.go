package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/saiyo/internal/aspect"
)

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const dims = 384
	idx, _ := NewMemoryIndex(dims)
	ctx := context.Background()
	aspects := aspect.V1().Aspects()
	for i := 0; i < 1000; i++ {
		vec := make([]float32, dims)
		vec[0] = float32(i) / 1000
		vec[1+i%(dims-1)] = 1
		_, _ = idx.Insert(ctx, fmt.Sprintf("c%d@example.com", i%200), aspects[i%len(aspects)], Normalize(vec))
	}
	query := make([]float32, dims)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10, WithAspect(aspect.Skills))
	}
}
