package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewEmbeddingCache(2)
	if v, ok, _ := c.Get(ctx, "a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	_ = c.Set(ctx, "a", []float32{1, 2, 3})
	v, ok, err := c.Get(ctx, "a")
	if err != nil || !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v, %v", v, ok, err)
	}
	_ = c.Set(ctx, "b", []float32{4, 5})
	_, _, _ = c.Get(ctx, "a") // a becomes most recent
	_ = c.Set(ctx, "c", []float32{6}) // evicts b
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1, 3.5e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated data")
	}
}

type countingEmbedder struct {
	MockEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.MockEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: *NewMockEmbedder(8)}
	store := NewEmbeddingCache(10)
	ce := NewCachedEmbedder(inner, store, "m1", nil)

	first, err := ce.Embed(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := ce.Embed(ctx, "golang")
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs")
		}
	}

	other := NewCachedEmbedder(inner, store, "m2", nil)
	_, _ = other.Embed(ctx, "golang")
	if inner.calls != 2 {
		t.Errorf("a different model must not share cache entries, calls = %d", inner.calls)
	}
	if ce.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", ce.Dimensions())
	}
}
