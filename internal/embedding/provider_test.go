package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.vec, s.err
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, s, texts)
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }
func (s *stubEmbedder) Close() error    { return nil }

func TestProvider_PadsShortVectors(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{vec: []float32{1, 2}}, 5)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 0, 0, 0}, got)
}

func TestProvider_TruncatesLongVectors(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{vec: []float32{1, 2, 3, 4}}, 2)
	require.NoError(t, err)
	got, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)
}

func TestProvider_FailureYieldsZeroVector(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{err: errors.New("503")}, 3)
	require.NoError(t, err)
	got, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, got)

	p, err = NewProvider(&stubEmbedder{vec: nil}, 3)
	require.NoError(t, err)
	got, err = p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestProvider_StrictSurfacesErrors(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{err: errors.New("503")}, 3, WithStrict(true))
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestProvider_TimeoutDegrades(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{vec: []float32{1}, delay: time.Second}, 2, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)
	start := time.Now()
	got, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestProvider_CallerCancellationIsAnError(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{vec: []float32{1}}, 2)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_EmbedManyKeepsOrder(t *testing.T) {
	p, err := NewProvider(NewMockEmbedder(32), 32, WithConcurrency(3))
	require.NoError(t, err)
	defer p.Close()

	texts := []string{"go", "python", "rust", "java", "kotlin", "scala", "c++"}
	got, err := p.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		want, _ := p.Embed(context.Background(), text)
		assert.Equal(t, want, got[i], "text %q", text)
	}
}

func TestProvider_EmbedManySequential(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{1}}
	p, err := NewProvider(stub, 1, WithConcurrency(1))
	require.NoError(t, err)
	got, err := p.EmbedMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 2, stub.calls.Load())
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(nil, 3)
	assert.Error(t, err)
	_, err = NewProvider(NewMockEmbedder(3), 0)
	assert.Error(t, err)
	_, err = NewProvider(NewMockEmbedder(3), 3, WithConcurrency(0))
	assert.Error(t, err)
	_, err = NewProvider(NewMockEmbedder(3), 3, WithTimeout(-time.Second))
	assert.Error(t, err)
}
