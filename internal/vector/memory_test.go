package vector

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/saiyo/internal/aspect"
)

func TestMemoryIndex_InsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		pos, err := idx.Insert(ctx, id, aspect.Skills, vecs[i])
		if err != nil {
			t.Fatal(err)
		}
		if pos != i {
			t.Errorf("position for %s = %d, want %d", id, pos, i)
		}
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Identity != "a" || results[1].Identity != "b" {
		t.Errorf("order = %s, %s; want a, b", results[0].Identity, results[1].Identity)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("self similarity = %v, want 1", results[0].Score)
	}
}

func TestMemoryIndex_InsertNormalizes(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if _, err := idx.Insert(ctx, "a", aspect.Skills, []float32{3, 4}); err != nil {
		t.Fatal(err)
	}
	res, _ := idx.Search(ctx, []float32{0.6, 0.8}, 1)
	if len(res) != 1 || math.Abs(res[0].Score-1) > 1e-6 {
		t.Fatalf("expected unit similarity, got %+v", res)
	}
}

func TestMemoryIndex_KGreaterThanSizeReturnsAllOrdered(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	inputs := [][]float32{{0, 1}, {1, 0}, {1, 1}, {-1, 0}, {1, 0.2}}
	for i, v := range inputs {
		if _, err := idx.Insert(ctx, string(rune('a'+i)), aspect.Skills, v); err != nil {
			t.Fatal(err)
		}
	}
	res, err := idx.Search(ctx, Normalize([]float32{1, 0.1}), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(res), len(inputs))
	}
	seen := map[int]bool{}
	for i, r := range res {
		if seen[r.Position] {
			t.Errorf("position %d returned twice", r.Position)
		}
		seen[r.Position] = true
		if i > 0 && r.Score > res[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v > %v", i, r.Score, res[i-1].Score)
		}
	}
}

func TestMemoryIndex_TiesBreakByPosition(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	for _, id := range []string{"z", "y", "x"} {
		if _, err := idx.Insert(ctx, id, aspect.Skills, []float32{1, 0}); err != nil {
			t.Fatal(err)
		}
	}
	res, _ := idx.Search(ctx, []float32{1, 0}, 3)
	for i, want := range []string{"z", "y", "x"} {
		if res[i].Identity != want || res[i].Position != i {
			t.Errorf("res[%d] = %s@%d, want %s@%d", i, res[i].Identity, res[i].Position, want, i)
		}
	}
}

func TestMemoryIndex_WithAspect(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_, _ = idx.Insert(ctx, "a", aspect.Location, []float32{1, 0})
	_, _ = idx.Insert(ctx, "b", aspect.Skills, []float32{0.5, 0.5})

	res, _ := idx.Search(ctx, []float32{1, 0}, 10, WithAspect(aspect.Skills))
	if len(res) != 1 || res[0].Identity != "b" || res[0].Aspect != aspect.Skills {
		t.Fatalf("scoped search = %+v, want only b/skills", res)
	}
	res, _ = idx.Search(ctx, []float32{1, 0}, 10)
	if len(res) != 2 || res[0].Identity != "a" {
		t.Fatalf("unscoped search = %+v", res)
	}
}

func TestMemoryIndex_ZeroVector(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if _, err := idx.Insert(ctx, "zero", aspect.Skills, []float32{0, 0}); err != nil {
		t.Fatal(err)
	}
	res, err := idx.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Score != 0 || math.IsNaN(res[0].Score) {
		t.Fatalf("zero vector score = %+v, want 0", res)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if _, err := idx.Insert(ctx, "a", aspect.Skills, []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Insert err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := idx.Replace(ctx, "a", []AspectVector{{Aspect: aspect.Skills, Vector: []float32{1}}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Replace err = %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("failed writes changed size to %d", idx.Size())
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_, _ = idx.Insert(ctx, "x", aspect.Skills, []float32{1, 0})
	_, _ = idx.Insert(ctx, "x", aspect.Location, []float32{1, 0})
	_, _ = idx.Insert(ctx, "y", aspect.Skills, []float32{0, 1})

	n, err := idx.Remove(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
	stats := idx.Stats()
	if stats.Tombstoned != 2 || stats.Live != 1 || stats.Candidates != 1 {
		t.Errorf("stats = %+v", stats)
	}
	res, _ := idx.Search(ctx, []float32{1, 0}, 10)
	for _, r := range res {
		if r.Identity == "x" {
			t.Errorf("tombstoned entry returned: %+v", r)
		}
	}
	if n, _ := idx.Remove(ctx, "missing"); n != 0 {
		t.Errorf("removing unknown identity removed %d", n)
	}

	// Positions are never reused.
	pos, _ := idx.Insert(ctx, "z", aspect.Skills, []float32{1, 1})
	if pos != 3 {
		t.Errorf("next position = %d, want 3", pos)
	}
}

func TestMemoryIndex_ReplaceIsIdempotent(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	set := []AspectVector{
		{Aspect: aspect.Skills, Vector: []float32{1, 0}},
		{Aspect: aspect.Experience, Vector: []float32{0, 1}},
	}
	first, err := idx.Replace(ctx, "a", set)
	if err != nil {
		t.Fatal(err)
	}
	second, err := idx.Replace(ctx, "a", set)
	if err != nil {
		t.Fatal(err)
	}
	if first[0] == second[0] {
		t.Errorf("replace reused position %d", first[0])
	}
	if idx.Size() != 2 {
		t.Errorf("Size = %d after replace, want 2", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{1, 0}, 10, WithAspect(aspect.Skills))
	if len(res) != 1 {
		t.Errorf("expected a single live skills entry, got %d", len(res))
	}
	if got := idx.Identities(); len(got) != 1 || got[0] != "a" {
		t.Errorf("Identities = %v", got)
	}
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_, _ = idx.Insert(ctx, "a", aspect.Skills, []float32{1, 0})
	idx.Reset()
	if idx.Size() != 0 || idx.Stats().Tombstoned != 0 {
		t.Errorf("reset left %+v", idx.Stats())
	}
	if pos, _ := idx.Insert(ctx, "a", aspect.Skills, []float32{1, 0}); pos != 0 {
		t.Errorf("position after reset = %d, want 0", pos)
	}
}

func TestMemoryIndex_ConcurrentReadersAndWriters(t *testing.T) {
	idx, _ := NewMemoryIndex(4)
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := string(rune('a' + w))
				_, _ = idx.Replace(ctx, id, []AspectVector{
					{Aspect: aspect.Skills, Vector: []float32{float32(i), 1, 0, 0}},
					{Aspect: aspect.Location, Vector: []float32{0, 0, 1, float32(w)}},
				})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 100, WithAspect(aspect.Skills))
				if err != nil {
					t.Error(err)
					return
				}
				seen := map[string]bool{}
				for _, hit := range res {
					if seen[hit.Identity] {
						t.Errorf("identity %s has two live skills entries", hit.Identity)
					}
					seen[hit.Identity] = true
				}
			}
		}()
	}
	wg.Wait()
	if idx.Size() != 8 {
		t.Errorf("Size = %d, want 8", idx.Size())
	}
}
