package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/saiyo/internal/aspect"
)

type entry struct {
	identity string
	aspect   aspect.Aspect
	vector   []float32
	dead     bool
}

// MemoryIndex is an in-memory Index using brute-force inner product search.
// Removed entries are tombstoned in place; Save writes only live entries.
type MemoryIndex struct {
	dimensions int
	entries    []entry
	live       map[string][]int // identity -> live positions
	tombstoned int
	mu         sync.RWMutex
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		live:       make(map[string][]int),
	}, nil
}

// Dimensions returns the vector length the index accepts.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Insert normalizes vec and appends it, returning its position.
func (m *MemoryIndex) Insert(ctx context.Context, identity string, a aspect.Aspect, vec []float32) (int, error) {
	if err := m.check(vec); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(identity, a, vec), nil
}

// Replace tombstones identity's live entries and appends vectors under one lock,
// so a concurrent search sees either the old set or the new one.
func (m *MemoryIndex) Replace(ctx context.Context, identity string, vectors []AspectVector) ([]int, error) {
	for _, av := range vectors {
		if err := m.check(av.Vector); err != nil {
			return nil, fmt.Errorf("aspect %s: %w", av.Aspect, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(identity)
	positions := make([]int, len(vectors))
	for i, av := range vectors {
		positions[i] = m.appendLocked(identity, av.Aspect, av.Vector)
	}
	return positions, nil
}

// Remove tombstones identity's live entries.
func (m *MemoryIndex) Remove(ctx context.Context, identity string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(identity), nil
}

func (m *MemoryIndex) check(vec []float32) error {
	if len(vec) != m.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), m.dimensions)
	}
	return nil
}

func (m *MemoryIndex) appendLocked(identity string, a aspect.Aspect, vec []float32) int {
	pos := len(m.entries)
	m.entries = append(m.entries, entry{identity: identity, aspect: a, vector: Normalize(vec)})
	m.live[identity] = append(m.live[identity], pos)
	return pos
}

func (m *MemoryIndex) removeLocked(identity string) int {
	positions := m.live[identity]
	for _, pos := range positions {
		m.entries[pos].dead = true
		m.entries[pos].vector = nil
	}
	m.tombstoned += len(positions)
	delete(m.live, identity)
	return len(positions)
}

// Search returns the top-k live entries by inner product with query, which the caller normalizes.
// Ties keep ascending position order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, opts ...SearchOption) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query %w: got %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	scored := make([]*Result, 0, len(m.entries)-m.tombstoned)
	for pos, e := range m.entries {
		if e.dead || (o.aspect != "" && e.aspect != o.aspect) {
			continue
		}
		scored = append(scored, &Result{
			Position: pos,
			Identity: e.identity,
			Aspect:   e.aspect,
			Score:    InnerProduct(query, e.vector),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Reset drops every entry.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *MemoryIndex) resetLocked() {
	m.entries = nil
	m.live = make(map[string][]int)
	m.tombstoned = 0
}

// Size returns the number of live entries.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries) - m.tombstoned
}

// Stats returns candidate, live and tombstoned entry counts.
func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Candidates: len(m.live),
		Live:       len(m.entries) - m.tombstoned,
		Tombstoned: m.tombstoned,
		Dimensions: m.dimensions,
	}
}

// Identities returns the identities that have live entries, sorted.
func (m *MemoryIndex) Identities() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.live))
	for id := range m.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
