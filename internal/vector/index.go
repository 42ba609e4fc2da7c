// Package vector provides the tagged, tombstoning vector index candidates are searched against.
package vector

import (
	"context"

	"github.com/hyperjump/saiyo/internal/aspect"
)

// Index stores L2-normalized vectors tagged by candidate identity and aspect and answers exact
// top-k inner-product queries. Positions are append-only for the lifetime of the process.
type Index interface {
	Insert(ctx context.Context, identity string, a aspect.Aspect, vec []float32) (int, error)
	// Replace tombstones every live entry of identity and appends vectors, atomically.
	Replace(ctx context.Context, identity string, vectors []AspectVector) ([]int, error)
	// Remove tombstones every live entry of identity and reports how many there were.
	Remove(ctx context.Context, identity string) (int, error)
	Search(ctx context.Context, query []float32, k int, opts ...SearchOption) ([]*Result, error)
	Reset()
	Save(path string) error
	Load(path string) error
	// Size returns the number of live entries.
	Size() int
	Stats() Stats
	Dimensions() int
	Close() error
}

// AspectVector pairs an aspect with its embedding.
type AspectVector struct {
	Aspect aspect.Aspect
	Vector []float32
}

// Result is a single search hit.
type Result struct {
	Position int
	Identity string
	Aspect   aspect.Aspect
	Score    float64 // inner product of unit vectors, in [-1, 1]
}

// Stats describes index occupancy.
type Stats struct {
	Candidates int `json:"candidates"`
	Live       int `json:"live"`
	Tombstoned int `json:"tombstoned"`
	Dimensions int `json:"dimensions"`
}

type searchOptions struct {
	aspect aspect.Aspect
}

// SearchOption narrows a search.
type SearchOption func(*searchOptions)

// WithAspect restricts a search to entries tagged a.
func WithAspect(a aspect.Aspect) SearchOption {
	return func(o *searchOptions) {
		o.aspect = a
	}
}
