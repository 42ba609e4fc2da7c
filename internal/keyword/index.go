// Package keyword keeps a full-text directory of candidates so recruiters can look people up by
// name, role, company or skill. It is separate from ranking and never feeds the vector index.
package keyword

import (
	"context"

	"github.com/hyperjump/saiyo/internal/profile"
)

// SearchOptions optional parameters for directory search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// Directory defines candidate lookup operations.
type Directory interface {
	Index(ctx context.Context, p *profile.Profile) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, identity string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single directory match with the stored display fields.
type Hit struct {
	Identity    string  `json:"identity"`
	Name        string  `json:"name"`
	CurrentRole string  `json:"current_role,omitempty"`
	Company     string  `json:"company,omitempty"`
	Score       float64 `json:"score"`
}
