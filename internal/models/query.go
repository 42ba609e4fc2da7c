package models

import (
	"fmt"
	"strings"
)

// SearchRequest asks for the k best candidates for a free-text query.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query and applies defaultK when K is unset.
// It rejects an empty query, a negative K, and K above maxK (when maxK > 0).
func (r *SearchRequest) Validate(defaultK, maxK int) error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K < 0 {
		return fmt.Errorf("k must be positive, got %d", r.K)
	}
	if r.K == 0 {
		r.K = defaultK
	}
	if maxK > 0 && r.K > maxK {
		return fmt.Errorf("k must be at most %d, got %d", maxK, r.K)
	}
	return nil
}
