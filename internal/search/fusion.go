package search

import (
	"sort"

	"github.com/hyperjump/saiyo/internal/aspect"
)

// CandidateScore holds the weighted evidence for one candidate.
type CandidateScore struct {
	Identity string
	Total    float64
	Aspects  map[aspect.Aspect]float64
}

// Scoreboard keeps, per candidate and aspect, the best weighted score seen.
type Scoreboard struct {
	byIdentity map[string]*CandidateScore
}

// NewScoreboard returns an empty Scoreboard.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{byIdentity: make(map[string]*CandidateScore)}
}

// Add records a weighted score for identity under a, keeping the maximum.
func (s *Scoreboard) Add(identity string, a aspect.Aspect, weighted float64) {
	c, ok := s.byIdentity[identity]
	if !ok {
		c = &CandidateScore{Identity: identity, Aspects: make(map[aspect.Aspect]float64)}
		s.byIdentity[identity] = c
	}
	if prev, seen := c.Aspects[a]; !seen || weighted > prev {
		c.Aspects[a] = weighted
	}
}

// Len returns the number of candidates with at least one score.
func (s *Scoreboard) Len() int {
	return len(s.byIdentity)
}

// Rank sums each candidate's aspect scores in the given order and sorts by total descending,
// then identity ascending.
func (s *Scoreboard) Rank(order []aspect.Aspect) []*CandidateScore {
	ranked := make([]*CandidateScore, 0, len(s.byIdentity))
	for _, c := range s.byIdentity {
		c.Total = 0
		for _, a := range order {
			c.Total += c.Aspects[a]
		}
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Identity < ranked[j].Identity
	})
	return ranked
}
