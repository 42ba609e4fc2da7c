package models

// CandidateResult is one ranked candidate with the per-aspect evidence behind its score.
type CandidateResult struct {
	Rank        int     `json:"rank"`
	Identity    string  `json:"identity"`
	Name        string  `json:"name"`
	CurrentRole string  `json:"current_role,omitempty"`
	Company     string  `json:"company,omitempty"`
	TotalScore  float64 `json:"total_score"`
	// AspectScores holds weighted similarity per aspect; aspects without a hit are absent.
	AspectScores map[string]float64 `json:"aspect_scores"`
	// AspectQueries holds the decomposed query text searched for each aspect.
	AspectQueries map[string]string `json:"aspect_queries"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	RequestID      string             `json:"request_id"`
	Query          string             `json:"query"`
	Results        []*CandidateResult `json:"results"`
	Weights        map[string]float64 `json:"weights"`
	WeightsVersion string             `json:"weights_version"`
	MatchMode      string             `json:"match_mode"`
	// Dropped counts ranked candidates skipped because the profile store had no record.
	Dropped   int   `json:"dropped,omitempty"`
	QueryTime int64 `json:"query_time_ms"`
}
