package models

// Status describes the running index and its backing stores. It is served at /api/v1/status
// and printed by `saiyo status`.
type Status struct {
	Candidates        int    `json:"candidates"`
	LiveEntries       int    `json:"live_entries"`
	TombstonedEntries int    `json:"tombstoned_entries"`
	Dimensions        int    `json:"dimensions"`
	Profiles          int64  `json:"profiles"`
	DirectoryDocs     uint64 `json:"directory_docs"`
	DiskUsageBytes    *int64 `json:"disk_usage_bytes,omitempty"`
	WeightsVersion    string `json:"weights_version"`
	MatchMode         string `json:"match_mode"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
	IndexPath         string `json:"index_path,omitempty"`
	DatabasePath      string `json:"database_path,omitempty"`
}
