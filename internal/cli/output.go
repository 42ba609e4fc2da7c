// Package cli formats saiyo results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/pkg/utils"
)

// OutputFormat selects text or JSON output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a ranked candidate list.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d candidates in %dms (weights %s, %s match)\n",
		len(response.Results), response.QueryTime, response.WeightsVersion, response.MatchMode)
	if response.Dropped > 0 {
		fmt.Fprintf(w, "%d ranked candidates had no stored profile and were skipped\n", response.Dropped)
	}
	fmt.Fprintln(w)
	for _, r := range response.Results {
		writeCandidate(w, r)
	}
	return nil
}

func writeCandidate(w io.Writer, r *models.CandidateResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "#%d  %s <%s>  score %.4f\n", r.Rank, r.Name, r.Identity, r.TotalScore)
	if role := roleLine(r.CurrentRole, r.Company); role != "" {
		fmt.Fprintf(w, "    %s\n", role)
	}
	for _, a := range sortedKeys(r.AspectScores) {
		fmt.Fprintf(w, "    %-11s %.4f  %s\n", a, r.AspectScores[a], utils.Truncate(r.AspectQueries[a], 60))
	}
	fmt.Fprintln(w)
}

func roleLine(role, company string) string {
	switch {
	case role != "" && company != "":
		return role + " at " + company
	case role != "":
		return role
	}
	return company
}

// sortedKeys orders aspects by score, highest first, then by name.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// WriteStatus writes index and store status.
func WriteStatus(w io.Writer, s *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, s)
	}
	fmt.Fprintf(w, "candidates:          %d\n", s.Candidates)
	fmt.Fprintf(w, "live_entries:        %d\n", s.LiveEntries)
	fmt.Fprintf(w, "tombstoned_entries:  %d\n", s.TombstonedEntries)
	fmt.Fprintf(w, "profiles:            %d\n", s.Profiles)
	fmt.Fprintf(w, "directory_docs:      %d\n", s.DirectoryDocs)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:    %d\n", *s.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "dimensions:          %d\n", s.Dimensions)
	fmt.Fprintf(w, "weights_version:     %s\n", s.WeightsVersion)
	fmt.Fprintf(w, "match_mode:          %s\n", s.MatchMode)
	if s.EmbeddingProvider != "" {
		fmt.Fprintf(w, "embedding_provider:  %s\n", s.EmbeddingProvider)
	}
	if s.IndexPath != "" {
		fmt.Fprintf(w, "index_path:          %s\n", s.IndexPath)
	}
	if s.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:       %s\n", s.DatabasePath)
	}
	return nil
}

// WriteReport writes the outcome of a rebuild or import.
func WriteReport(w io.Writer, r *indexer.BootstrapReport, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, r)
	}
	fmt.Fprintf(w, "indexed %d profiles in %s, %d live entries\n", r.Indexed, r.Duration.Round(1e6), r.Live)
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  failed %s: %s\n", f.Identity, f.Error)
	}
	return nil
}

// WriteDirectoryHits writes candidate directory lookups.
func WriteDirectoryHits(w io.Writer, hits []*keyword.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*keyword.Hit{}
		}
		return WriteJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "no candidates found")
		return nil
	}
	for _, h := range hits {
		line := fmt.Sprintf("%-32s %s", h.Identity, h.Name)
		if role := roleLine(h.CurrentRole, h.Company); role != "" {
			line += " (" + role + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	return nil
}
