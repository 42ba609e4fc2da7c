package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		RequestID:      "req-1",
		Query:          "senior Go engineer",
		WeightsVersion: "v1",
		MatchMode:      "scoped",
		QueryTime:      42,
		Results: []*models.CandidateResult{
			{
				Rank:        1,
				Identity:    "alice@example.com",
				Name:        "Alice",
				CurrentRole: "Staff Engineer",
				Company:     "Acme",
				TotalScore:  0.6,
				AspectScores: map[string]float64{
					"skills":     0.35,
					"experience": 0.25,
				},
				AspectQueries: map[string]string{
					"skills":     "Go, Kubernetes",
					"experience": "senior",
				},
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.QueryTime != response.QueryTime {
		t.Errorf("decoded query=%q query_time=%d", decoded.Query, decoded.QueryTime)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Identity != "alice@example.com" {
		t.Errorf("decoded results: got %+v", decoded.Results)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	response := sampleResponse()
	response.Dropped = 2
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 1 candidates in 42ms",
		"2 ranked candidates had no stored profile",
		"#1  Alice <alice@example.com>  score 0.6000",
		"Staff Engineer at Acme",
		"skills      0.3500  Go, Kubernetes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "skills") > strings.Index(out, "experience") {
		t.Error("aspects should be listed by score, highest first")
	}
}

func TestWriteStatus(t *testing.T) {
	disk := int64(2048)
	s := &models.Status{
		Candidates:     3,
		LiveEntries:    15,
		Profiles:       3,
		DiskUsageBytes: &disk,
		WeightsVersion: "v2",
		MatchMode:      "unscoped",
		Dimensions:     384,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"candidates:          3", "live_entries:        15", "disk_usage_bytes:    2048", "weights_version:     v2"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, s, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"match_mode": "unscoped"`) {
		t.Errorf("json status: %s", buf.String())
	}
}

func TestWriteReport(t *testing.T) {
	r := &indexer.BootstrapReport{
		Indexed:  2,
		Live:     10,
		Duration: 1500 * time.Millisecond,
		Failed:   []indexer.BootstrapFailure{{Identity: "bad@example.com", Error: "name is required"}},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, r, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "indexed 2 profiles in 1.5s, 10 live entries") {
		t.Errorf("report: %s", out)
	}
	if !strings.Contains(out, "failed bad@example.com: name is required") {
		t.Errorf("report failures: %s", out)
	}
}

func TestWriteDirectoryHits(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDirectoryHits(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no candidates found") {
		t.Errorf("empty hits: %q", buf.String())
	}

	buf.Reset()
	if err := WriteDirectoryHits(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty json hits: %q", buf.String())
	}

	buf.Reset()
	hits := []*keyword.Hit{{Identity: "bob@example.com", Name: "Bob", CurrentRole: "Data Engineer"}}
	if err := WriteDirectoryHits(&buf, hits, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Bob (Data Engineer)") {
		t.Errorf("hits: %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
