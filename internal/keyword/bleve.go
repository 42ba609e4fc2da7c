package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/saiyo/internal/profile"
)

// candidateDoc is what bleve sees of a profile.
type candidateDoc struct {
	Identity    string `json:"identity"`
	Name        string `json:"name"`
	CurrentRole string `json:"current_role"`
	Company     string `json:"company"`
	Skills      string `json:"skills"`
}

type searchField struct {
	name  string
	boost float64
}

// Name matches outrank incidental role or skill matches.
var searchFields = []searchField{
	{name: "name", boost: 2},
	{name: "current_role", boost: 1},
	{name: "company", boost: 1},
	{name: "skills", boost: 1},
}

var storedFields = []string{"name", "current_role", "company"}

// BleveDirectory implements Directory using Bleve.
type BleveDirectory struct {
	index bleve.Index
}

var _ Directory = (*BleveDirectory)(nil)

// NewBleveDirectory creates or opens a Bleve index at path. An empty path keeps the index in memory.
// If you change the index mapping in code, remove the index directory to force a rebuild.
func NewBleveDirectory(path string) (*BleveDirectory, error) {
	im := newMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveDirectory{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveDirectory{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveDirectory{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so "golang" never matches "go".
	textFieldMapping.Analyzer = standard.Name
	for _, f := range searchFields {
		docMapping.AddFieldMappingsAt(f.name, textFieldMapping)
	}
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("identity", keywordFieldMapping)
	im.AddDocumentMapping("candidate", docMapping)
	im.DefaultType = "candidate"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces the directory entry for p.
func (b *BleveDirectory) Index(ctx context.Context, p *profile.Profile) error {
	doc := candidateDoc{
		Identity:    p.Identity,
		Name:        p.Name,
		CurrentRole: p.CurrentRole,
		Company:     p.Company,
		Skills:      strings.Join(p.Skills, ", "),
	}
	return b.index.Index(p.Identity, doc)
}

// Search matches query against name, role, company and skills and returns up to limit hits.
// When opts.FuzzyEnabled is true, each term matches within the configured edit distance.
func (b *BleveDirectory) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	fieldQueries := make([]blevequery.Query, 0, len(searchFields))
	for _, f := range searchFields {
		var q blevequery.Query
		if fuzzyEnabled {
			q = buildFuzzyQuery(query, fuzziness, f.name)
		} else {
			mq := bleve.NewMatchQuery(query)
			mq.SetField(f.name)
			q = mq
		}
		if bq, ok := q.(blevequery.BoostableQuery); ok && f.boost != 1 {
			bq.SetBoost(f.boost)
		}
		fieldQueries = append(fieldQueries, q)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fieldQueries...))
	req.Size = limit
	req.Fields = storedFields
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{
			Identity:    hit.ID,
			Name:        stringField(hit.Fields, "name"),
			CurrentRole: stringField(hit.Fields, "current_role"),
			Company:     stringField(hit.Fields, "company"),
			Score:       hit.Score,
		}
	}
	return out, nil
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term, restricted to field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 1 {
		fq := bleve.NewFuzzyQuery(terms[0])
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		return fq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a candidate from the directory. Deleting an unknown identity is not an error.
func (b *BleveDirectory) Delete(ctx context.Context, identity string) error {
	return b.index.Delete(identity)
}

// DocCount returns the number of candidates in the directory.
func (b *BleveDirectory) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveDirectory) Close() error {
	return b.index.Close()
}
