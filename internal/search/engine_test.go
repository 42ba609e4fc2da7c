package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/saiyo/internal/aspect"
	"github.com/hyperjump/saiyo/internal/embedding"
	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/internal/vector"
)

const dims = 4

var basis = map[string][]float32{
	"Go":     {1, 0, 0, 0},
	"Python": {0, 1, 0, 0},
	"senior": {0, 0, 1, 0},
	"remote": {0, 0, 0, 1},
}

// lookupEmbedder maps known texts to fixed vectors and everything else to zero.
type lookupEmbedder struct {
	failOn string
	calls  []string
}

func (l *lookupEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	l.calls = append(l.calls, text)
	if l.failOn != "" && text == l.failOn {
		return nil, errors.New("backend down")
	}
	if v, ok := basis[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return make([]float32, dims), nil
}

type fakeParser struct {
	table aspect.WeightTable
	texts map[aspect.Aspect]string
}

func (f *fakeParser) Parse(_ context.Context, _ string) map[aspect.Aspect]string {
	out := make(map[aspect.Aspect]string)
	for _, a := range f.table.Aspects() {
		if t, ok := f.texts[a]; ok {
			out[a] = t
		} else {
			out[a] = aspect.Placeholder
		}
	}
	return out
}

func (f *fakeParser) Table() aspect.WeightTable { return f.table }

type fakeStore struct {
	profiles map[string]*models.ProfileSummary
	err      error
}

func (f *fakeStore) GetProfileSummary(_ context.Context, identity string) (*models.ProfileSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrProfileNotFound, identity)
	}
	return p, nil
}

func storeFor(ids ...string) *fakeStore {
	s := &fakeStore{profiles: make(map[string]*models.ProfileSummary)}
	for _, id := range ids {
		s.profiles[id] = &models.ProfileSummary{Identity: id, Name: "Name " + id, CurrentRole: "Engineer"}
	}
	return s
}

type candidate struct {
	identity string
	vectors  map[aspect.Aspect]string
}

var (
	alice = candidate{"alice@example.com", map[aspect.Aspect]string{
		aspect.Skills: "Go", aspect.Experience: "senior", aspect.Location: "remote",
	}}
	bob = candidate{"bob@example.com", map[aspect.Aspect]string{
		aspect.Skills: "Python", aspect.Experience: "senior", aspect.Location: "remote",
	}}
)

func buildIndex(t *testing.T, cands ...candidate) *vector.MemoryIndex {
	t.Helper()
	idx, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	for _, c := range cands {
		addCandidate(t, idx, c)
	}
	return idx
}

func addCandidate(t *testing.T, idx *vector.MemoryIndex, c candidate) {
	t.Helper()
	var vecs []vector.AspectVector
	for _, a := range aspect.V1().Aspects() {
		name, ok := c.vectors[a]
		if !ok {
			continue
		}
		vecs = append(vecs, vector.AspectVector{Aspect: a, Vector: basis[name]})
	}
	_, err := idx.Replace(context.Background(), c.identity, vecs)
	require.NoError(t, err)
}

func goQuery() *fakeParser {
	return &fakeParser{table: aspect.V1(), texts: map[aspect.Aspect]string{
		aspect.Skills:     "Go",
		aspect.Experience: "senior",
	}}
}

func TestEngine_RanksByWeightedAspects(t *testing.T) {
	idx := buildIndex(t, alice, bob)
	engine := NewEngine(idx, goQuery(), &lookupEmbedder{}, storeFor(alice.identity, bob.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "Senior Go backend engineer"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	top := resp.Results[0]
	assert.Equal(t, alice.identity, top.Identity)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "Name "+alice.identity, top.Name)
	assert.InDelta(t, 0.60, top.TotalScore, 1e-6)
	assert.InDelta(t, 0.35, top.AspectScores["skills"], 1e-6)
	assert.InDelta(t, 0.25, top.AspectScores["experience"], 1e-6)
	assert.Equal(t, "Go", top.AspectQueries["skills"])

	second := resp.Results[1]
	assert.Equal(t, bob.identity, second.Identity)
	assert.Equal(t, 2, second.Rank)
	assert.InDelta(t, 0.25, second.TotalScore, 1e-6)

	assert.Equal(t, "v1", resp.WeightsVersion)
	assert.Equal(t, "scoped", resp.MatchMode)
	assert.InDelta(t, 0.35, resp.Weights["skills"], 1e-9)
	assert.NotEmpty(t, resp.RequestID)
}

func TestEngine_InsertionOrderInvariance(t *testing.T) {
	ctx := context.Background()
	store := storeFor(alice.identity, bob.identity)

	a := NewEngine(buildIndex(t, alice, bob), goQuery(), &lookupEmbedder{}, store)
	b := NewEngine(buildIndex(t, bob, alice), goQuery(), &lookupEmbedder{}, store)

	ra, err := a.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	rb, err := b.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)

	require.Len(t, rb.Results, len(ra.Results))
	for i := range ra.Results {
		assert.Equal(t, ra.Results[i].Identity, rb.Results[i].Identity)
		assert.Equal(t, ra.Results[i].TotalScore, rb.Results[i].TotalScore)
	}
}

func TestEngine_TiesBreakOnIdentity(t *testing.T) {
	twinB := candidate{"b@example.com", alice.vectors}
	twinA := candidate{"a@example.com", alice.vectors}
	engine := NewEngine(buildIndex(t, twinB, twinA), goQuery(), &lookupEmbedder{}, storeFor(twinA.identity, twinB.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a@example.com", resp.Results[0].Identity)
	assert.Equal(t, "b@example.com", resp.Results[1].Identity)
}

func TestEngine_ReindexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, alice, bob)
	engine := NewEngine(idx, goQuery(), &lookupEmbedder{}, storeFor(alice.identity, bob.identity))

	before, err := engine.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	size := idx.Size()

	addCandidate(t, idx, alice)
	addCandidate(t, idx, alice)

	after, err := engine.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, size, idx.Size())
	require.Len(t, after.Results, len(before.Results))
	for i := range before.Results {
		assert.Equal(t, before.Results[i].Identity, after.Results[i].Identity)
		assert.InDelta(t, before.Results[i].TotalScore, after.Results[i].TotalScore, 1e-9)
	}
}

func TestEngine_TruncatesToK(t *testing.T) {
	engine := NewEngine(buildIndex(t, alice, bob), goQuery(), &lookupEmbedder{}, storeFor(alice.identity, bob.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "q", K: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, alice.identity, resp.Results[0].Identity)
}

func TestEngine_InvalidRequests(t *testing.T) {
	engine := NewEngine(buildIndex(t, alice), goQuery(), &lookupEmbedder{}, storeFor(alice.identity), WithLimits(10, 50))

	tests := []struct {
		name string
		req  *models.SearchRequest
	}{
		{"nil", nil},
		{"empty", &models.SearchRequest{Query: ""}},
		{"whitespace", &models.SearchRequest{Query: "  \n\t"}},
		{"negative k", &models.SearchRequest{Query: "go", K: -1}},
		{"k above max", &models.SearchRequest{Query: "go", K: 51}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestEngine_EmptyIndex(t *testing.T) {
	emb := &lookupEmbedder{}
	engine := NewEngine(buildIndex(t), goQuery(), emb, storeFor())

	_, err := engine.Search(context.Background(), &models.SearchRequest{Query: "go"})
	assert.ErrorIs(t, err, ErrEmptyIndex)
	assert.Empty(t, emb.calls, "no embedding should happen for an empty index")
}

func TestEngine_EmbeddingFailureAbortsSearch(t *testing.T) {
	emb := &lookupEmbedder{failOn: "senior"}
	engine := NewEngine(buildIndex(t, alice, bob), goQuery(), emb, storeFor(alice.identity, bob.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrEmbeddingProvider)
	assert.Nil(t, resp)
	// skills then experience; nothing after the failing aspect.
	assert.Equal(t, []string{"Go", "senior"}, emb.calls)
}

func TestEngine_NoMatches(t *testing.T) {
	idx, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	_, err = idx.Insert(context.Background(), alice.identity, aspect.Education, basis["Go"])
	require.NoError(t, err)

	engine := NewEngine(idx, goQuery(), &lookupEmbedder{}, storeFor(alice.identity))
	_, err = engine.Search(context.Background(), &models.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrNoMatches)
}

func TestEngine_UnscopedMode(t *testing.T) {
	// carol lists Go only under experience.
	carol := candidate{"carol@example.com", map[aspect.Aspect]string{aspect.Experience: "Go"}}
	parser := &fakeParser{table: aspect.V1(), texts: map[aspect.Aspect]string{aspect.Skills: "Go"}}
	ctx := context.Background()

	scoped := NewEngine(buildIndex(t, carol), parser, &lookupEmbedder{}, storeFor(carol.identity))
	resp, err := scoped.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	_, hasSkills := resp.Results[0].AspectScores["skills"]
	assert.False(t, hasSkills, "scoped skills search must not see experience entries")

	unscoped := NewEngine(buildIndex(t, carol), parser, &lookupEmbedder{}, storeFor(carol.identity), WithMatchMode(MatchUnscoped))
	resp, err = unscoped.Search(ctx, &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "unscoped", resp.MatchMode)
	assert.InDelta(t, 0.35, resp.Results[0].AspectScores["skills"], 1e-6)
}

func TestEngine_SkipsUnresolvedCandidates(t *testing.T) {
	engine := NewEngine(buildIndex(t, alice, bob), goQuery(), &lookupEmbedder{}, storeFor(bob.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, bob.identity, resp.Results[0].Identity)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 1, resp.Dropped)
}

func TestEngine_ProfileStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("database is locked")}
	engine := NewEngine(buildIndex(t, alice), goQuery(), &lookupEmbedder{}, store)

	_, err := engine.Search(context.Background(), &models.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrProfileStore)
}

func TestEngine_WithRealParserFallback(t *testing.T) {
	// Without a categorizer every aspect searches the raw query text.
	parser := aspect.NewParser(aspect.V1(), nil)
	engine := NewEngine(buildIndex(t, alice, bob), parser, &lookupEmbedder{}, storeFor(alice.identity, bob.identity))

	resp, err := engine.Search(context.Background(), &models.SearchRequest{Query: "Go"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, alice.identity, resp.Results[0].Identity)
	for _, q := range resp.Results[0].AspectQueries {
		assert.Equal(t, "Go", q)
	}
}

func TestEngine_EndToEndScenario(t *testing.T) {
	const mockDims = 256
	ctx := context.Background()
	table := aspect.WeightTable{Version: "lean", Weights: []aspect.Weight{
		{Aspect: aspect.Skills, Weight: 0.6},
		{Aspect: aspect.Experience, Weight: 0.4},
	}}
	require.NoError(t, table.Validate())

	provider, err := embedding.NewProvider(embedding.NewMockEmbedder(mockDims), mockDims, embedding.WithConcurrency(1))
	require.NoError(t, err)
	defer provider.Close()

	idx, err := vector.NewMemoryIndex(mockDims)
	require.NoError(t, err)
	var vecs []vector.AspectVector
	for a, text := range map[aspect.Aspect]string{aspect.Skills: "Python, Go", aspect.Experience: "3 years backend"} {
		v, err := provider.Embed(ctx, text)
		require.NoError(t, err)
		vecs = append(vecs, vector.AspectVector{Aspect: a, Vector: v})
	}
	_, err = idx.Replace(ctx, "dana@example.com", vecs)
	require.NoError(t, err)

	engine := NewEngine(idx, aspect.NewParser(table, nil), provider, storeFor("dana@example.com"))
	resp, err := engine.Search(ctx, &models.SearchRequest{Query: "Looking for a backend engineer skilled in Python"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	got := resp.Results[0]
	assert.Equal(t, "dana@example.com", got.Identity)
	assert.Greater(t, got.TotalScore, 0.0)
	assert.Greater(t, got.AspectScores["skills"], 0.0)
	assert.Greater(t, got.AspectScores["experience"], 0.0)
	assert.Equal(t, "lean", resp.WeightsVersion)
	assert.Equal(t, map[string]float64{"skills": 0.6, "experience": 0.4}, resp.Weights)
}

// cancelingEmbedder cancels the search context on its first call, as a disconnecting client would.
type cancelingEmbedder struct {
	cancel context.CancelFunc
}

func (c *cancelingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestEngine_CanceledContextIsNotProviderFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := NewEngine(buildIndex(t, alice), goQuery(), &cancelingEmbedder{cancel: cancel}, storeFor(alice.identity))

	_, err := engine.Search(ctx, &models.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrEmbeddingProvider)
	assert.Equal(t, "canceled", outcome(err))
}

func TestParseMatchMode(t *testing.T) {
	m, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchScoped, m)

	m, err = ParseMatchMode("unscoped")
	require.NoError(t, err)
	assert.Equal(t, MatchUnscoped, m)

	_, err = ParseMatchMode("fuzzy")
	assert.Error(t, err)
}
