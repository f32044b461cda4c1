package suggest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/testutil"
)

func newSuggestor(s *testutil.MemStore) *Suggestor {
	return New(s, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func similarity(a, b models.Note) float64 { return newProfile(a).similarity(newProfile(b)) }

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("The Graph and THE graphs of an RRF-based search, by us.")
	assert.Equal(t, map[string]struct{}{
		"graph": {}, "graphs": {}, "rrf": {}, "based": {}, "search": {},
	}, got)
	assert.Empty(t, extractKeywords("a an the of to"))
}

func TestTopKeywords_FrequencyThenAlpha(t *testing.T) {
	assert.Equal(t, []string{"graph", "alpha"}, topKeywords("graph beta alpha graph", 2))
}

func TestTagSimilarity(t *testing.T) {
	tagSim := func(a, b models.Tags) float64 {
		return jaccard(newProfile(models.Note{Tags: a}).tags, newProfile(models.Note{Tags: b}).tags)
	}
	assert.Equal(t, 0.0, tagSim(nil, nil))
	assert.Equal(t, 1.0, tagSim(models.Tags{"Go"}, models.Tags{"go"}))
	assert.InDelta(t, 1.0/3.0, tagSim(models.Tags{"a", "b"}, models.Tags{"b", "c"}), 1e-9)
}

func TestSimilarity_BoundedAndMonotonic(t *testing.T) {
	a := models.Note{Title: "Graph theory", Content: "nodes edges paths", Tags: models.Tags{"math"}}
	assert.InDelta(t, 1.0, similarity(a, a), 1e-9)

	unrelated := models.Note{Title: "Bread", Content: "flour water salt"}
	assert.Equal(t, 0.0, similarity(a, unrelated))

	some := models.Note{Title: "Graph", Content: "nodes"}
	more := models.Note{Title: "Graph", Content: "nodes edges", Tags: models.Tags{"math"}}
	assert.Greater(t, similarity(a, more), similarity(a, some))
	assert.Greater(t, similarity(a, some), 0.0)
}

func TestSimilarityReasons(t *testing.T) {
	a := newProfile(models.Note{Title: "Graph theory", Content: "centrality ranking", Tags: models.Tags{"math"}})
	b := newProfile(models.Note{Title: "Graph search", Content: "ranking fusion", Tags: models.Tags{"Math"}})
	assert.Equal(t, []string{
		"Shared title terms: graph",
		"Shared tags: math",
		"Shared keywords: ranking",
	}, a.reasons(b))
}

func TestSuggestLinksForNote(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNote(models.Note{ID: "src", Title: "Hybrid search", Content: "rank fusion vector keyword", Tags: models.Tags{"search"}, UserID: "u1"})
	s.AddNote(models.Note{ID: "close", Title: "Search ranking", Content: "rank fusion vector", Tags: models.Tags{"search"}, UserID: "u1"})
	s.AddNote(models.Note{ID: "linked", Title: "Hybrid search again", Content: "rank fusion", UserID: "u1"})
	s.AddNote(models.Note{ID: "weak", Title: "Cooking", Content: "vector soup", UserID: "u1"})
	s.AddNote(models.Note{ID: "far", Title: "Bread", Content: "flour", UserID: "u1"})
	s.AddNote(models.Note{ID: "other-user", Title: "Hybrid search", Content: "rank fusion vector keyword", UserID: "u2"})
	s.Link("src", "linked")

	got, err := newSuggestor(s).SuggestLinksForNote(context.Background(), "src", 5, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "close", got[0].NoteID)
	for _, g := range got {
		assert.GreaterOrEqual(t, g.SimilarityScore, 0.1)
		assert.NotEmpty(t, g.SimilarityReasons)
		assert.NotContains(t, []string{"src", "linked", "far", "other-user"}, g.NoteID)
	}
}

func TestSuggestLinksForNote_NeverBelowMinSimilarity(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNote(models.Note{ID: "src", Title: "alpha beta gamma", Content: "delta epsilon"})
	s.AddNote(models.Note{ID: "x", Title: "alpha", Content: "zeta"})
	s.AddNote(models.Note{ID: "y", Title: "alpha beta gamma", Content: "delta epsilon"})

	for _, threshold := range []float64{0, 0.05, 0.2, 0.5, 0.99} {
		got, err := newSuggestor(s).SuggestLinksForNote(context.Background(), "src", 10, threshold)
		require.NoError(t, err)
		for _, g := range got {
			assert.GreaterOrEqual(t, g.SimilarityScore, threshold)
			if g.SimilarityScore > 0 {
				assert.NotEmpty(t, g.SimilarityReasons)
			}
		}
	}

	got, err := newSuggestor(s).SuggestLinksForNote(context.Background(), "src", 1, 0.1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].NoteID)
}

func TestSuggestLinksForNote_Errors(t *testing.T) {
	s := testutil.NewMemStore()
	_, err := newSuggestor(s).SuggestLinksForNote(context.Background(), "missing", 5, 0.1)
	require.ErrorIs(t, err, apperr.ErrLinkSuggestion)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	s.Err = errors.New("store down")
	_, err = newSuggestor(s).SuggestLinksForNote(context.Background(), "any", 5, 0.1)
	require.ErrorIs(t, err, apperr.ErrLinkSuggestion)
}

func TestSuggestByContentKeywords(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNote(models.Note{ID: "self", Title: "Graph centrality", Content: "pagerank betweenness"})
	s.AddNote(models.Note{ID: "pr", Title: "PageRank notes", Content: "damping factor pagerank"})
	s.AddNote(models.Note{ID: "none", Title: "Bread", Content: "flour"})

	got, err := newSuggestor(s).SuggestByContentKeywords(context.Background(), "How does PageRank relate to betweenness?", "self", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pr", got[0].NoteID)
	assert.Equal(t, []string{"pagerank"}, got[0].MatchedKeywords)

	got, err = newSuggestor(s).SuggestByContentKeywords(context.Background(), "the and of", "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
