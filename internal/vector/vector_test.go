package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/starford/noteintel/internal/models"
)

func TestHashEmbedder_DeterministicAndNormalised(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "Graph theory and link analysis")
	require.NoError(t, err)
	b, _ := e.Embed(context.Background(), "graph THEORY and link analysis")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, floats.Norm(toFloat64(a), 2), 1e-5)

	zero, _ := e.Embed(context.Background(), "")
	assert.Equal(t, 0.0, floats.Norm(toFloat64(zero), 2))
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "reciprocal rank fusion search")
	near, _ := e.Embed(ctx, "rank fusion for hybrid search")
	far, _ := e.Embed(ctx, "sourdough bread recipe")
	assert.Greater(t, Cosine(toFloat64(q), toFloat64(near)), Cosine(toFloat64(q), toFloat64(far)))
}

func TestCosine_Clamped(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{-1, 0}))
	assert.InDelta(t, 1.0, Cosine([]float64{2, 0}, []float64{1, 0}), 1e-12)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 0}))
}

type stubStore struct {
	vecs []models.NoteVector
	err  error
}

func (s stubStore) NoteVectors(context.Context, *models.NoteFilter) ([]models.NoteVector, error) {
	return s.vecs, s.err
}

func TestIndex_NearestOrdersAndTruncates(t *testing.T) {
	store := stubStore{vecs: []models.NoteVector{
		{Note: models.Note{ID: "b", Title: "B"}, Vector: []float32{1, 0}},
		{Note: models.Note{ID: "a", Title: "A"}, Vector: []float32{1, 0}},
		{Note: models.Note{ID: "c"}, Vector: []float32{0, 1}},
		{Note: models.Note{ID: "odd"}, Vector: []float32{1, 0, 0}},
	}}
	ix := NewIndex(NewHashEmbedder(2), store)

	hits, err := ix.Nearest(context.Background(), []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].NoteID)
	assert.Equal(t, "b", hits[1].NoteID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "A", hits[0].Metadata["title"])
}

func TestIndex_NearestStoreError(t *testing.T) {
	ix := NewIndex(NewHashEmbedder(2), stubStore{err: errors.New("boom")})
	_, err := ix.Nearest(context.Background(), []float32{1, 0}, 5, nil)
	require.Error(t, err)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "nomic", body["model"])
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic", time.Second)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestOllamaEmbedder_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m", time.Second).Embed(context.Background(), "x")
	require.Error(t, err)
}
