package vector

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/starford/noteintel/internal/models"
)

// Store supplies stored note embeddings.
type Store interface {
	NoteVectors(ctx context.Context, filter *models.NoteFilter) ([]models.NoteVector, error)
}

// Index answers nearest-neighbour queries by scanning every stored vector.
// Vault-sized corpora stay small enough that an exact scan beats the upkeep
// of an approximate index.
type Index struct {
	embedder Embedder
	store    Store
}

// NewIndex returns an Index embedding queries with e and reading vectors from s.
func NewIndex(e Embedder, s Store) *Index {
	return &Index{embedder: e, store: s}
}

// Embed embeds a query text.
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	return ix.embedder.Embed(ctx, text)
}

// Nearest returns up to n notes ordered by cosine similarity to vec (desc,
// ties by note id). Similarities are clamped to [0,1]; vectors of a
// different dimension are skipped.
func (ix *Index) Nearest(ctx context.Context, vec []float32, n int, filter *models.NoteFilter) ([]models.VectorHit, error) {
	if n <= 0 {
		return nil, nil
	}
	stored, err := ix.store.NoteVectors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("vector: load vectors: %w", err)
	}

	query := toFloat64(vec)
	hits := make([]models.VectorHit, 0, len(stored))
	for _, nv := range stored {
		if len(nv.Vector) != len(query) {
			continue
		}
		hits = append(hits, models.VectorHit{
			NoteID:   nv.Note.ID,
			Score:    Cosine(query, toFloat64(nv.Vector)),
			Metadata: models.NoteMetadata(nv.Note),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NoteID < hits[j].NoteID
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Zero vectors have similarity 0.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	s := floats.Dot(a, b) / (na * nb)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
