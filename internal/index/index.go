package index

import (
	"context"

	"github.com/starford/noteintel/internal/models"
)

// NoteStore is the full note-store contract consumed by the analysis
// components. Each component declares the narrower subset it uses.
type NoteStore interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	GetLinks(ctx context.Context, from, to string) ([]models.Link, error)
	DeleteLink(ctx context.Context, id string) error
	CountNotes(ctx context.Context) (int, error)
	CountLinks(ctx context.Context) (int, error)
}

// KeywordIndex is full-text relevance search over note content.
type KeywordIndex interface {
	Search(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.KeywordHit, error)
}

// VectorStore holds note embeddings for brute-force nearest-neighbour search.
type VectorStore interface {
	UpsertEmbedding(ctx context.Context, noteID string, vec []float32) error
	NoteVectors(ctx context.Context, filter *models.NoteFilter) ([]models.NoteVector, error)
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ NoteStore    = (*DB)(nil)
	_ KeywordIndex = (*DB)(nil)
	_ VectorStore  = (*DB)(nil)
)
