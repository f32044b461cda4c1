//go:build sqlite_fts5

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count)
	require.NoError(t, err, "notes_fts table missing")
}

func TestFTS5_TitleOutranksContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "body", Title: "Other", Content: "graphs are mentioned here once among many other words"})
	upsert(t, db, models.Note{ID: "title", Title: "Graphs", Content: "short"})

	hits, err := db.Search(ctx, "graphs", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "title", hits[0].NoteID, "title match ranks first")
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "gone", Content: "vanishing content"})
	require.NoError(t, db.DeleteNote(ctx, "gone"))

	hits, err := db.Search(ctx, "vanishing", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "deleted note still in FTS index")
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "evo", Title: "Old", Content: "original text"})
	upsert(t, db, models.Note{ID: "evo", Title: "New", Content: "replacement text"})

	hits, err := db.Search(ctx, "original", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "old FTS content should be gone")

	hits, err = db.Search(ctx, "replacement", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "New", hits[0].Title)
}

func TestFTS5_QuotesUserInput(t *testing.T) {
	db := testDB(t)
	upsert(t, db, models.Note{ID: "q", Content: "near match"})
	_, err := db.Search(context.Background(), `near" OR NEAR(`, 10, nil)
	assert.NoError(t, err, "query syntax leaked into FTS5")
}
