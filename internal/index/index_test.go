package index

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "noteintel-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func upsert(t *testing.T, db *DB, n models.Note, targets ...string) {
	t.Helper()
	var links []models.Link
	for _, to := range targets {
		links = append(links, models.Link{FromNoteID: n.ID, ToNoteID: to})
	}
	require.NoError(t, db.UpsertNote(context.Background(), n, "cs-"+n.ID, links), "UpsertNote(%s)", n.ID)
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "links", "note_embeddings", "search_history"} {
		var count int
		err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count)
		require.NoError(t, err, "%s table missing", table)
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	upsert(t, db, models.Note{
		ID: "hello", Title: "Hello World", Content: "body", Tags: models.Tags{"go", "test"},
		ContentType: models.ContentFleeting, UserID: "u1", CreatedAt: created,
	}, "other")

	n, err := db.GetNote(ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Hello World", n.Title)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, models.ContentFleeting, n.ContentType)
	assert.Equal(t, models.Tags{"go", "test"}, n.Tags)
	assert.True(t, n.CreatedAt.Equal(created), "created_at = %v, want %v", n.CreatedAt, created)

	cs, err := db.GetChecksum(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "cs-hello", cs)
}

func TestGetNote_Missing(t *testing.T) {
	db := testDB(t)
	n, err := db.GetNote(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestListNotes_Filters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "a", UserID: "u1", Tags: models.Tags{"go"}})
	upsert(t, db, models.Note{ID: "b", UserID: "u1", ContentType: models.ContentFleeting})
	upsert(t, db, models.Note{ID: "c", UserID: "u2", Tags: models.Tags{"Go"}})

	all, err := db.ListNotes(ctx, models.NoteFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	byUser, err := db.ListNotes(ctx, models.NoteFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byTag, err := db.ListNotes(ctx, models.NoteFilter{Tag: "go"})
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	byType, err := db.ListNotes(ctx, models.NoteFilter{ContentType: models.ContentFleeting})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(byType))
}

func TestUpsertReplacesOutgoingLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "up", Title: "Old"}, "x")
	upsert(t, db, models.Note{ID: "up", Title: "New"}, "y")

	bl, err := db.Backlinks(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, bl, "old link should be removed on upsert")

	bl, err = db.Backlinks(ctx, "y")
	require.NoError(t, err)
	assert.Len(t, bl, 1)

	n, err := db.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateLinksAreKept(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "a"})
	upsert(t, db, models.Note{ID: "b"})
	for i := 0; i < 3; i++ {
		_, err := db.InsertLink(ctx, models.Link{FromNoteID: "a", ToNoteID: "b"})
		require.NoError(t, err)
	}
	links, err := db.GetLinks(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, links, 3)

	require.NoError(t, db.DeleteLink(ctx, links[0].ID))
	require.NoError(t, db.DeleteLink(ctx, links[0].ID), "DeleteLink is idempotent")

	n, err := db.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "del"}, "target")
	require.NoError(t, db.UpsertEmbedding(ctx, "del", []float32{1, 0}))

	require.NoError(t, db.DeleteNote(ctx, "del"))

	cs, err := db.GetChecksum(ctx, "del")
	require.NoError(t, err)
	assert.Empty(t, cs)

	bl, err := db.Backlinks(ctx, "target")
	require.NoError(t, err)
	assert.Empty(t, bl)

	vecs, err := db.NoteVectors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, vecs, "embedding removed with the note")
}

func TestResolveTarget(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "projects/alpha"})
	upsert(t, db, models.Note{ID: "a/dup"})
	upsert(t, db, models.Note{ID: "b/dup"})

	cases := map[string]string{
		"projects/alpha": "projects/alpha",
		"alpha":          "projects/alpha",
		"dup":            "dup",
		"missing":        "missing",
	}
	for in, want := range cases {
		got, err := db.ResolveTarget(ctx, in)
		require.NoError(t, err, "ResolveTarget(%q)", in)
		assert.Equal(t, want, got, "ResolveTarget(%q)", in)
	}
}

func TestEmbeddingRoundTripHalfPrecision(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "v", UserID: "u1"})
	upsert(t, db, models.Note{ID: "w", UserID: "u2"})
	want := []float32{0.5, -0.25, 0.333}
	require.NoError(t, db.UpsertEmbedding(ctx, "v", want))
	require.NoError(t, db.UpsertEmbedding(ctx, "w", []float32{1}))

	vecs, err := db.NoteVectors(ctx, &models.NoteFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, "v", vecs[0].Note.ID)
	require.Len(t, vecs[0].Vector, len(want))
	for i, v := range vecs[0].Vector {
		assert.InDelta(t, want[i], v, 1e-3, "vector[%d]", i)
	}
}

func TestRecordSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.RecordSearch(ctx, models.SearchHistory{UserID: "u1", Query: "graph", ResultsCount: 3, ExecutionTimeMS: 1.5}))

	hist, err := db.RecentSearches(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "graph", hist[0].Query)
	assert.NotEmpty(t, hist[0].ID)
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	upsert(t, db, models.Note{ID: "s", Title: "Search Me", Content: "uniqueword appears here", UserID: "u1"})
	upsert(t, db, models.Note{ID: "t", Title: "Other", Content: "nothing relevant", UserID: "u1"})

	hits, err := db.Search(ctx, "uniqueword", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s", hits[0].NoteID)
	assert.Positive(t, hits[0].BM25Score)
	assert.Equal(t, "Search Me", hits[0].Metadata["title"])

	hits, err = db.Search(ctx, "uniqueword", 10, &models.NoteFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, hits, "user filter applied")
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	hits, err := db.Search(context.Background(), "  !! ", 10, nil)
	require.NoError(t, err)
	assert.Nil(t, hits)
}
