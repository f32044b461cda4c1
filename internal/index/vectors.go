package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/x448/float16"

	"github.com/starford/noteintel/internal/models"
)

// Embeddings are stored as little-endian IEEE 754 half-precision values.
// Cosine ranking tolerates the precision loss and halves the table size.

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 2*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[2*i:])).Float32()
	}
	return out
}

// UpsertEmbedding stores (or replaces) the embedding of a note.
func (db *DB) UpsertEmbedding(ctx context.Context, noteID string, vec []float32) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO note_embeddings (note_id, dim, vector, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			dim        = excluded.dim,
			vector     = excluded.vector,
			updated_at = excluded.updated_at
	`, noteID, len(vec), encodeVector(vec), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert embedding %s: %w", noteID, err)
	}
	return nil
}

// NoteVectors returns every embedded note matching filter together with its
// decoded vector, ordered by note id.
func (db *DB) NoteVectors(ctx context.Context, filter *models.NoteFilter) ([]models.NoteVector, error) {
	var f models.NoteFilter
	if filter != nil {
		f = *filter
	}
	where, args := filterClause(f)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`, e.vector
		FROM note_embeddings e
		JOIN notes n ON n.id = e.note_id`+where+`
		ORDER BY n.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: note vectors: %w", err)
	}
	defer rows.Close()

	var out []models.NoteVector
	for rows.Next() {
		var blob []byte
		note, err := scanNote(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("index: scan note vector: %w", err)
		}
		if f.Tag != "" && !note.Tags.Has(f.Tag) {
			continue
		}
		out = append(out, models.NoteVector{Note: note, Vector: decodeVector(blob)})
	}
	return out, rows.Err()
}
