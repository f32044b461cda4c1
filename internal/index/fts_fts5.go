//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/noteintel/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, n models.Note) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, n.ID)
	_, err := tx.ExecContext(ctx, `INSERT INTO notes_fts (id, title, content, tags) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, strings.Join(n.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, id)
}

// Search runs an FTS5 query and returns hits ranked by BM25. The raw bm25()
// value is negative (lower is better); it is negated so higher is better.
// Title matches weigh twice as much as content matches.
func (db *DB) Search(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.KeywordHit, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}

	var f models.NoteFilter
	if filter != nil {
		f = *filter
	}
	where, args := filterClause(f)
	if where == "" {
		where = " WHERE notes_fts MATCH ?"
	} else {
		where += " AND notes_fts MATCH ?"
	}
	args = append(args, matchExpr(terms), fetchLimit(n, f))

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`, -bm25(notes_fts, 0.0, 2.0, 1.0, 1.0) AS score
		FROM notes_fts
		JOIN notes n ON n.id = notes_fts.id`+where+`
		ORDER BY score DESC, n.id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []models.KeywordHit
	for rows.Next() {
		var score float64
		note, err := scanNote(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("index: scan search hit: %w", err)
		}
		if f.Tag != "" && !note.Tags.Has(f.Tag) {
			continue
		}
		out = append(out, keywordHit(note, score))
		if len(out) == n {
			break
		}
	}
	return out, rows.Err()
}

// matchExpr quotes each term so user input never reaches the FTS5 query
// grammar, and ORs them so partial matches still rank.
func matchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
