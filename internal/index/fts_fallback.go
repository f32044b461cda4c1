//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/noteintel/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search scans the notes table with LIKE.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _ models.Note) error {
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// Candidates matching any term are scored in Go with a term-frequency
// heuristic: title hit 2, tag hit 1, content occurrences up to 5 per term.
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
	var likes []string
	for _, t := range terms {
		like := "%" + t + "%"
		likes = append(likes, "(n.title LIKE ? OR n.content LIKE ? OR n.tags LIKE ?)")
		args = append(args, like, like, like)
	}
	match := "(" + strings.Join(likes, " OR ") + ")"
	if where == "" {
		where = " WHERE " + match
	} else {
		where += " AND " + match
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes n`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []models.KeywordHit
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan search hit: %w", err)
		}
		if f.Tag != "" && !note.Tags.Has(f.Tag) {
			continue
		}
		out = append(out, keywordHit(note, likeScore(note, terms)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BM25Score != out[j].BM25Score {
			return out[i].BM25Score > out[j].BM25Score
		}
		return out[i].NoteID < out[j].NoteID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func likeScore(n models.Note, terms []string) float64 {
	title := strings.ToLower(n.Title)
	content := strings.ToLower(n.Content)
	var score float64
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 2
		}
		if n.Tags.Has(t) {
			score++
		}
		score += float64(min(strings.Count(content, t), 5))
	}
	return score
}
