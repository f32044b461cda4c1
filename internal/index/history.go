package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/noteintel/internal/models"
)

// RecordSearch appends a search-history row.
func (db *DB) RecordSearch(ctx context.Context, h models.SearchHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO search_history (id, user_id, query, results_count, execution_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.ID, h.UserID, h.Query, h.ResultsCount, h.ExecutionTimeMS, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: record search: %w", err)
	}
	return nil
}

// RecentSearches returns the newest history rows for a user ("" = all users).
func (db *DB) RecentSearches(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, user_id, query, results_count, execution_time_ms, created_at FROM search_history`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: recent searches: %w", err)
	}
	defer rows.Close()

	var out []models.SearchHistory
	for rows.Next() {
		var h models.SearchHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.Query, &h.ResultsCount, &h.ExecutionTimeMS, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
