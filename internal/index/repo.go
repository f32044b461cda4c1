package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/noteintel/internal/models"
)

const noteColumns = `n.id, n.title, n.content, n.tags, n.content_type, n.user_id, n.created_at, n.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner, extra ...any) (models.Note, error) {
	var n models.Note
	var ct string
	dest := append([]any{&n.ID, &n.Title, &n.Content, &n.Tags, &ct, &n.UserID, &n.CreatedAt, &n.UpdatedAt}, extra...)
	if err := r.Scan(dest...); err != nil {
		return models.Note{}, err
	}
	n.ContentType = models.ContentType(ct)
	return n, nil
}

// UpsertNote inserts or replaces a note, its FTS entry and its outgoing links
// within a transaction. Links without an id get a fresh UUID.
func (db *DB) UpsertNote(ctx context.Context, n models.Note, checksum string, links []models.Link) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	if n.ContentType == "" {
		n.ContentType = models.ContentPermanent
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, tags, content_type, user_id, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			content      = excluded.content,
			tags         = excluded.tags,
			content_type = excluded.content_type,
			user_id      = excluded.user_id,
			checksum     = excluded.checksum,
			created_at   = excluded.created_at,
			updated_at   = excluded.updated_at
	`, n.ID, n.Title, n.Content, n.Tags, string(n.ContentType), n.UserID, checksum, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note %s: %w", n.ID, err)
	}

	if err := ftsUpsert(ctx, tx, n); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE from_note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear links %s: %w", n.ID, err)
	}
	if len(links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO links (id, from_note_id, to_note_id, link_type, created_at) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if l.LinkType == "" {
				l.LinkType = models.LinkReference
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = now
			}
			if _, err := stmt.ExecContext(ctx, l.ID, n.ID, l.ToNoteID, string(l.LinkType), l.CreatedAt); err != nil {
				return fmt.Errorf("index: insert link %s->%s: %w", n.ID, l.ToNoteID, err)
			}
		}
	}

	return tx.Commit()
}

// InsertLink adds a single link row without touching the note's other links.
// Used by importers and tests; duplicates are accepted on purpose.
func (db *DB) InsertLink(ctx context.Context, l models.Link) (models.Link, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.LinkType == "" {
		l.LinkType = models.LinkReference
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO links (id, from_note_id, to_note_id, link_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.FromNoteID, l.ToNoteID, string(l.LinkType), l.CreatedAt)
	if err != nil {
		return models.Link{}, fmt.Errorf("index: insert link %s->%s: %w", l.FromNoteID, l.ToNoteID, err)
	}
	return l, nil
}

// DeleteNote removes a note, its FTS entry, its embedding and its outgoing
// links. Incoming links are left in place and surface as broken links.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(ctx, tx, id)
	for _, q := range []string{
		`DELETE FROM links WHERE from_note_id = ?`,
		`DELETE FROM note_embeddings WHERE note_id = ?`,
		`DELETE FROM notes WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("index: delete note %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetNote returns the note with the given id, or nil when it does not exist.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note %s: %w", id, err)
	}
	return &n, nil
}

// ListNotes returns notes matching filter ordered by id. user_id and
// content_type are filtered in SQL; tags are matched in Go because they are
// stored as a JSON array.
func (db *DB) ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	where, args := filterClause(filter)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes n`+where+` ORDER BY n.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		if filter.Tag != "" && !n.Tags.Has(filter.Tag) {
			continue
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func filterClause(f models.NoteFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "n.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ContentType != "" {
		conds = append(conds, "n.content_type = ?")
		args = append(args, string(f.ContentType))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetLinks returns links filtered by source and/or target. Empty arguments
// leave that side unconstrained. Rows are ordered oldest first.
func (db *DB) GetLinks(ctx context.Context, from, to string) ([]models.Link, error) {
	var conds []string
	var args []any
	if from != "" {
		conds = append(conds, "from_note_id = ?")
		args = append(args, from)
	}
	if to != "" {
		conds = append(conds, "to_note_id = ?")
		args = append(args, to)
	}
	q := `SELECT id, from_note_id, to_note_id, link_type, created_at FROM links`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at, id"

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: get links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		var lt string
		if err := rows.Scan(&l.ID, &l.FromNoteID, &l.ToNoteID, &lt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("index: scan link: %w", err)
		}
		l.LinkType = models.LinkType(lt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLink removes a link row. Deleting a missing id is not an error, so
// repair passes can be retried safely.
func (db *DB) DeleteLink(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete link %s: %w", id, err)
	}
	return nil
}

// CountNotes returns the number of notes.
func (db *DB) CountNotes(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT count(*) FROM notes`)
}

// CountLinks returns the number of link rows, duplicates included.
func (db *DB) CountLinks(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT count(*) FROM links`)
}

func (db *DB) count(ctx context.Context, q string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(ctx context.Context, id string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum %s: %w", id, err)
	}
	return cs, nil
}

// AllChecksums returns id -> checksum for every indexed note.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ResolveTarget maps a wikilink target onto an indexed note id. An exact id
// wins; otherwise a single note whose path ends in "/target" is accepted.
// Unresolvable targets are returned unchanged.
func (db *DB) ResolveTarget(ctx context.Context, target string) (string, error) {
	pattern := "%/" + likeEscaper.Replace(target)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM notes WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id`, target, pattern)
	if err != nil {
		return "", fmt.Errorf("index: resolve %s: %w", target, err)
	}
	defer rows.Close()

	var suffix []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if id == target {
			return id, nil
		}
		if strings.HasSuffix(id, "/"+target) {
			suffix = append(suffix, id)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(suffix) == 1 {
		return suffix[0], nil
	}
	return target, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Backlinks returns the ids of notes that link to target.
func (db *DB) Backlinks(ctx context.Context, target string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT from_note_id FROM links WHERE to_note_id = ? ORDER BY from_note_id`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
