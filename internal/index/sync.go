package index

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/parser"
	"github.com/starford/noteintel/internal/storage"
)

// Embedder turns note text into a vector. Implemented by internal/vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer ingests vault files into the note store: it parses Markdown,
// resolves wikilinks into Link rows and optionally stores embeddings.
type Indexer struct {
	db          *DB
	vault       storage.Provider
	embedder    Embedder
	defaultUser string
	logger      *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithEmbedder computes and stores an embedding for every indexed note.
func WithEmbedder(e Embedder) IndexerOption {
	return func(ix *Indexer) { ix.embedder = e }
}

// WithDefaultUser sets the owner of notes without a "user" frontmatter key.
func WithDefaultUser(user string) IndexerOption {
	return func(ix *Indexer) { ix.defaultUser = user }
}

// WithLogger sets the indexer logger.
func WithLogger(l *slog.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// NewIndexer returns an Indexer reading from vault and writing to db.
func NewIndexer(db *DB, vault storage.Provider, opts ...IndexerOption) *Indexer {
	ix := &Indexer{db: db, vault: vault, logger: slog.Default()}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// NoteID derives a note id from a vault-relative file path.
func NoteID(filePath string) string {
	return parser.NormalizeTarget(filePath)
}

// SyncStats summarises one Sync pass.
type SyncStats struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - notes whose file disappeared are deleted
//
// Per-file failures are logged and counted; only listing errors abort.
func (ix *Indexer) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	metas, err := ix.vault.List(ctx, "")
	if err != nil {
		return stats, err
	}
	checksums, err := ix.db.AllChecksums(ctx)
	if err != nil {
		return stats, err
	}

	ids := make([]string, 0, len(metas))
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id := NoteID(m.Path)
		disk[id] = struct{}{}
		ids = append(ids, id)
	}
	resolve := newVaultResolver(ids)

	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id := NoteID(m.Path)
		if checksums[id] == m.Checksum {
			stats.Unchanged++
			continue
		}
		data, err := ix.vault.Read(ctx, m.Path)
		if err != nil {
			stats.Failed++
			ix.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := ix.indexFile(ctx, m.Path, data, m.UpdatedAt, resolve); err != nil {
			stats.Failed++
			ix.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		ix.logger.Debug("sync: indexed", slog.String("note_id", id))
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := ix.db.DeleteNote(ctx, id); err != nil {
			stats.Failed++
			ix.logger.Warn("sync: delete failed", slog.String("note_id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		ix.logger.Debug("sync: removed stale", slog.String("note_id", id))
	}

	ix.logger.Info("sync: done",
		slog.Int("indexed", stats.Indexed),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// IndexFile parses data and upserts it as the note for filePath. Link
// targets are resolved against notes already in the index. It returns the
// note id.
func (ix *Indexer) IndexFile(ctx context.Context, filePath string, data []byte, modTime time.Time) (string, error) {
	resolve := func(target string) string {
		id, err := ix.db.ResolveTarget(ctx, target)
		if err != nil {
			return target
		}
		return id
	}
	return ix.indexFile(ctx, filePath, data, modTime, resolve)
}

// Remove deletes the note backed by filePath and returns its id.
func (ix *Indexer) Remove(ctx context.Context, filePath string) (string, error) {
	id := NoteID(filePath)
	return id, ix.db.DeleteNote(ctx, id)
}

func (ix *Indexer) indexFile(ctx context.Context, filePath string, data []byte, modTime time.Time, resolve func(string) string) (string, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	id := NoteID(filePath)
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}

	note := models.Note{
		ID:          id,
		Title:       res.Title,
		Content:     res.Body,
		Tags:        models.ParseTags(res.Tags),
		ContentType: res.ContentType,
		UserID:      res.UserID,
		CreatedAt:   res.CreatedAt,
		UpdatedAt:   modTime,
	}
	if note.Title == "" {
		note.Title = path.Base(id)
	}
	if note.UserID == "" {
		note.UserID = ix.defaultUser
	}
	if note.CreatedAt.IsZero() {
		existing, err := ix.db.GetNote(ctx, id)
		if err != nil {
			return "", err
		}
		if existing != nil {
			note.CreatedAt = existing.CreatedAt
		} else {
			note.CreatedAt = modTime
		}
	}

	var links []models.Link
	addLinks := func(targets []string, lt models.LinkType) {
		for _, t := range targets {
			to := resolve(t)
			if to == id {
				continue
			}
			links = append(links, models.Link{FromNoteID: id, ToNoteID: to, LinkType: lt, CreatedAt: modTime})
		}
	}
	addLinks(res.References, models.LinkReference)
	addLinks(res.Mentions, models.LinkMention)

	if err := ix.db.UpsertNote(ctx, note, storage.Checksum(data), links); err != nil {
		return "", err
	}

	if ix.embedder != nil {
		vec, err := ix.embedder.Embed(ctx, note.Title+"\n"+note.Content)
		if err != nil {
			ix.logger.Warn("index: embed failed", slog.String("note_id", id), slog.String("error", err.Error()))
		} else if err := ix.db.UpsertEmbedding(ctx, id, vec); err != nil {
			ix.logger.Warn("index: store embedding failed", slog.String("note_id", id), slog.String("error", err.Error()))
		}
	}
	return id, nil
}

// newVaultResolver resolves wikilink targets against the ids present on disk
// during a full sync, so resolution does not depend on indexing order.
func newVaultResolver(ids []string) func(string) string {
	exact := make(map[string]struct{}, len(ids))
	byBase := make(map[string][]string)
	for _, id := range ids {
		exact[id] = struct{}{}
		if i := strings.LastIndex(id, "/"); i >= 0 {
			byBase[id[i+1:]] = append(byBase[id[i+1:]], id)
		}
	}
	for _, v := range byBase {
		sort.Strings(v)
	}
	return func(target string) string {
		if _, ok := exact[target]; ok {
			return target
		}
		var matches []string
		for _, id := range byBase[path.Base(target)] {
			if strings.HasSuffix(id, "/"+target) {
				matches = append(matches, id)
			}
		}
		if len(matches) == 1 {
			return matches[0]
		}
		return target
	}
}
