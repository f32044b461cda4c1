// Package validator checks link integrity across the note store and repairs
// broken and duplicated links.
package validator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/metrics"
	"github.com/starford/noteintel/internal/models"
)

// Store is the note-store subset the validator needs.
type Store interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	GetLinks(ctx context.Context, from, to string) ([]models.Link, error)
	DeleteLink(ctx context.Context, id string) error
	CountNotes(ctx context.Context) (int, error)
	CountLinks(ctx context.Context) (int, error)
}

// IssueTargetMissing is the issue text of a link whose target does not exist.
const IssueTargetMissing = "Target note not found"

type BrokenLink struct {
	LinkID     string          `json:"link_id"`
	FromNoteID string          `json:"from_note_id"`
	ToNoteID   string          `json:"to_note_id"`
	LinkType   models.LinkType `json:"link_type"`
	Issue      string          `json:"issue"`
}

type OrphanNote struct {
	NoteID    string      `json:"note_id"`
	Title     string      `json:"title"`
	Tags      models.Tags `json:"tags"`
	CreatedAt time.Time   `json:"created_at"`
}

// CircularLink is a pair of notes linking to each other. NoteA < NoteB.
type CircularLink struct {
	NoteA string `json:"note_a"`
	NoteB string `json:"note_b"`
}

// DuplicateLink groups link rows sharing (from, to, type). Links are
// ordered oldest first.
type DuplicateLink struct {
	FromNoteID     string          `json:"from_note_id"`
	ToNoteID       string          `json:"to_note_id"`
	LinkType       models.LinkType `json:"link_type"`
	DuplicateCount int             `json:"duplicate_count"`
	Links          []models.Link   `json:"links"`
}

// LinkValidationResult is the outcome of a full validation pass.
type LinkValidationResult struct {
	BrokenLinks    []BrokenLink    `json:"broken_links"`
	OrphanNotes    []OrphanNote    `json:"orphan_notes"`
	CircularLinks  []CircularLink  `json:"circular_links"`
	DuplicateLinks []DuplicateLink `json:"duplicate_links"`
	TotalNotes     int             `json:"total_notes"`
	TotalLinks     int             `json:"total_links"`
	ValidationTime time.Time       `json:"validation_time"`
}

// IsHealthy reports whether no issue of any kind was found.
func (r *LinkValidationResult) IsHealthy() bool {
	return len(r.BrokenLinks) == 0 && len(r.OrphanNotes) == 0 &&
		len(r.CircularLinks) == 0 && len(r.DuplicateLinks) == 0
}

// Validator runs integrity checks. It is stateless between calls.
type Validator struct {
	store  Store
	logger *slog.Logger
}

// New returns a Validator over store.
func New(store Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{store: store, logger: logger}
}

// ValidateAllLinks scans every note and link and reports broken links,
// orphan notes, 2-cycles and duplicate link rows.
func (v *Validator) ValidateAllLinks(ctx context.Context) (*LinkValidationResult, error) {
	const op = "validate_all_links"
	totalNotes, err := v.store.CountNotes(ctx)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, "notes", err)
	}
	totalLinks, err := v.store.CountLinks(ctx)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, "links", err)
	}
	notes, err := v.store.ListNotes(ctx, models.NoteFilter{})
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, "notes", err)
	}
	links, err := v.store.GetLinks(ctx, "", "")
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, "links", err)
	}

	known := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		known[n.ID] = struct{}{}
	}

	res := &LinkValidationResult{
		BrokenLinks:    brokenLinks(links, known),
		OrphanNotes:    orphanNotes(notes, links),
		CircularLinks:  circularLinks(links),
		DuplicateLinks: duplicateLinks(links),
		TotalNotes:     totalNotes,
		TotalLinks:     totalLinks,
	}
	res.ValidationTime = time.Now().UTC()

	metrics.ValidationFindings.WithLabelValues("broken").Set(float64(len(res.BrokenLinks)))
	metrics.ValidationFindings.WithLabelValues("orphan").Set(float64(len(res.OrphanNotes)))
	metrics.ValidationFindings.WithLabelValues("circular").Set(float64(len(res.CircularLinks)))
	metrics.ValidationFindings.WithLabelValues("duplicate").Set(float64(len(res.DuplicateLinks)))
	v.logger.Info("validator: links validated",
		slog.Int("notes", totalNotes),
		slog.Int("links", totalLinks),
		slog.Int("broken", len(res.BrokenLinks)),
		slog.Int("orphans", len(res.OrphanNotes)),
		slog.Int("circular", len(res.CircularLinks)),
		slog.Int("duplicates", len(res.DuplicateLinks)))
	return res, nil
}

func brokenLinks(links []models.Link, known map[string]struct{}) []BrokenLink {
	out := []BrokenLink{}
	for _, l := range links {
		if _, ok := known[l.ToNoteID]; ok {
			continue
		}
		out = append(out, BrokenLink{
			LinkID:     l.ID,
			FromNoteID: l.FromNoteID,
			ToNoteID:   l.ToNoteID,
			LinkType:   l.LinkType,
			Issue:      IssueTargetMissing,
		})
	}
	return out
}

func orphanNotes(notes []models.Note, links []models.Link) []OrphanNote {
	linked := make(map[string]struct{}, 2*len(links))
	for _, l := range links {
		linked[l.FromNoteID] = struct{}{}
		linked[l.ToNoteID] = struct{}{}
	}
	out := []OrphanNote{}
	for _, n := range notes {
		if _, ok := linked[n.ID]; ok {
			continue
		}
		out = append(out, OrphanNote{
			NoteID:    n.ID,
			Title:     n.Title,
			Tags:      models.ParseTags(n.Tags),
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type edge struct{ from, to string }

func circularLinks(links []models.Link) []CircularLink {
	set := make(map[edge]struct{}, len(links))
	for _, l := range links {
		if l.FromNoteID != l.ToNoteID {
			set[edge{l.FromNoteID, l.ToNoteID}] = struct{}{}
		}
	}
	out := []CircularLink{}
	for e := range set {
		if e.from > e.to {
			continue
		}
		if _, ok := set[edge{e.to, e.from}]; ok {
			out = append(out, CircularLink{NoteA: e.from, NoteB: e.to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NoteA != out[j].NoteA {
			return out[i].NoteA < out[j].NoteA
		}
		return out[i].NoteB < out[j].NoteB
	})
	return out
}

func duplicateLinks(links []models.Link) []DuplicateLink {
	type key struct {
		from, to string
		lt       models.LinkType
	}
	groups := make(map[key][]models.Link)
	var order []key
	for _, l := range links {
		k := key{l.FromNoteID, l.ToNoteID, l.LinkType}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], l)
	}

	out := []DuplicateLink{}
	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		sortOldestFirst(g)
		out = append(out, DuplicateLink{
			FromNoteID:     k.from,
			ToNoteID:       k.to,
			LinkType:       k.lt,
			DuplicateCount: len(g),
			Links:          g,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromNoteID != b.FromNoteID {
			return a.FromNoteID < b.FromNoteID
		}
		if a.ToNoteID != b.ToNoteID {
			return a.ToNoteID < b.ToNoteID
		}
		return a.LinkType < b.LinkType
	})
	return out
}

func sortOldestFirst(links []models.Link) {
	sort.SliceStable(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].ID < links[j].ID
	})
}
