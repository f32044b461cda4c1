package validator

import (
	"context"
	"sort"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/models"
)

// LinkStatus is one link seen from a note, with the title of the note at
// the other end (empty when that note is missing).
type LinkStatus struct {
	LinkID     string          `json:"link_id"`
	FromNoteID string          `json:"from_note_id"`
	ToNoteID   string          `json:"to_note_id"`
	LinkType   models.LinkType `json:"link_type"`
	Title      string          `json:"title,omitempty"`
}

type LinkGroup struct {
	Valid  []LinkStatus `json:"valid"`
	Broken []LinkStatus `json:"broken"`
}

// NoteLinkReport describes the links around a single note.
type NoteLinkReport struct {
	Note          models.Note `json:"note"`
	OutgoingLinks LinkGroup   `json:"outgoing_links"`
	IncomingLinks LinkGroup   `json:"incoming_links"`
	TotalBroken   int         `json:"total_broken"`
	IsOrphan      bool        `json:"is_orphan"`
}

// ValidateNoteLinks splits a note's outgoing and incoming links into valid
// and broken. A missing note is an error wrapping apperr.ErrNotFound.
func (v *Validator) ValidateNoteLinks(ctx context.Context, noteID string) (*NoteLinkReport, error) {
	const op = "validate_note_links"
	note, err := v.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, err)
	}
	if note == nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, apperr.ErrNotFound)
	}
	outgoing, err := v.store.GetLinks(ctx, noteID, "")
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, err)
	}
	incoming, err := v.store.GetLinks(ctx, "", noteID)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, err)
	}

	titles := make(map[string]*string)
	lookup := func(id string) (string, bool, error) {
		if t, ok := titles[id]; ok {
			return deref(t), t != nil, nil
		}
		n, err := v.store.GetNote(ctx, id)
		if err != nil {
			return "", false, err
		}
		if n == nil {
			titles[id] = nil
			return "", false, nil
		}
		titles[id] = &n.Title
		return n.Title, true, nil
	}

	report := &NoteLinkReport{
		Note:          *note,
		OutgoingLinks: LinkGroup{Valid: []LinkStatus{}, Broken: []LinkStatus{}},
		IncomingLinks: LinkGroup{Valid: []LinkStatus{}, Broken: []LinkStatus{}},
		IsOrphan:      len(outgoing) == 0 && len(incoming) == 0,
	}
	split := func(links []models.Link, other func(models.Link) string, group *LinkGroup) error {
		for _, l := range links {
			title, ok, err := lookup(other(l))
			if err != nil {
				return err
			}
			st := LinkStatus{LinkID: l.ID, FromNoteID: l.FromNoteID, ToNoteID: l.ToNoteID, LinkType: l.LinkType, Title: title}
			if ok {
				group.Valid = append(group.Valid, st)
			} else {
				group.Broken = append(group.Broken, st)
			}
		}
		return nil
	}
	if err := split(outgoing, func(l models.Link) string { return l.ToNoteID }, &report.OutgoingLinks); err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, err)
	}
	if err := split(incoming, func(l models.Link) string { return l.FromNoteID }, &report.IncomingLinks); err != nil {
		return nil, apperr.E(apperr.ErrLinkValidation, op, noteID, err)
	}
	report.TotalBroken = len(report.OutgoingLinks.Broken) + len(report.IncomingLinks.Broken)
	return report, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BidirectionalSuggestion proposes the missing reverse of a one-way link.
type BidirectionalSuggestion struct {
	FromNoteID        string          `json:"from_note_id"`
	ToNoteID          string          `json:"to_note_id"`
	SuggestedLinkType models.LinkType `json:"suggested_link_type"`
}

// FindMissingBidirectionalLinks proposes B→A for every link A→B between
// existing notes that has no reverse. Output is sorted by (from, to).
func (v *Validator) FindMissingBidirectionalLinks(ctx context.Context) ([]BidirectionalSuggestion, error) {
	const op = "find_missing_bidirectional_links"
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
	set := make(map[edge]struct{}, len(links))
	for _, l := range links {
		_, okFrom := known[l.FromNoteID]
		_, okTo := known[l.ToNoteID]
		if okFrom && okTo && l.FromNoteID != l.ToNoteID {
			set[edge{l.FromNoteID, l.ToNoteID}] = struct{}{}
		}
	}

	out := []BidirectionalSuggestion{}
	for e := range set {
		if _, ok := set[edge{e.to, e.from}]; ok {
			continue
		}
		out = append(out, BidirectionalSuggestion{
			FromNoteID:        e.to,
			ToNoteID:          e.from,
			SuggestedLinkType: models.LinkReference,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromNoteID != out[j].FromNoteID {
			return out[i].FromNoteID < out[j].FromNoteID
		}
		return out[i].ToNoteID < out[j].ToNoteID
	})
	return out, nil
}
