package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/noteintel/internal/models"
)

// MemStore is an in-memory note store and naive keyword index. Setting Err
// makes every read and write fail with it.
type MemStore struct {
	mu    sync.Mutex
	notes map[string]models.Note
	links []models.Link
	seq   int
	clock time.Time

	Err error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		notes: make(map[string]models.Note),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddNote stores n, defaulting title, content type and timestamps.
func (s *MemStore) AddNote(n models.Note) models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Title == "" {
		n.Title = n.ID
	}
	if n.ContentType == "" {
		n.ContentType = models.ContentPermanent
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.tick()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	s.notes[n.ID] = n
	return n
}

// AddNotes stores one note per id with default fields.
func (s *MemStore) AddNotes(ids ...string) {
	for _, id := range ids {
		s.AddNote(models.Note{ID: id})
	}
}

// Link adds a reference link with a sequential id and increasing created_at.
func (s *MemStore) Link(from, to string) models.Link {
	return s.AddLink(models.Link{FromNoteID: from, ToNoteID: to})
}

// AddLink stores l, filling id, type and created_at when unset.
func (s *MemStore) AddLink(l models.Link) models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if l.ID == "" {
		l.ID = fmt.Sprintf("link-%04d", s.seq)
	}
	if l.LinkType == "" {
		l.LinkType = models.LinkReference
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.tick()
	}
	s.links = append(s.links, l)
	return l
}

func (s *MemStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *MemStore) GetNote(_ context.Context, id string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *MemStore) ListNotes(_ context.Context, filter models.NoteFilter) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Note
	for _, n := range s.notes {
		if filter.Match(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetLinks(_ context.Context, from, to string) ([]models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Link
	for _, l := range s.links {
		if (from == "" || l.FromNoteID == from) && (to == "" || l.ToNoteID == to) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) DeleteLink(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, l := range s.links {
		if l.ID == id {
			s.links = append(s.links[:i], s.links[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemStore) CountNotes(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.notes), nil
}

func (s *MemStore) CountLinks(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.links), nil
}

// Search scores notes by how many query terms occur in title or content.
func (s *MemStore) Search(_ context.Context, query string, n int, filter *models.NoteFilter) ([]models.KeywordHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	terms := strings.Fields(strings.ToLower(query))
	var out []models.KeywordHit
	for _, note := range s.notes {
		if filter != nil && !filter.Match(note) {
			continue
		}
		text := strings.ToLower(note.Title + " " + note.Content)
		score := 0.0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, models.KeywordHit{
			NoteID:    note.ID,
			Title:     note.Title,
			Content:   note.Content,
			BM25Score: score,
			Metadata:  models.NoteMetadata(note),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BM25Score != out[j].BM25Score {
			return out[i].BM25Score > out[j].BM25Score
		}
		return out[i].NoteID < out[j].NoteID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
