// Package suggest recommends links between notes from title, content and
// tag overlap, and finds notes matching the keywords of free text.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/metrics"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/search"
)

// Store is the note-store subset the suggestor reads.
type Store interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	GetLinks(ctx context.Context, from, to string) ([]models.Link, error)
}

// KeywordIndex answers full-text queries; terms are OR-ed.
type KeywordIndex interface {
	Search(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.KeywordHit, error)
}

const (
	DefaultMaxSuggestions = 5
	DefaultMinSimilarity  = 0.1

	titleWeight   = 0.3
	contentWeight = 0.4
	tagWeight     = 0.3

	maxQueryKeywords = 10
	maxReasonTerms   = 5
)

// Suggestion is a candidate link target for a note.
type Suggestion struct {
	NoteID            string   `json:"note_id"`
	Title             string   `json:"title"`
	SimilarityScore   float64  `json:"similarity_score"`
	SimilarityReasons []string `json:"similarity_reasons"`
}

// KeywordSuggestion is a note matching the keywords of a free text.
type KeywordSuggestion struct {
	NoteID          string   `json:"note_id"`
	Title           string   `json:"title"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Suggestor scores candidate links. It is stateless between calls.
type Suggestor struct {
	store    Store
	keywords KeywordIndex
	logger   *slog.Logger
}

// New returns a Suggestor. keywords may be nil, in which case
// SuggestByContentKeywords fails.
func New(store Store, keywords KeywordIndex, logger *slog.Logger) *Suggestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggestor{store: store, keywords: keywords, logger: logger}
}

// SuggestLinksForNote scores every note of the same user that the source
// does not already link to, keeps scores >= minSimilarity and returns the
// best maxSuggestions, ties broken by note id.
func (s *Suggestor) SuggestLinksForNote(ctx context.Context, noteID string, maxSuggestions int, minSimilarity float64) ([]Suggestion, error) {
	const op = "suggest_links_for_note"
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	if minSimilarity < 0 || math.IsNaN(minSimilarity) {
		minSimilarity = DefaultMinSimilarity
	}

	source, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, noteID, err)
	}
	if source == nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, noteID, apperr.ErrNotFound)
	}
	candidates, err := s.store.ListNotes(ctx, models.NoteFilter{UserID: source.UserID})
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, noteID, err)
	}
	existing, err := s.store.GetLinks(ctx, noteID, "")
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, noteID, err)
	}
	linked := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		linked[l.ToNoteID] = struct{}{}
	}

	src := newProfile(*source)
	out := []Suggestion{}
	for _, c := range candidates {
		if c.ID == source.ID {
			continue
		}
		if _, ok := linked[c.ID]; ok {
			continue
		}
		cand := newProfile(c)
		score := src.similarity(cand)
		if score < minSimilarity {
			continue
		}
		out = append(out, Suggestion{
			NoteID:            c.ID,
			Title:             c.Title,
			SimilarityScore:   score,
			SimilarityReasons: src.reasons(cand),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].NoteID < out[j].NoteID
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	metrics.SuggestionsServed.WithLabelValues("note").Add(float64(len(out)))
	s.logger.Debug("suggest: links for note",
		slog.String("note_id", noteID),
		slog.Int("candidates", len(candidates)),
		slog.Int("suggestions", len(out)))
	return out, nil
}

// SuggestByContentKeywords extracts the most frequent keywords of text,
// queries the keyword index with them and reports which keywords each
// matching note contains. excludeNoteID may be empty.
func (s *Suggestor) SuggestByContentKeywords(ctx context.Context, text, excludeNoteID string, maxSuggestions int) ([]KeywordSuggestion, error) {
	const op = "suggest_by_content_keywords"
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	if s.keywords == nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, "", fmt.Errorf("keyword index not configured"))
	}

	kws := topKeywords(text, maxQueryKeywords)
	if len(kws) == 0 {
		return []KeywordSuggestion{}, nil
	}
	hits, err := s.keywords.Search(ctx, strings.Join(kws, " "), maxSuggestions+1, nil)
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkSuggestion, op, excludeNoteID, err)
	}

	out := []KeywordSuggestion{}
	for _, h := range hits {
		if h.NoteID == excludeNoteID {
			continue
		}
		have := extractKeywords(h.Title + " " + h.Content)
		var matched []string
		for _, k := range kws {
			if _, ok := have[k]; ok {
				matched = append(matched, k)
			}
		}
		out = append(out, KeywordSuggestion{
			NoteID:          h.NoteID,
			Title:           h.Title,
			Score:           search.NormalizeBM25(h.BM25Score),
			MatchedKeywords: matched,
		})
		if len(out) == maxSuggestions {
			break
		}
	}
	metrics.SuggestionsServed.WithLabelValues("keywords").Add(float64(len(out)))
	return out, nil
}

// profile caches the token sets a note is compared on.
type profile struct {
	title   map[string]struct{}
	content map[string]struct{}
	tags    map[string]struct{}
}

func newProfile(n models.Note) profile {
	tags := make(map[string]struct{}, len(n.Tags))
	for _, t := range models.ParseTags(n.Tags) {
		tags[strings.ToLower(t)] = struct{}{}
	}
	return profile{
		title:   extractKeywords(n.Title),
		content: extractKeywords(n.Content),
		tags:    tags,
	}
}

// similarity is 0.3*title + 0.4*content + 0.3*tags, each a Jaccard index,
// so the result lies in [0,1] and never decreases as overlap grows.
func (p profile) similarity(o profile) float64 {
	return titleWeight*jaccard(p.title, o.title) +
		contentWeight*jaccard(p.content, o.content) +
		tagWeight*jaccard(p.tags, o.tags)
}

func (p profile) reasons(o profile) []string {
	reasons := []string{}
	if shared := intersection(p.title, o.title); len(shared) > 0 {
		reasons = append(reasons, "Shared title terms: "+joinTerms(shared))
	}
	if shared := intersection(p.tags, o.tags); len(shared) > 0 {
		reasons = append(reasons, "Shared tags: "+joinTerms(shared))
	}
	if shared := intersection(p.content, o.content); len(shared) > 0 {
		reasons = append(reasons, "Shared keywords: "+joinTerms(shared))
	}
	return reasons
}

func joinTerms(terms []string) string {
	if len(terms) > maxReasonTerms {
		return strings.Join(terms[:maxReasonTerms], ", ") + fmt.Sprintf(" (+%d more)", len(terms)-maxReasonTerms)
	}
	return strings.Join(terms, ", ")
}
