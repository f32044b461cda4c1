package models

import "time"

// ResultSource identifies which retrieval path produced a SearchResult.
type ResultSource string

const (
	SourceVector  ResultSource = "vector"
	SourceKeyword ResultSource = "keyword"
	SourceHybrid  ResultSource = "hybrid"
)

// SearchResult is one ranked hit. Produced per query and never persisted.
type SearchResult struct {
	NoteID          string         `json:"note_id"`
	Title           string         `json:"title"`
	Content         string         `json:"content"`
	Score           float64        `json:"score"`
	Source          ResultSource   `json:"source"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	RelevanceReason string         `json:"relevance_reason"`
}

// DateRange bounds created_at. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// SearchFilters are applied by the search engine after retrieval.
type SearchFilters struct {
	Tags        []string    `json:"tags,omitempty"`
	DateRange   *DateRange  `json:"date_range,omitempty"`
	MinScore    float64     `json:"min_score,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
}

// NoteFilter returns the subset of filters an index can apply up front.
func (f SearchFilters) NoteFilter() NoteFilter {
	nf := NoteFilter{UserID: f.UserID, ContentType: f.ContentType}
	if len(f.Tags) == 1 {
		nf.Tag = f.Tags[0]
	}
	return nf
}

// VectorHit is one nearest-neighbour match. Score is a similarity in [0,1].
type VectorHit struct {
	NoteID   string         `json:"note_id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KeywordHit is one full-text match with its raw BM25-style relevance.
type KeywordHit struct {
	NoteID    string         `json:"note_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	BM25Score float64        `json:"bm25_score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NoteVector pairs a note with its stored embedding.
type NoteVector struct {
	Note   Note
	Vector []float32
}

// SearchHistory records one executed search.
type SearchHistory struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Query           string    `json:"query"`
	ResultsCount    int       `json:"results_count"`
	ExecutionTimeMS float64   `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// NoteMetadata maps a note onto the metadata map carried by index hits.
func NoteMetadata(n Note) map[string]any {
	return map[string]any{
		"title":        n.Title,
		"content":      n.Content,
		"tags":         []string(n.Tags),
		"content_type": string(n.ContentType),
		"user_id":      n.UserID,
		"created_at":   n.CreatedAt,
		"updated_at":   n.UpdatedAt,
	}
}
