package api

import (
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/noteservice"
	"github.com/starford/noteintel/internal/validator"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps ranked search hits.
type SearchResponse struct {
	Query   string                `json:"query" example:"graph theory"`
	Mode    string                `json:"mode" example:"hybrid"`
	Results []models.SearchResult `json:"results" validate:"required"`
	Count   int                   `json:"count" example:"3"`
}

// PathResponse is the result of a shortest path query. Path is empty when
// the notes are not connected.
type PathResponse struct {
	From  string   `json:"from" example:"projects/alpha"`
	To    string   `json:"to" example:"ideas/beta"`
	Path  []string `json:"path" validate:"required"`
	Found bool     `json:"found"`
}

// ValidationResponse is a full validation pass with its overall verdict.
type ValidationResponse struct {
	*validator.LinkValidationResult
	Healthy bool `json:"healthy"`
}

// KeywordSuggestRequest is the request body for keyword-driven suggestions.
type KeywordSuggestRequest struct {
	Text           string `json:"text" example:"notes about graph clustering" validate:"required"`
	ExcludeNoteID  string `json:"exclude_note_id,omitempty" example:"drafts/today"`
	MaxSuggestions int    `json:"max_suggestions,omitempty" example:"5"`
}
