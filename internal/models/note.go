// Package models defines the domain types shared by the store, indexes and
// the analysis components.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// ContentType classifies a note.
type ContentType string

const (
	ContentFleeting  ContentType = "fleeting"
	ContentPermanent ContentType = "permanent"
	ContentLink      ContentType = "link"
)

// LookupContentType returns the content type named by s, ignoring case and
// surrounding space. ok is false for anything but fleeting, permanent or link.
func LookupContentType(s string) (ct ContentType, ok bool) {
	switch ct = ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ContentFleeting, ContentPermanent, ContentLink:
		return ct, true
	}
	return "", false
}

// ParseContentType maps free-form frontmatter onto a known content type,
// falling back to permanent.
func ParseContentType(s string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentFleeting:
		return ContentFleeting
	case ContentLink:
		return ContentLink
	default:
		return ContentPermanent
	}
}

// LinkType classifies a directed edge between two notes.
type LinkType string

const (
	LinkReference LinkType = "reference"
	LinkMention   LinkType = "mention"
)

// Note is a single user note as held by the note store.
type Note struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Tags        Tags        `json:"tags"`
	ContentType ContentType `json:"content_type"`
	UserID      string      `json:"user_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Link represents a directed edge between two notes.
type Link struct {
	ID         string    `json:"id"`
	FromNoteID string    `json:"from_note_id"`
	ToNoteID   string    `json:"to_note_id"`
	LinkType   LinkType  `json:"link_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// NoteFilter narrows ListNotes and index lookups. Zero fields match everything.
type NoteFilter struct {
	UserID      string      `json:"user_id,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
	Tag         string      `json:"tag,omitempty"`
}

// Match reports whether n passes the filter.
func (f NoteFilter) Match(n Note) bool {
	if f.UserID != "" && n.UserID != f.UserID {
		return false
	}
	if f.ContentType != "" && n.ContentType != f.ContentType {
		return false
	}
	if f.Tag != "" && !n.Tags.Has(f.Tag) {
		return false
	}
	return true
}

// Tags is a note's tag list. Stores hand tags back either as a JSON array
// string or as a native list; both decode into Tags. Malformed input decodes
// to an empty list instead of failing.
type Tags []string

// ParseTags decodes v defensively. Accepted shapes: []string, []any of
// strings, a JSON array string, []byte holding a JSON array. Anything else
// yields an empty list.
func ParseTags(v any) Tags {
	switch t := v.(type) {
	case nil:
		return Tags{}
	case Tags:
		return normalizeTags(t)
	case []string:
		return normalizeTags(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return normalizeTags(out)
	case []byte:
		return parseTagsJSON(t)
	case string:
		return parseTagsJSON([]byte(t))
	default:
		return Tags{}
	}
}

func parseTagsJSON(data []byte) Tags {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Tags{}
	}
	list, ok := raw.([]any)
	if !ok {
		return Tags{}
	}
	return ParseTags(list)
}

func normalizeTags(in []string) Tags {
	out := make(Tags, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Has reports whether tag is present, case-insensitively.
func (t Tags) Has(tag string) bool {
	for _, s := range t {
		if strings.EqualFold(s, tag) {
			return true
		}
	}
	return false
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	*t = ParseTags(src)
	return nil
}

// Value implements driver.Valuer, storing tags as a JSON array string.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// UnmarshalJSON accepts either a JSON array or a string holding one.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Tags{}
		return nil
	}
	*t = ParseTags(raw)
	return nil
}

// MarshalJSON always emits an array, never null.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}
