package search

import (
	"strings"

	"github.com/starford/noteintel/internal/models"
)

// applyFilters drops results failing f and truncates to limit. Tag matching
// is case-insensitive and succeeds when the note carries any requested tag.
func applyFilters(results []models.SearchResult, f models.SearchFilters, limit int) []models.SearchResult {
	out := make([]models.SearchResult, 0, min(len(results), limit))
	for _, r := range results {
		if !matches(r, f) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func matches(r models.SearchResult, f models.SearchFilters) bool {
	if r.Score < f.MinScore {
		return false
	}
	if f.UserID != "" && metaString(r.Metadata, "user_id") != f.UserID {
		return false
	}
	if f.ContentType != "" && metaString(r.Metadata, "content_type") != string(f.ContentType) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(models.ParseTags(r.Metadata["tags"]), f.Tags) {
		return false
	}
	if f.DateRange != nil {
		if r.CreatedAt.IsZero() || !f.DateRange.Contains(r.CreatedAt) {
			return false
		}
	}
	return true
}

func hasAnyTag(have models.Tags, want []string) bool {
	for _, w := range want {
		if have.Has(strings.TrimSpace(w)) {
			return true
		}
	}
	return false
}
