package index

import (
	"regexp"
	"strings"

	"github.com/starford/noteintel/internal/models"
)

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// queryTerms lower-cases and tokenizes a free-text query, dropping duplicates.
func queryTerms(query string) []string {
	raw := termRe.FindAllString(strings.ToLower(query), -1)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// fetchLimit over-fetches when a tag filter will drop rows after the query.
func fetchLimit(n int, f models.NoteFilter) int {
	if f.Tag != "" {
		return n * 3
	}
	return n
}

func keywordHit(n models.Note, score float64) models.KeywordHit {
	return models.KeywordHit{
		NoteID:    n.ID,
		Title:     n.Title,
		Content:   n.Content,
		BM25Score: score,
		Metadata:  models.NoteMetadata(n),
	}
}
