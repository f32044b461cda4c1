package search

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/starford/noteintel/internal/models"
)

// fusedEntry tracks one note across both rankings.
type fusedEntry struct {
	result       models.SearchResult
	vectorRank   int
	keywordRank  int
	vectorScore  float64
	keywordScore float64
	inVector     bool
	inKeyword    bool
}

// Fuse combines a vector ranking and a keyword ranking with Reciprocal Rank
// Fusion:
//
//	score = alpha/(rank_v+k) + (1-alpha)/(rank_k+k)
//
// Ranks are 0-based; a note missing from a list takes that list's length as
// its rank. Output is sorted by score desc, then note id asc.
func Fuse(vector, keyword []models.SearchResult, alpha, k float64) []models.SearchResult {
	entries := make(map[string]*fusedEntry, len(vector)+len(keyword))
	get := func(r models.SearchResult) *fusedEntry {
		e, ok := entries[r.NoteID]
		if !ok {
			e = &fusedEntry{result: r, vectorRank: len(vector), keywordRank: len(keyword)}
			entries[r.NoteID] = e
		}
		return e
	}
	for i, r := range vector {
		e := get(r)
		if e.inVector {
			continue
		}
		e.inVector, e.vectorRank, e.vectorScore = true, i, r.Score
	}
	for i, r := range keyword {
		e := get(r)
		if e.inKeyword {
			continue
		}
		e.inKeyword, e.keywordRank, e.keywordScore = true, i, r.Score
		if e.result.Title == "" {
			e.result.Title = r.Title
		}
		if e.result.Content == "" {
			e.result.Content = r.Content
		}
		if e.result.CreatedAt.IsZero() {
			e.result.CreatedAt = r.CreatedAt
		}
	}

	out := make([]models.SearchResult, 0, len(entries))
	for _, e := range entries {
		r := e.result
		r.Score = alpha/(float64(e.vectorRank)+k) + (1-alpha)/(float64(e.keywordRank)+k)
		r.Source = models.SourceHybrid
		r.RelevanceReason = e.reason()

		meta := make(map[string]any, len(r.Metadata)+4)
		maps.Copy(meta, r.Metadata)
		meta["vector_rank"] = e.vectorRank
		meta["keyword_rank"] = e.keywordRank
		meta["vector_score"] = e.vectorScore
		meta["keyword_score"] = e.keywordScore
		r.Metadata = meta

		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NoteID < out[j].NoteID
	})
	return out
}

func (e *fusedEntry) reason() string {
	var parts []string
	if e.inVector {
		parts = append(parts, fmt.Sprintf("vector rank %d", e.vectorRank+1))
	} else {
		parts = append(parts, "no vector match")
	}
	if e.inKeyword {
		parts = append(parts, fmt.Sprintf("keyword rank %d", e.keywordRank+1))
	} else {
		parts = append(parts, "no keyword match")
	}
	return "hybrid: " + strings.Join(parts, ", ")
}
