package suggest

import (
	"regexp"
	"sort"
	"strings"
)

const minKeywordLen = 3

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var stopWords = toSet(`
a an the and or but nor so yet for of to in on at by with from into onto upon
about above below over under between through during before after
is am are was were be been being do does did done have has had having
will would shall should can could may might must
i me my mine we us our ours you your yours he him his she her hers it its
they them their theirs this that these those who whom whose which what
not no there here than then when where why how all any each some such
also just very too only own same other more most much many few
`)

func toSet(words string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		out[w] = struct{}{}
	}
	return out
}

// extractKeywords lower-cases text, splits it into word tokens and keeps
// those that are not stop words and have at least minKeywordLen runes.
func extractKeywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for tok := range keywordCounts(text) {
		out[tok] = struct{}{}
	}
	return out
}

func keywordCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	return counts
}

// topKeywords returns up to n keywords ordered by frequency, then alphabetically.
func topKeywords(text string, n int) []string {
	counts := keywordCounts(text)
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func intersection(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
