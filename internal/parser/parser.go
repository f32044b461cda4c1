// Package parser extracts frontmatter, wikilinks, tags and note attributes
// from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/noteintel/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	// References are [[wikilink]] targets found in the body.
	References []string
	// Mentions are targets listed under the frontmatter "related" key.
	Mentions    []string
	Tags        []string
	Title       string
	ContentType models.ContentType
	UserID      string
	CreatedAt   time.Time
}

// Parse extracts frontmatter, body, links, tags and note attributes from raw
// Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		References:  extractLinks(body),
		Mentions:    extractRelated(fm),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
		ContentType: models.ParseContentType(stringField(fm, "type")),
		UserID:      stringField(fm, "user"),
		CreatedAt:   timeField(fm, "created"),
	}, nil
}

// NormalizeTarget turns a wikilink target or note path into a note id:
// forward slashes, no ".md" suffix, no surrounding whitespace.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	target = strings.ReplaceAll(target, "\\", "/")
	target = strings.TrimPrefix(target, "./")
	target = strings.TrimSuffix(target, ".md")
	return target
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractLinks returns deduplicated wikilink targets, normalising aliases
// and headings ([[Target#Section|Alias]] -> Target).
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = NormalizeTarget(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractRelated reads the frontmatter "related" key, accepting a list or a
// single string. Entries may themselves be written as [[wikilinks]].
func extractRelated(fm map[string]any) []string {
	if fm == nil {
		return nil
	}
	var raw []string
	switch v := fm["related"].(type) {
	case string:
		raw = append(raw, v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, s := range raw {
		s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "[["), "]]")
		s = NormalizeTarget(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"}

// timeField reads a YAML timestamp. yaml.v3 already decodes unquoted ISO
// dates to time.Time; quoted ones are parsed here.
func timeField(fm map[string]any, key string) time.Time {
	if fm == nil {
		return time.Time{}
	}
	switch v := fm[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
