package core

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Text returns the plain payload of a block: its "text" field, or the
// string items of a list block joined by spaces.
func (b Block) Text() string {
	if s, ok := b.Data["text"].(string); ok {
		return s
	}
	switch items := b.Data["items"].(type) {
	case []any:
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(items, " ")
	}
	return ""
}

// StripHTML removes inline markup and decodes entities.
func StripHTML(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = tagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// PlainText joins the text of every block with a single space.
func (c Content) PlainText() string {
	parts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		parts = append(parts, StripHTML(b.Text()))
	}
	return strings.Join(parts, " ")
}

// DeriveTitle returns the text of the first block when it is a header,
// falling back to DefaultTitle.
func DeriveTitle(c Content) string {
	if len(c.Blocks) == 0 || c.Blocks[0].Type != "header" {
		return DefaultTitle
	}
	title := strings.TrimSpace(StripHTML(c.Blocks[0].Text()))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// CountChars counts the runes of the plain text of the content.
func CountChars(c Content) int {
	return utf8.RuneCountInString(strings.TrimSpace(c.PlainText()))
}

// CountWords counts whitespace separated words of the plain text.
func CountWords(c Content) int {
	return len(strings.Fields(c.PlainText()))
}

// NormalizeTags trims and lower-cases tags, dropping empties and duplicates
// while keeping the first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// MatchTag reports whether any tag matches the glob pattern (e.g. "work/**").
// An invalid pattern matches nothing.
func MatchTag(pattern string, tags []string) bool {
	pattern = strings.ToLower(pattern)
	for _, t := range tags {
		ok, err := doublestar.Match(pattern, t)
		if err != nil {
			return false
		}
		if ok {
			return true
		}
	}
	return false
}
