package exchange

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notekeep/pkg/core"
)

// markdownNamespace seeds the ids of imported markdown files, so importing
// the same file twice yields the same note id.
var markdownNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("notekeep:markdown"))

// frontmatter holds the YAML header fields a markdown note may carry.
type frontmatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// MarkdownID returns the stable note id of the markdown file at path.
func MarkdownID(path string) string {
	return uuid.NewSHA1(markdownNamespace, []byte(path)).String()
}

// FromMarkdown converts a markdown document into a note. Headings,
// paragraphs, lists, quotes, code and rules become blocks; a YAML
// frontmatter may set the title and tags.
func FromMarkdown(id string, src []byte, now int64) (core.Note, error) {
	fm, body, err := splitFrontmatter(src)
	if err != nil {
		return core.Note{}, fmt.Errorf("%w: frontmatter: %v", core.ErrInvalidImport, err)
	}

	n := core.NewNote(id, now)
	n.Content.Blocks = markdownBlocks(body)
	n.CharCount = core.CountChars(n.Content)
	n.Title = core.DeriveTitle(n.Content)
	if t := strings.TrimSpace(fm.Title); t != "" {
		n.Title = t
	}
	n.Tags = core.NormalizeTags(fm.Tags)
	return n, nil
}

// ImportMarkdown reads every file of fsys matching the doublestar pattern
// (e.g. "notes/**/*.md") and converts it with FromMarkdown.
func ImportMarkdown(fsys fs.FS, pattern string, now int64) ([]core.Note, error) {
	paths, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	notes := make([]core.Note, 0, len(paths))
	for _, p := range paths {
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		n, err := FromMarkdown(MarkdownID(p), src, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func splitFrontmatter(src []byte) (frontmatter, []byte, error) {
	var fm frontmatter
	src = bytes.TrimPrefix(src, []byte("\ufeff"))
	if !bytes.HasPrefix(src, []byte("---\n")) && !bytes.HasPrefix(src, []byte("---\r\n")) {
		return fm, src, nil
	}
	rest := src[bytes.IndexByte(src, '\n')+1:]

	for off := 0; off < len(rest); {
		end := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		next := len(rest)
		if end >= 0 {
			line = rest[off : off+end]
			next = off + end + 1
		}
		if strings.TrimRight(string(line), "\r ") == "---" {
			if err := yaml.Unmarshal(rest[:off], &fm); err != nil {
				return fm, nil, err
			}
			return fm, rest[next:], nil
		}
		off = next
	}
	// No closing fence: the whole file is body.
	return fm, src, nil
}

func markdownBlocks(src []byte) []core.Block {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	blocks := []core.Block{}
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		if b, ok := toBlock(c, src); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func toBlock(n ast.Node, src []byte) (core.Block, bool) {
	switch n := n.(type) {
	case *ast.Heading:
		return core.Block{Type: "header", Data: map[string]any{
			"text":  inlineText(n, src),
			"level": n.Level,
		}}, true
	case *ast.Paragraph, *ast.TextBlock:
		return core.Block{Type: "paragraph", Data: map[string]any{"text": inlineText(n, src)}}, true
	case *ast.List:
		style := "unordered"
		if n.IsOrdered() {
			style = "ordered"
		}
		items := []any{}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			items = append(items, strings.TrimSpace(inlineText(item, src)))
		}
		return core.Block{Type: "list", Data: map[string]any{"style": style, "items": items}}, true
	case *ast.Blockquote:
		parts := []string{}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			parts = append(parts, inlineText(c, src))
		}
		return core.Block{Type: "quote", Data: map[string]any{
			"text":    strings.Join(parts, "\n"),
			"caption": "",
		}}, true
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return core.Block{Type: "code", Data: map[string]any{"code": rawLines(n, src)}}, true
	case *ast.ThematicBreak:
		return core.Block{Type: "delimiter", Data: map[string]any{}}, true
	}
	return core.Block{}, false
}

// inlineText collects the text of every inline descendant of n, keeping
// soft line breaks as spaces.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan:
			for g := c.FirstChild(); g != nil; g = g.NextSibling() {
				if t, ok := g.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(c.URL(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func rawLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
