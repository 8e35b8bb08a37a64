// Package markdown splits Markdown documents into heading-delimited sections.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is the text between one H1/H2 heading and the next.
type Section struct {
	Index      int    // position in document (0, 1, 2...)
	HeaderPath string // "# Guide > ## Install"
	Content    string // section text including its heading line
}

// Splitter turns Markdown into sections at H1 and H2 boundaries.
type Splitter struct {
	md       goldmark.Markdown
	maxDepth int
}

// NewSplitter creates a splitter configured with the goldmark parser.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		maxDepth: 2,
	}
}

// Split returns the document's sections in order. Text before the first
// heading becomes a section with an empty header path. A document without
// headings is one section.
func (s *Splitter) Split(source []byte) ([]Section, error) {
	doc := s.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(s.maxDepth),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	paths := make(map[string]string)
	collectPaths(tree.Items, nil, paths)

	// 1. Boundaries: line starts of every H1/H2 heading in document order
	type boundary struct {
		start int
		path  string
	}
	var bounds []boundary
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Level > s.maxDepth || heading.Lines().Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		id, _ := heading.AttributeString("id")
		idBytes, _ := id.([]byte)
		bounds = append(bounds, boundary{
			start: lineStart(source, heading.Lines().At(0).Start),
			path:  paths[string(idBytes)],
		})
		return ast.WalkSkipChildren, nil
	})

	// 2. Cut the source at each boundary
	var sections []Section
	add := func(path string, body []byte) {
		content := strings.TrimSpace(string(body))
		if content == "" {
			return
		}
		sections = append(sections, Section{
			Index:      len(sections),
			HeaderPath: path,
			Content:    content,
		})
	}

	if len(bounds) == 0 {
		add("", source)
		return sections, nil
	}

	add("", source[:bounds[0].start])
	for i, b := range bounds {
		end := len(source)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		add(b.path, source[b.start:end])
	}
	return sections, nil
}

// collectPaths maps heading ids to their "# A > ## B" hierarchy.
func collectPaths(items toc.Items, ancestors []string, out map[string]string) {
	for _, item := range items {
		current := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.ID) > 0 {
			out[string(item.ID)] = formatHeaderPath(current)
		}
		collectPaths(item.Items, current, out)
	}
}

func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

func lineStart(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	return bytes.LastIndexByte(source[:pos], '\n') + 1
}
