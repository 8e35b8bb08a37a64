// Package chunker splits loaded pages into overlapping text units.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/loader"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker is a recursive character splitter with a fixed window and overlap.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	overlap  int
}

// New returns a chunker. Non-positive values fall back to the defaults.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
		overlap: overlap,
	}
}

// Split chunks each page independently. Units carry the page number, the
// source name and the byte offset of the chunk within its page.
func (c *Chunker) Split(source string, pages []loader.Page) ([]domain.TextUnit, error) {
	var units []domain.TextUnit
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		parts, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}

		offsets := startOffsets(page.Text, parts, c.overlap)
		for i, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			units = append(units, domain.TextUnit{
				Content:      part,
				Page:         page.Number,
				Source:       source,
				Origin:       domain.OriginText,
				SequenceHint: offsets[i],
			})
		}
	}
	return units, nil
}

// startOffsets locates each chunk in text, searching forward from where the
// previous chunk's overlap could begin.
func startOffsets(text string, chunks []string, overlap int) []int {
	offsets := make([]int, len(chunks))
	index, prevLen := 0, 0
	for i, chunk := range chunks {
		from := max(0, index+prevLen-overlap)
		if from > len(text) {
			from = len(text)
		}
		found := strings.Index(text[from:], chunk)
		switch {
		case found >= 0:
			index = from + found
		default:
			if at := strings.Index(text, chunk); at >= 0 {
				index = at
			} else {
				index = from
			}
		}
		offsets[i] = index
		prevLen = len(chunk)
	}
	return offsets
}
