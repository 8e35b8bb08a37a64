// Package domain holds the types shared by ingestion, retrieval and generation.
package domain

import (
	"encoding/json"
	"time"
)

// Origin tells where a TextUnit's content came from.
type Origin string

const (
	OriginText     Origin = "text"
	OriginImageOCR Origin = "image_ocr"
)

// Document is an uploaded file bound to one vector collection and one conversation.
type Document struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"filename"`
	ServerFilename string    `json:"server_filename,omitempty"` // archived copy under the upload dir
	Summary        string    `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TextUnit is a bounded span of extracted text, the atomic unit of retrieval.
type TextUnit struct {
	Content      string `json:"content"`
	Page         int    `json:"page"` // 1-based, 0 when unknown
	Source       string `json:"source"`
	Origin       Origin `json:"origin"`
	SequenceHint int    `json:"sequence_hint"` // start offset within the page for text units
	ImageIndex   int    `json:"image_index,omitempty"`
}

// SourceRef is a citation pointer into the units used for one answer.
type SourceRef struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Page    int    `json:"-"`
	Source  string `json:"-"`
}

// MarshalJSON renders missing page and source as "Unknown".
func (s SourceRef) MarshalJSON() ([]byte, error) {
	var page any = "Unknown"
	if s.Page > 0 {
		page = s.Page
	}
	source := s.Source
	if source == "" {
		source = "Unknown"
	}
	return json.Marshal(struct {
		Index   int    `json:"index"`
		Content string `json:"content"`
		Page    any    `json:"page"`
		Source  string `json:"source"`
	}{s.Index, s.Content, page, source})
}

// SourcesFrom numbers units in citation order.
func SourcesFrom(units []TextUnit) []SourceRef {
	refs := make([]SourceRef, len(units))
	for i, u := range units {
		refs[i] = SourceRef{
			Index:   i + 1,
			Content: u.Content,
			Page:    u.Page,
			Source:  u.Source,
		}
	}
	return refs
}
