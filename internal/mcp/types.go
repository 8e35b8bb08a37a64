// Package mcp exposes document chat as Model Context Protocol tools.
package mcp

import "time"

// ListDocumentsInput takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the result of list_documents.
type ListDocumentsOutput struct {
	Documents []DocumentInfo `json:"documents"`
	Count     int            `json:"count"`
}

// DocumentInfo describes one ingested document.
type DocumentInfo struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Summary  string    `json:"summary,omitempty"`
	Created  time.Time `json:"created_at"`
}

// AskDocumentInput defines the input parameters for the ask_document tool.
type AskDocumentInput struct {
	// DocumentID is the id returned by list_documents.
	DocumentID string `json:"document_id" jsonschema:"the id of the document to ask about"`
	Question   string `json:"question" jsonschema:"the question to answer from the document"`
}

// AskDocumentOutput is a formatted answer with its citations.
type AskDocumentOutput struct {
	// Answer is HTML produced by the answer formatter.
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	IsSummarization bool     `json:"is_summarization"`
	SectionNumber   *int     `json:"section_number,omitempty"`
	IsChapterCount  bool     `json:"is_chapter_count"`
	IsOpinion       bool     `json:"is_opinion"`
}

// Source is a citation. Page is "Unknown" when the page is not known.
type Source struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Page    string `json:"page"`
	Source  string `json:"source"`
}

// DocumentInput selects one document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the id of the document"`
}

// GetHistoryOutput is the result of get_history.
type GetHistoryOutput struct {
	Messages []HistoryMessage `json:"messages"`
}

// HistoryMessage is one turn of a conversation.
type HistoryMessage struct {
	ID      string   `json:"message_id"`
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// ClearHistoryOutput is the result of clear_history.
type ClearHistoryOutput struct {
	Cleared bool   `json:"cleared"`
	Message string `json:"message"`
}
