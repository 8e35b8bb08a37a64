package mcp

import (
	"context"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docchat/internal/domain"
)

func (s *Server) handleListDocuments(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs := s.svc.Documents()
	out := ListDocumentsOutput{
		Documents: make([]DocumentInfo, len(docs)),
		Count:     len(docs),
	}
	for i, d := range docs {
		out.Documents[i] = DocumentInfo{
			ID:       d.ID,
			Filename: d.OriginalName,
			Summary:  d.Summary,
			Created:  d.CreatedAt,
		}
	}
	return nil, out, nil
}

func (s *Server) handleAskDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskDocumentInput,
) (*mcp.CallToolResult, AskDocumentOutput, error) {
	answer, err := s.svc.Chat(ctx, input.DocumentID, input.Question)
	if err != nil {
		s.logger.Warn("ask_document failed", "document_id", input.DocumentID, "error", err)
		return nil, AskDocumentOutput{}, err
	}

	flags := answer.Classification.Flags()
	return nil, AskDocumentOutput{
		Answer:          answer.Text,
		Sources:         toSources(answer.Sources),
		IsSummarization: flags.IsSummarization,
		SectionNumber:   flags.SectionNumber,
		IsChapterCount:  flags.IsChapterCount,
		IsOpinion:       flags.IsOpinion,
	}, nil
}

func (s *Server) handleGetHistory(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, GetHistoryOutput, error) {
	messages := s.svc.History(input.DocumentID)
	out := GetHistoryOutput{Messages: make([]HistoryMessage, len(messages))}
	for i, m := range messages {
		out.Messages[i] = HistoryMessage{ID: m.ID, Role: m.Role, Content: m.Content}
		if m.AssistantMeta != nil {
			out.Messages[i].Sources = toSources(m.AssistantMeta.Sources)
		}
	}
	return nil, out, nil
}

func (s *Server) handleClearHistory(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, ClearHistoryOutput, error) {
	if err := s.svc.ClearHistory(input.DocumentID); err != nil {
		return nil, ClearHistoryOutput{}, err
	}
	return nil, ClearHistoryOutput{Cleared: true, Message: "Chat history cleared"}, nil
}

func toSources(refs []domain.SourceRef) []Source {
	out := make([]Source, len(refs))
	for i, r := range refs {
		page := "Unknown"
		if r.Page > 0 {
			page = strconv.Itoa(r.Page)
		}
		source := r.Source
		if source == "" {
			source = "Unknown"
		}
		out[i] = Source{Index: r.Index, Content: r.Content, Page: page, Source: source}
	}
	return out
}
