package generation

import (
	"fmt"
	"strings"

	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/intent"
	"github.com/bull/docchat/internal/llm"
)

const (
	Temperature            = 0.1
	SummarizationMaxTokens = 3000
	DefaultMaxTokens       = 2000
)

const defaultTemplate = `You are an intelligent assistant that provides comprehensive answers based on document context.
Answer questions thoroughly using the provided context. Be insightful and analytical.
If the context doesn't contain enough information, acknowledge this and provide what you can.
Reference previous conversation context when relevant for better continuity.

Context from document:
%s`

const summaryTemplate = `You are an intelligent assistant that creates comprehensive summaries of specific sections from documents.
Create a detailed summary of the requested section, organizing the information clearly and highlighting key points.
Use bullet points, headings, and clear structure to make the summary easy to read.
Focus only on the content from the specified section.

%s
%s`

const structureTemplate = `You are an intelligent assistant that analyzes document structure and content.
Analyze the provided context to determine the document's structure, including chapters, sections, and overall organization.
Look for patterns like "Chapter X", "Section Y", numbered headings, or table of contents information.
Provide a clear count of chapters/sections and describe the document's structure.

Context from document:
%s`

const opinionTemplate = `You are an intelligent assistant with deep knowledge and analytical capabilities.
Based on the provided context, give your thoughtful opinion and analysis. Be insightful, critical when appropriate, and provide valuable perspectives.
Draw from your knowledge while staying grounded in the provided context. Be confident in your analysis but acknowledge limitations.
Provide nuanced, intelligent commentary that adds value beyond just summarizing.

Context from document:
%s`

// BuildContext labels each unit with its 1-based citation index.
func BuildContext(units []domain.TextUnit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = fmt.Sprintf("[Source %d]\n%s", i+1, u.Content)
	}
	return strings.Join(parts, "\n\n")
}

// SystemPrompt selects the instruction template for a classification.
func SystemPrompt(cl intent.Classification, context string) string {
	switch cl.Kind {
	case intent.Summarization:
		header := "Context from document:"
		if cl.SectionNumber != nil {
			header = fmt.Sprintf("Context from document (Section %d):", *cl.SectionNumber)
		}
		return fmt.Sprintf(summaryTemplate, header, context)
	case intent.StructuralCount:
		return fmt.Sprintf(structureTemplate, context)
	case intent.Opinion:
		return fmt.Sprintf(opinionTemplate, context)
	default:
		return fmt.Sprintf(defaultTemplate, context)
	}
}

// BuildRequest assembles system prompt, replayed history and the query.
func BuildRequest(cl intent.Classification, units []domain.TextUnit, history []conversation.Turn, query string) llm.Request {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(cl, BuildContext(units))})

	for _, t := range history {
		switch t := t.(type) {
		case *conversation.UserTurn:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case *conversation.AssistantTurn:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	maxTokens := DefaultMaxTokens
	if cl.Kind == intent.Summarization {
		maxTokens = SummarizationMaxTokens
	}
	return llm.Request{Messages: messages, Temperature: Temperature, MaxTokens: maxTokens}
}
