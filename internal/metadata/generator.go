// Package metadata asks the completion service for a short description of an uploaded document.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/bull/docchat/internal/domain"
)

// DefaultMaxTokens is the maximum content length before truncation (in tokens).
const DefaultMaxTokens = 16000

// DocumentMetadata is the generated description of one document.
type DocumentMetadata struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// Generator produces metadata with a chat model.
type Generator struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a generator. maxTokens <= 0 selects DefaultMaxTokens.
func NewGenerator(client *openai.Client, model string, maxTokens int, logger *slog.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate summarises the text units of a document.
func (g *Generator) Generate(ctx context.Context, name string, units []domain.TextUnit) (*DocumentMetadata, error) {
	var b strings.Builder
	for _, u := range units {
		if u.Origin != domain.OriginText {
			continue
		}
		b.WriteString(u.Content)
		b.WriteString("\n\n")
	}
	content := g.truncateContent(b.String())

	prompt := fmt.Sprintf(`Analyze this document and provide:
1. A concise summary (1-2 sentences) capturing the main topic and key points
2. A list of up to 10 key topics, names, or terms it covers

Document name: %s

Document content:
%s

Respond in JSON format:
{"summary": "Brief description of what this document covers", "topics": ["Topic1", "Topic2"]}`, name, content)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return parseResponse(resp.Choices[0].Message.Content)
}

func parseResponse(raw string) (*DocumentMetadata, error) {
	// some providers wrap JSON mode output in a code fence
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var meta DocumentMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	meta.Summary = strings.TrimSpace(meta.Summary)
	return &meta, nil
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	g.logger.Warn("Truncating document for metadata",
		"from_chars", len(content), "to_chars", maxChars, "max_tokens", g.maxTokens)
	return content[:maxChars]
}
