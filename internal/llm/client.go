// Package llm talks to an OpenAI-compatible chat completion service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"

	"github.com/bull/docchat/internal/domain"
)

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prompt message.
type Message struct {
	Role    Role
	Content string
}

// Request is one completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Config points the client at an OpenAI-compatible endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client issues blocking and streaming completions behind a circuit breaker.
// Upstream failures are returned as *domain.GenerationError and never retried.
type Client struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a Client. An API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion API key not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(opts...)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "CompletionAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
		// only upstream failures count against the service
		IsSuccessful: func(err error) bool {
			var genErr *domain.GenerationError
			return !errors.As(err, &genErr)
		},
	})

	return &Client{client: &client, model: cfg.Model, breaker: breaker, logger: logger}, nil
}

// OpenAI exposes the underlying client for other chat-model consumers.
func (c *Client) OpenAI() *openai.Client {
	return c.client
}

// Model returns the configured completion model.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) params(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete returns the full answer text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
		if err != nil {
			return nil, c.upstreamError(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return nil, &domain.GenerationError{StatusCode: http.StatusOK, Body: "no choices in response"}
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", c.breakerError(err)
	}
	return result.(string), nil
}

// Stream calls yield with each content delta as it arrives and returns the
// concatenated answer. A yield error or context cancellation stops the
// upstream stream and is returned unchanged.
func (c *Client) Stream(ctx context.Context, req Request, yield func(delta string) error) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		var answer strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			answer.WriteString(delta)
			if err := yield(delta); err != nil {
				return nil, err
			}
		}
		if err := stream.Err(); err != nil {
			return nil, c.upstreamError(ctx, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return answer.String(), nil
	})
	if err != nil {
		return "", c.breakerError(err)
	}
	return result.(string), nil
}

// upstreamError keeps context errors as they are and wraps everything else.
func (c *Client) upstreamError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = apiErr.Message
		}
		c.logger.Error("Completion call failed", "status", apiErr.StatusCode, "model", c.model)
		return &domain.GenerationError{StatusCode: apiErr.StatusCode, Body: body}
	}

	c.logger.Error("Completion call failed", "error", err, "model", c.model)
	return &domain.GenerationError{Body: err.Error()}
}

func (c *Client) breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.GenerationError{
			StatusCode: http.StatusServiceUnavailable,
			Body:       "completion service temporarily unavailable: " + err.Error(),
		}
	}
	return err
}
