package embedding

import (
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig points the OpenAI SDK at any OpenAI-compatible endpoint.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-compatible client. An API key is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// 429s are retried by the embedder with its own backoff
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}
