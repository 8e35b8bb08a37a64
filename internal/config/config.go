// Package config loads docchat settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the server and the CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
	GitHub    GitHubConfig    `yaml:"github"`
}

// ServerConfig configures the HTTP and MCP listeners.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"gin_mode"`
	UploadDir      string   `yaml:"upload_dir"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	MCPTransport   string   `yaml:"mcp_transport"` // "http" or "stdio"
}

// QdrantConfig selects and addresses the vector store.
type QdrantConfig struct {
	// Store selects the vector backend: "qdrant" or "memory".
	Store string `yaml:"store"`
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
}

// EmbeddingConfig points at the embedding endpoint.
type EmbeddingConfig struct {
	// Provider is "openai" for any OpenAI-compatible API or "hashing" for the offline embedder.
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig points at the chat completion endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngestConfig holds upload and chunking settings.
type IngestConfig struct {
	ChunkSize       int  `yaml:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap"`
	OCR             bool `yaml:"ocr"`
	MetadataSummary bool `yaml:"metadata_summary"`
}

// LogConfig sets the slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GitHubConfig holds the optional token for the GitHub source.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// Load reads .env (if present), the YAML file at path or $CONFIG_FILE (if any),
// then environment overrides, then defaults.
func Load(path string) (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	cfg := &Config{Ingest: IngestConfig{OCR: true}}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	mergeWithEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeWithEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.GinMode, "GIN_MODE")
	setString(&cfg.Server.UploadDir, "UPLOAD_DIR")
	if v := getEnvInt("MAX_UPLOAD_MB", 0); v > 0 {
		cfg.Server.MaxUploadBytes = int64(v) << 20
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil {
		cfg.Server.RateLimitRPS = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.Server.RateLimitBurst = v
	}
	setString(&cfg.Server.MCPTransport, "MCP_TRANSPORT")

	setString(&cfg.Qdrant.Store, "VECTOR_STORE")
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	if v := getEnvInt("QDRANT_PORT", 0); v > 0 {
		cfg.Qdrant.Port = v
	}

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&cfg.Embedding.APIKey, "MISTRAL_API_KEY")
	setString(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	if v := getEnvInt("EMBEDDING_DIMENSION", 0); v > 0 {
		cfg.Embedding.Dimension = v
	}
	if v := getEnvInt("EMBEDDING_BATCH_SIZE", 0); v > 0 {
		cfg.Embedding.BatchSize = v
	}

	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	if v, err := time.ParseDuration(os.Getenv("LLM_TIMEOUT")); err == nil {
		cfg.LLM.Timeout = v
	}

	if v := getEnvInt("CHUNK_SIZE", 0); v > 0 {
		cfg.Ingest.ChunkSize = v
	}
	if v := getEnvInt("CHUNK_OVERLAP", 0); v > 0 {
		cfg.Ingest.ChunkOverlap = v
	}
	if v, err := strconv.ParseBool(os.Getenv("OCR_ENABLED")); err == nil {
		cfg.Ingest.OCR = v
	}
	if v, err := strconv.ParseBool(os.Getenv("METADATA_SUMMARY")); err == nil {
		cfg.Ingest.MetadataSummary = v
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 16 << 20
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitRPS == 0 {
		cfg.Server.RateLimitRPS = 5
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 10
	}
	if cfg.Server.MCPTransport == "" {
		cfg.Server.MCPTransport = "http"
	}

	if cfg.Qdrant.Store == "" {
		cfg.Qdrant.Store = "qdrant"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "mistral-embed"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1024
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "deepseek-chat"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Qdrant.Store {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("config: qdrant.store must be qdrant or memory, got %q", c.Qdrant.Store)
	}
	switch c.Embedding.Provider {
	case "openai", "hashing":
	default:
		return fmt.Errorf("config: embedding.provider must be openai or hashing, got %q", c.Embedding.Provider)
	}
	switch c.Server.MCPTransport {
	case "http", "stdio":
	default:
		return fmt.Errorf("config: server.mcp_transport must be http or stdio, got %q", c.Server.MCPTransport)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("config: chunk overlap %d must be smaller than chunk size %d",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
