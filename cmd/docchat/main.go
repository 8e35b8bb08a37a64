// Package main provides the docchat CLI: ingest documents and ask questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/app"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with PDF and Markdown documents",
	Long: `CLI for ingesting documents into the vector store and asking questions about them.

Environment variables:
  VECTOR_STORE       qdrant (default) or memory
  QDRANT_HOST        Qdrant hostname (default: localhost)
  QDRANT_PORT        Qdrant gRPC port (default: 6334)
  EMBEDDING_API_KEY  key for the embedding endpoint (or MISTRAL_API_KEY)
  LLM_API_KEY        key for the completion endpoint (or DEEPSEEK_API_KEY)
  GITHUB_TOKEN       GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $CONFIG_FILE)")
	rootCmd.AddCommand(ingestCmd, askCmd, listCmd, deleteCmd, collectionsCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// open loads configuration and connects to the store. Logs go to stderr as text.
func open(cmd *cobra.Command) (*config.Config, *app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(cmd.Context(), cfg, logger.New(cfg.Log.Level, "text"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}
