// Package main runs the docchat HTTP API and MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/docchat/internal/api"
	"github.com/bull/docchat/internal/app"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/logger"
	mcpserver "github.com/bull/docchat/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogger := logger.New(cfg.Log.Level, cfg.Log.Format)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.Build(ctx, cfg, slogger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	server, err := mcpserver.NewServer(&mcpserver.Config{Service: a.Service, Logger: slogger})
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	gin.SetMode(cfg.Server.GinMode)
	router := api.NewRouter(a.Service, cfg.Server, slogger, api.Options{
		Health:  mcpserver.NewHealthHandler(a.Service),
		MCP:     mcpserver.NewHTTPHandler(server, nil),
		Landing: mcpserver.NewLandingHandler(),
	})

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.MCPTransport == "stdio" {
		// stdout belongs to the MCP client; the API still serves on the port
		go serve(httpServer, slogger.Error)
		slogger.Info("Starting MCP server (stdio mode)", "addr", httpServer.Addr)
		if err := server.Run(ctx); err != nil {
			slogger.Error("MCP server error", "error", err)
			shutdown(httpServer)
			os.Exit(1)
		}
		shutdown(httpServer)
		return
	}

	go func() {
		<-ctx.Done()
		shutdown(httpServer)
	}()

	slogger.Info("Starting HTTP server", "addr", httpServer.Addr, "documents", len(a.Service.Documents()))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
	slogger.Info("Server stopped")
}

func serve(s *http.Server, logError func(msg string, args ...any)) {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logError("HTTP server error", "error", err)
	}
}

func shutdown(s *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
