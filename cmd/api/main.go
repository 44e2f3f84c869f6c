package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/tracker"
	"github.com/zombar/tracker/api"
	"github.com/zombar/tracker/db"
	"github.com/zombar/tracker/github"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("tracker service initializing", "version", "1.0.0")

	// Default values
	defaultPort := getEnv("PORT", "4000")
	defaultOllamaURL := getEnv("OLLAMA_URL", "http://localhost:11434")
	defaultOllamaModel := getEnv("OLLAMA_MODEL", "llama3.2")
	githubToken := os.Getenv("GITHUB_TOKEN")

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	ollamaURL := flag.String("ollama-url", defaultOllamaURL, "Ollama base URL")
	ollamaModel := flag.String("ollama-model", defaultOllamaModel, "Ollama model to use for text generation")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	disableAI := flag.Bool("disable-ai", false, "Disable AI-assisted keyword extraction and insights")
	disableTitleFetch := flag.Bool("disable-title-fetch", false, "Disable fetching pages to recover missing titles")
	flag.Parse()

	if githubToken == "" {
		logger.Warn("GITHUB_TOKEN not set, repository search will run unauthenticated with lower rate limits")
	}

	// PostgreSQL database configuration (required)
	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		logger.Error("DB_HOST environment variable is required")
		os.Exit(1)
	}

	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "tracker")
	dbPassword := getEnv("DB_PASSWORD", "tracker_dev_pass")
	dbName := getEnv("DB_NAME", "tracker")

	dbConfig := db.Config{
		DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	}
	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)

	trackerConfig := tracker.DefaultConfig()
	trackerConfig.FetchTitles = !*disableTitleFetch

	githubConfig := github.DefaultConfig()
	githubConfig.Token = githubToken

	config := api.Config{
		Addr:          ":" + *port,
		DBConfig:      dbConfig,
		TrackerConfig: trackerConfig,
		GitHubConfig:  githubConfig,
		OllamaBaseURL: *ollamaURL,
		OllamaModel:   *ollamaModel,
		EnableAI:      !*disableAI,
		CORSEnabled:   !*disableCORS,
	}

	// Create server
	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Refresh database pool metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			server.UpdateDBMetrics()
		}
	}()
	logger.Info("database metrics initialized")

	// Start server in a goroutine
	go func() {
		logger.Info("tracker service starting",
			"port", *port,
			"database_host", dbHost,
			"database_name", dbName,
			"ollama_url", *ollamaURL,
			"ollama_model", *ollamaModel,
			"ai_enabled", !*disableAI,
			"title_fetch_enabled", !*disableTitleFetch,
			"github_authenticated", githubToken != "",
		)

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
