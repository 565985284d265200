package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/answer"
	"github.com/coursecompass/compass-go/internal/chunker"
	"github.com/coursecompass/compass-go/internal/embedder"
	"github.com/coursecompass/compass-go/internal/extract"
	"github.com/coursecompass/compass-go/internal/ingestion"
	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/search"
	"github.com/coursecompass/compass-go/internal/server"
)

// NewServeCmd constructs the `compass serve` command, which starts the HTTP
// server exposing search, ask, and ingestion over a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the compass HTTP server",
		Long: `Start the compass HTTP server on localhost.

The server exposes POST /api/search, /api/ask, and /api/ingest, plus
health, readiness, and Prometheus metrics endpoints. Protect the API
with COMPASS_API_KEY; without it authentication is disabled.

Examples:
  compass serve
  compass serve --port 9090
  COMPASS_API_KEY=sekrit compass serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
			log.Info("serve starting", slog.String("embedding_provider", backend))

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			idx, err := newIndex()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = idx.Close() }()

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = cat.Close() }()

			threshold := getEnvFloat32("CHUNK_SIMILARITY_THRESHOLD", chunker.DefaultThreshold)
			chk, err := chunker.New(emb, threshold)
			if err != nil {
				return fmt.Errorf("serve: failed to create chunker: %w", err)
			}

			coord := ingestion.NewCoordinator(idx, emb, chk, extract.NewRegistry(), cat)
			srch := search.New(idx, emb)

			// Answer generation is optional — without a Gemini key the /api/ask
			// endpoint responds 503 while search and ingest keep working.
			var gen server.Generator
			gemini, err := answer.NewGemini(ctx, "", getEnvOrDefault("GEMINI_MODEL", ""))
			if err != nil {
				log.Warn("answer generation disabled", slog.Any("error", err))
			} else {
				gen = gemini
			}

			pingers := []server.Pinger{server.NewIndexPinger(idx.Ping)}
			if backend == "ollama" {
				ollamaHost := getEnvOrDefault("EMBEDDING_ENDPOINT", getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
				pingers = append(pingers, server.NewEmbedderPinger(ollamaHost, "ollama"))
			}

			srv, err := server.New(srch, &catalogIngester{cat: cat, coord: coord}, gen, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("COMPASS_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("COMPASS_SERVER_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("COMPASS_SERVER_PORT", 8080), "TCP port to listen on")

	return cmd
}
