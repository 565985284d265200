package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/chunker"
	"github.com/coursecompass/compass-go/internal/embedder"
	"github.com/coursecompass/compass-go/internal/extract"
	"github.com/coursecompass/compass-go/internal/ingestion"
	"github.com/coursecompass/compass-go/internal/logging"
)

// NewIngestCmd constructs the `compass ingest` command, which runs the
// extraction/chunking/embedding pipeline for one course and indexes the
// results into Qdrant.
func NewIngestCmd() *cobra.Command {
	var courseID int64

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one course's downloaded files into the vector store",
		Long: `Extract text from a course's downloaded files, chunk it by semantic
similarity, embed the chunks, and index everything into the Qdrant vector
store. Files whose chunks are already indexed are skipped; unsupported file
types are recorded as metadata only.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Backend-specific overrides (see README)

Examples:
  compass ingest --course 4213
  CHUNK_SIMILARITY_THRESHOLD=0.7 compass ingest --course 4213`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if courseID == 0 {
				return fmt.Errorf("ingest: --course is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")))

			idx, err := newIndex()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = idx.Close() }()

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = cat.Close() }()

			threshold := getEnvFloat32("CHUNK_SIMILARITY_THRESHOLD", chunker.DefaultThreshold)
			chk, err := chunker.New(emb, threshold)
			if err != nil {
				return fmt.Errorf("ingest: failed to create chunker: %w", err)
			}

			coord := ingestion.NewCoordinator(idx, emb, chk, extract.NewRegistry(), cat)

			input, err := courseInput(ctx, cat, courseID)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting ingestion",
				slog.Int64("course_id", input.ID),
				slog.String("course", input.Name),
				slog.Int("files", len(input.Files)),
			)

			report, err := coord.IngestCourse(ctx, input)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int64("course_id", report.CourseID),
				slog.Int("files", len(report.Files)),
				slog.Int("chunks_indexed", report.ChunksIndexed),
			)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Course ID to ingest (required)")
	_ = cmd.MarkFlagRequired("course")

	return cmd
}
