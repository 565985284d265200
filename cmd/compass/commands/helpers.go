package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/coursecompass/compass-go/internal/catalog"
	"github.com/coursecompass/compass-go/internal/embedder"
	"github.com/coursecompass/compass-go/internal/ingestion"
	"github.com/coursecompass/compass-go/internal/rag"
)

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// openCatalog opens the local SQLite catalog. COMPASS_CATALOG_DB overrides
// the default path (~/.compass/catalog.db).
func openCatalog() (*catalog.Catalog, error) {
	path := os.Getenv("COMPASS_CATALOG_DB")
	if path == "" {
		var err error
		path, err = catalog.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve catalog path: %w", err)
		}
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog at %s: %w", path, err)
	}
	return cat, nil
}

// downloadDir resolves the root directory for downloaded course files.
// COMPASS_DOWNLOAD_DIR overrides the default (~/.compass/files).
func downloadDir() (string, error) {
	if dir := os.Getenv("COMPASS_DOWNLOAD_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".compass", "files"), nil
}

// newIndex connects to Qdrant using QDRANT_* environment variables. The
// chunk collection's vector size follows the configured embedding backend.
func newIndex() (*rag.QdrantIndex, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	idx, err := rag.NewQdrantIndex(rag.QdrantConfig{
		Host:       host,
		Port:       port,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		VectorSize: embedder.DefaultDimensions(backend),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return idx, nil
}

// courseInput assembles the ingestion input for one course from the catalog.
func courseInput(ctx context.Context, cat *catalog.Catalog, courseID int64) (ingestion.CourseInput, error) {
	courses, err := cat.Courses(ctx)
	if err != nil {
		return ingestion.CourseInput{}, fmt.Errorf("list courses: %w", err)
	}

	input := ingestion.CourseInput{ID: courseID}
	found := false
	for _, c := range courses {
		if c.ID == courseID {
			input.Name = c.Name
			found = true
			break
		}
	}
	if !found {
		return ingestion.CourseInput{}, fmt.Errorf("course %d not found in catalog — run 'compass sync' first", courseID)
	}

	files, err := cat.FilesForCourse(ctx, courseID)
	if err != nil {
		return ingestion.CourseInput{}, fmt.Errorf("list files for course %d: %w", courseID, err)
	}
	for _, f := range files {
		input.Files = append(input.Files, ingestion.FileInput{
			ID:          f.ID,
			Name:        f.Name,
			ContentType: f.ContentType,
			Path:        f.LocalPath,
		})
	}
	return input, nil
}

// catalogIngester adapts the catalog plus a coordinator to the single-method
// ingestion interface the HTTP server expects.
type catalogIngester struct {
	cat   *catalog.Catalog
	coord *ingestion.Coordinator
}

// Ingest resolves the course's files from the catalog and runs the
// ingestion coordinator.
func (ci *catalogIngester) Ingest(ctx context.Context, courseID int64) (*ingestion.Report, error) {
	input, err := courseInput(ctx, ci.cat, courseID)
	if err != nil {
		return nil, err
	}
	return ci.coord.IngestCourse(ctx, input)
}
