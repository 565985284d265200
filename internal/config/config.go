// Package config provides YAML-based configuration for compass.
// Configuration is loaded with a layered precedence: defaults → .env file →
// YAML file → env vars. Environment variables always win, so existing
// workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. COMPASS_CONFIG environment variable
//  3. ~/.compass/config.yaml
//  4. ./compass.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Canvas configures the LMS connection.
	Canvas CanvasConfig `yaml:"canvas"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Chunker configures semantic chunking.
	Chunker ChunkerConfig `yaml:"chunker"`

	// Search configures retrieval behavior.
	Search SearchConfig `yaml:"search"`

	// Gemini configures the answer model.
	Gemini GeminiConfig `yaml:"gemini"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Storage configures local paths for downloads and the catalog.
	Storage StorageConfig `yaml:"storage"`
}

// CanvasConfig holds LMS connection settings.
type CanvasConfig struct {
	// BaseURL is the Canvas instance URL, e.g. "https://canvas.example.edu".
	BaseURL string `yaml:"base_url"`
	// Token is the Canvas API token. Prefer env var CANVAS_TOKEN.
	Token string `yaml:"token"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ChunkerConfig holds semantic chunking settings.
type ChunkerConfig struct {
	// SimilarityThreshold is the cosine similarity a sentence must exceed
	// to join the current chunk (0–1).
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	// Limit is the maximum number of direct hits per query.
	Limit int `yaml:"limit"`
	// Window is how many neighboring chunks to include around each hit.
	Window int `yaml:"window"`
	// Alpha blends lexical (0) and vector (1) scoring.
	Alpha float32 `yaml:"alpha"`
}

// GeminiConfig holds answer model settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var COMPASS_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// StorageConfig holds local storage settings.
type StorageConfig struct {
	// CatalogDB is the SQLite catalog database path.
	CatalogDB string `yaml:"catalog_db"`
	// DownloadDir is the root directory for downloaded course files.
	DownloadDir string `yaml:"download_dir"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"CANVAS_BASE_URL", func(c *Config) string { return c.Canvas.BaseURL }},
	{"CANVAS_TOKEN", func(c *Config) string { return c.Canvas.Token }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CHUNK_SIMILARITY_THRESHOLD", func(c *Config) string { return float32Str(c.Chunker.SimilarityThreshold) }},
	{"SEARCH_LIMIT", func(c *Config) string { return intStr(c.Search.Limit) }},
	{"SEARCH_WINDOW", func(c *Config) string { return intStr(c.Search.Window) }},
	{"SEARCH_ALPHA", func(c *Config) string { return float32Str(c.Search.Alpha) }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Gemini.Model }},
	{"COMPASS_SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"COMPASS_SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"COMPASS_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"COMPASS_CATALOG_DB", func(c *Config) string { return c.Storage.CatalogDB }},
	{"COMPASS_DOWNLOAD_DIR", func(c *Config) string { return c.Storage.DownloadDir }},
}

// Load reads an optional .env file, then a YAML config file, and applies
// non-empty values as environment variables. Existing env vars are never
// overwritten (env always wins). Returns the YAML path that was loaded, or
// empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	// .env first so YAML path resolution can use variables defined there.
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err == nil {
		log.Debug("config: loaded .env file")
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("COMPASS_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".compass", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("compass.yaml"); err == nil {
		return "compass.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
