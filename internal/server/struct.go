package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coursecompass/compass-go/internal/ingestion"
	"github.com/coursecompass/compass-go/internal/rag"
	"github.com/coursecompass/compass-go/internal/search"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs the
	// GET /metrics endpoint. If nil a private registry is created, which
	// keeps unit tests hermetic.
	Registry *prometheus.Registry
}

// Searcher is the interface handleSearch and handleAsk call to retrieve
// chunks. *search.Searcher satisfies it; tests inject a fake.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]rag.ScoredChunk, error)
}

// Ingester is the interface handleIngest calls to run a course ingestion.
// The CLI wires an adapter that resolves the course's files from the catalog.
type Ingester interface {
	Ingest(ctx context.Context, courseID int64) (*ingestion.Report, error)
}

// Generator is the interface handleAsk calls to produce an answer from an
// assembled prompt. *answer.Gemini satisfies it.
type Generator interface {
	Generate(ctx context.Context, assembled string) (string, error)
}

// Server is the HTTP front end for search, ask, and ingestion.
type Server struct {
	// searcher serves retrieval for /api/search and /api/ask.
	searcher Searcher
	// ingester serves /api/ingest. Nil disables the endpoint (503).
	ingester Ingester
	// generator serves /api/ask. Nil disables the endpoint (503).
	generator Generator
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the search text.
	Query string `json:"query"`
	// CourseID restricts the search to one course when non-zero.
	CourseID int64 `json:"course_id,omitempty"`
	// Limit caps the number of direct hits (default 5).
	Limit int `json:"limit,omitempty"`
	// Window is the context expansion width. 0 disables expansion and keeps
	// relevance order; omitted defaults to 1.
	Window *int `json:"window,omitempty"`
	// Alpha blends lexical (0) and vector (1) scoring; omitted defaults to 0.5.
	Alpha *float32 `json:"alpha,omitempty"`
}

// searchResult is one chunk in a search response.
type searchResult struct {
	Text           string  `json:"text"`
	FileName       string  `json:"file_name"`
	SourceLocation string  `json:"source_location,omitempty"`
	FileID         int64   `json:"file_id"`
	ChunkIndex     int     `json:"chunk_index"`
	Score          float32 `json:"score"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// CourseID restricts retrieval to one course when non-zero.
	CourseID int64 `json:"course_id,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Sources lists the citations of the chunks the answer drew on.
	Sources []string `json:"sources"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// CourseID identifies the course to ingest.
	CourseID int64 `json:"course_id"`
}
