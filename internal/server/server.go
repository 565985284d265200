// Package server implements the HTTP server that exposes search, question
// answering, and ingestion over a REST API. The server is started by the
// `compass serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/prompt"
	"github.com/coursecompass/compass-go/internal/rag"
	"github.com/coursecompass/compass-go/internal/search"
)

// New constructs a Server. srch must not be nil; ing and gen may be nil, in
// which case their endpoints respond 503.
func New(srch Searcher, ing Ingester, gen Generator, cfg *Config) (*Server, error) {
	if srch == nil {
		return nil, fmt.Errorf("server: searcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// ingestion and answer generation can run long
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		searcher:  srch,
		ingester:  ing,
		generator: gen,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.Registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: COMPASS_API_KEY not set — API authentication is disabled")
	}
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", protected("search", s.handleSearch))
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	// window and alpha are pointers so an explicit 0 (no expansion, pure
	// lexical) stays distinguishable from an omitted field
	opts := search.Options{
		Limit:    req.Limit,
		Window:   search.DefaultWindow,
		Alpha:    search.DefaultAlpha,
		CourseID: req.CourseID,
	}
	if req.Window != nil {
		opts.Window = *req.Window
	}
	if req.Alpha != nil {
		opts.Alpha = *req.Alpha
	}

	start := time.Now()
	results, err := s.searcher.Search(r.Context(), req.Query, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.searchDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(results))}
	for _, c := range results {
		resp.Results = append(resp.Results, searchResult{
			Text:           c.Text,
			FileName:       c.FileName,
			SourceLocation: c.SourceLocation,
			FileID:         c.FileID,
			ChunkIndex:     c.Index,
			Score:          c.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAsk handles POST /api/ask: retrieve, assemble, generate.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		http.Error(w, "answer generation is not configured", http.StatusServiceUnavailable)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	answer, sources, err := s.ask(r.Context(), req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.FromContext(r.Context()).Error("ask failed", slog.Any("error", err))
		http.Error(w, "answer generation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer, Sources: sources})
}

func (s *Server) ask(ctx context.Context, req askRequest) (string, []string, error) {
	chunks, err := s.searcher.Search(ctx, req.Question, search.Options{
		Limit:    search.DefaultLimit,
		Window:   search.DefaultWindow,
		Alpha:    search.DefaultAlpha,
		CourseID: req.CourseID,
	})
	if err != nil {
		return "", nil, fmt.Errorf("retrieve context: %w", err)
	}

	maxChunks := prompt.MaxChunks(search.DefaultLimit, search.DefaultWindow)
	assembled := prompt.Assemble(req.Question, chunks, maxChunks)
	answer, err := s.generator.Generate(ctx, assembled)
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, sourceLabels(chunks), nil
}

// sourceLabels returns the distinct citation labels for a chunk set, in a
// stable order.
func sourceLabels(chunks []rag.ScoredChunk) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, c := range chunks {
		label := c.FileName
		if c.SourceLocation != "" {
			label = fmt.Sprintf("%s (%s)", c.FileName, c.SourceLocation)
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// handleIngest handles POST /api/ingest. The response is the full ingestion
// report, including per-file outcomes.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		http.Error(w, "ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CourseID == 0 {
		http.Error(w, "course_id is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	report, err := s.ingester.Ingest(r.Context(), req.CourseID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ingestRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.ingestDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.FromContext(r.Context()).Error("ingest failed",
			slog.Int64("course_id", req.CourseID),
			slog.Any("error", err),
		)
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
