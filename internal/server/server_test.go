package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coursecompass/compass-go/internal/ingestion"
	"github.com/coursecompass/compass-go/internal/rag"
	"github.com/coursecompass/compass-go/internal/search"
)

// fakeSearcher returns canned chunks and records the last query and options.
type fakeSearcher struct {
	chunks   []rag.ScoredChunk
	err      error
	lastQ    string
	lastOpts search.Options
}

func (f *fakeSearcher) Search(_ context.Context, query string, opts search.Options) ([]rag.ScoredChunk, error) {
	f.lastQ = query
	f.lastOpts = opts
	return f.chunks, f.err
}

// fakeIngester returns a canned report and records the course ID it was
// invoked with.
type fakeIngester struct {
	report *ingestion.Report
	err    error
	lastID int64
}

func (f *fakeIngester) Ingest(_ context.Context, courseID int64) (*ingestion.Report, error) {
	f.lastID = courseID
	return f.report, f.err
}

// fakeGenerator echoes back the assembled prompt it received.
type fakeGenerator struct {
	answer string
	err    error
	lastIn string
}

func (f *fakeGenerator) Generate(_ context.Context, assembled string) (string, error) {
	f.lastIn = assembled
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// newTestServer builds a Server with a private metrics registry so tests do
// not collide on the default registry.
func newTestServer(t *testing.T, srch Searcher, ing Ingester, gen Generator, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Registry = prometheus.NewRegistry()
	s, err := New(srch, ing, gen, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleSearch_ReturnsResults(t *testing.T) {
	t.Parallel()

	srch := &fakeSearcher{chunks: []rag.ScoredChunk{
		{Chunk: rag.Chunk{Key: "a", Text: "neural networks", FileID: 7, Index: 2, FileName: "lecture.pptx", SourceLocation: "Slide 3"}, Score: 0.91},
		{Chunk: rag.Chunk{Key: "b", Text: "backpropagation", FileID: 7, Index: 3, FileName: "lecture.pptx", SourceLocation: "Slide 4"}, Score: 0},
	}}
	s := newTestServer(t, srch, nil, nil, nil)

	w := postJSON(t, s.Handler(), "/api/search", searchRequest{Query: "neural nets", CourseID: 42, Limit: 3})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].FileName != "lecture.pptx" || resp.Results[0].SourceLocation != "Slide 3" {
		t.Errorf("unexpected first result: %+v", resp.Results[0])
	}
	if resp.Results[0].Score != 0.91 {
		t.Errorf("expected score 0.91, got %v", resp.Results[0].Score)
	}
	if srch.lastQ != "neural nets" {
		t.Errorf("expected query passed through, got %q", srch.lastQ)
	}
	if srch.lastOpts.CourseID != 42 || srch.lastOpts.Limit != 3 {
		t.Errorf("expected options passed through, got %+v", srch.lastOpts)
	}
	// omitted window and alpha fall back to the conventional defaults
	if srch.lastOpts.Window != search.DefaultWindow || srch.lastOpts.Alpha != search.DefaultAlpha {
		t.Errorf("expected default window/alpha, got %+v", srch.lastOpts)
	}
}

func TestHandleSearch_ExplicitZeroWindowAndAlpha(t *testing.T) {
	t.Parallel()

	srch := &fakeSearcher{}
	s := newTestServer(t, srch, nil, nil, nil)

	window := 0
	alpha := float32(0)
	w := postJSON(t, s.Handler(), "/api/search", searchRequest{Query: "q", Window: &window, Alpha: &alpha})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// an explicit 0 means no expansion and pure lexical scoring; it must not
	// be remapped to the defaults
	if srch.lastOpts.Window != 0 {
		t.Errorf("window = %d, want 0", srch.lastOpts.Window)
	}
	if srch.lastOpts.Alpha != 0 {
		t.Errorf("alpha = %v, want 0", srch.lastOpts.Alpha)
	}
}

func TestHandleSearch_BlankQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)

	w := postJSON(t, s.Handler(), "/api/search", searchRequest{Query: "   "})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank query, got %d", w.Code)
	}
}

func TestHandleSearch_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestHandleSearch_SearchError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{err: errors.New("index unreachable")}, nil, nil, nil)

	w := postJSON(t, s.Handler(), "/api/search", searchRequest{Query: "anything"})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on search failure, got %d", w.Code)
	}
}

func TestHandleAsk_GeneratesAnswerWithSources(t *testing.T) {
	t.Parallel()

	srch := &fakeSearcher{chunks: []rag.ScoredChunk{
		{Chunk: rag.Chunk{Key: "a", Text: "gradient descent minimizes loss", FileID: 1, Index: 0, FileName: "optim.pdf", SourceLocation: "Page 2"}, Score: 0.8},
		{Chunk: rag.Chunk{Key: "b", Text: "learning rate controls step size", FileID: 1, Index: 1, FileName: "optim.pdf", SourceLocation: "Page 2"}, Score: 0.7},
		{Chunk: rag.Chunk{Key: "c", Text: "course syllabus", FileID: 2, Index: 0, FileName: "syllabus.txt"}, Score: 0.3},
	}}
	gen := &fakeGenerator{answer: "Gradient descent minimizes the loss function."}
	s := newTestServer(t, srch, nil, gen, nil)

	w := postJSON(t, s.Handler(), "/api/ask", askRequest{Question: "what is gradient descent?"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp askResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != gen.answer {
		t.Errorf("expected answer %q, got %q", gen.answer, resp.Answer)
	}
	// Duplicate (file, location) pairs collapse to one source label.
	wantSources := []string{"optim.pdf (Page 2)", "syllabus.txt"}
	if len(resp.Sources) != len(wantSources) {
		t.Fatalf("expected %d sources, got %v", len(wantSources), resp.Sources)
	}
	for i, want := range wantSources {
		if resp.Sources[i] != want {
			t.Errorf("source %d: expected %q, got %q", i, want, resp.Sources[i])
		}
	}
	// The generator must receive the retrieved context, not the bare question.
	if !strings.Contains(gen.lastIn, "gradient descent minimizes loss") {
		t.Errorf("expected assembled prompt to contain retrieved text, got %q", gen.lastIn)
	}
	if !strings.Contains(gen.lastIn, "what is gradient descent?") {
		t.Errorf("expected assembled prompt to contain the question, got %q", gen.lastIn)
	}
}

func TestHandleAsk_GeneratorNotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)

	w := postJSON(t, s.Handler(), "/api/ask", askRequest{Question: "anything"})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when generator is nil, got %d", w.Code)
	}
}

func TestHandleAsk_BlankQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, &fakeGenerator{answer: "x"}, nil)

	w := postJSON(t, s.Handler(), "/api/ask", askRequest{Question: ""})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank question, got %d", w.Code)
	}
}

func TestHandleAsk_GeneratorError(t *testing.T) {
	t.Parallel()

	srch := &fakeSearcher{chunks: []rag.ScoredChunk{
		{Chunk: rag.Chunk{Key: "a", Text: "some context", FileID: 1, FileName: "f.txt"}, Score: 0.5},
	}}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	s := newTestServer(t, srch, nil, gen, nil)

	w := postJSON(t, s.Handler(), "/api/ask", askRequest{Question: "anything"})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on generator failure, got %d", w.Code)
	}
}

func TestHandleIngest_ReturnsReport(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{report: &ingestion.Report{
		CourseID:   42,
		CourseName: "Machine Learning",
		Files: []ingestion.FileReport{
			{FileID: 7, Name: "lecture.pptx", Outcome: ingestion.OutcomeIndexed, Chunks: 12},
		},
		ChunksIndexed: 12,
	}}
	s := newTestServer(t, &fakeSearcher{}, ing, nil, nil)

	w := postJSON(t, s.Handler(), "/api/ingest", ingestRequest{CourseID: 42})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ing.lastID != 42 {
		t.Errorf("expected ingester called with course 42, got %d", ing.lastID)
	}
	var report ingestion.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ChunksIndexed != 12 || len(report.Files) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestHandleIngest_NotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)

	w := postJSON(t, s.Handler(), "/api/ingest", ingestRequest{CourseID: 42})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when ingester is nil, got %d", w.Code)
	}
}

func TestHandleIngest_MissingCourseID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, &fakeIngester{report: &ingestion.Report{}}, nil, nil)

	w := postJSON(t, s.Handler(), "/api/ingest", ingestRequest{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without course_id, got %d", w.Code)
	}
}

func TestHandleIngest_IngestError(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{err: fmt.Errorf("catalog: course not found")}
	s := newTestServer(t, &fakeSearcher{}, ing, nil, nil)

	w := postJSON(t, s.Handler(), "/api/ingest", ingestRequest{CourseID: 1})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on ingest failure, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

// TestProtectedRoutes_RequireAuth verifies end to end that the API key guards
// the mutating endpoints but not health.
func TestProtectedRoutes_RequireAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, &Config{APIKey: "sekrit"})
	h := s.Handler()

	// No token: rejected.
	w := postJSON(t, h, "/api/search", searchRequest{Query: "q"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// Correct token: accepted.
	buf, _ := json.Marshal(searchRequest{Query: "q"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(buf))
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected health to bypass auth, got %d", w.Code)
	}
}

func TestNew_RequiresSearcher(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil, &Config{Registry: prometheus.NewRegistry()}); err == nil {
		t.Error("expected error when searcher is nil")
	}
}

// TestMetrics_Endpoint verifies that handled requests show up on /metrics.
func TestMetrics_Endpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil, nil, nil)
	h := s.Handler()

	postJSON(t, h, "/api/search", searchRequest{Query: "q"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "compass_search_requests_total") {
		t.Errorf("expected search counter in metrics output, got:\n%s", body)
	}
	if !strings.Contains(body, "compass_http_requests_total") {
		t.Errorf("expected http counter in metrics output, got:\n%s", body)
	}
}
