package server

import (
	"context"
	"fmt"
	"net/http"
)

// IndexPinger probes the vector index. It satisfies the Pinger interface and
// is used by GET /api/ready. The rag.QdrantIndex Ping method plugs in
// directly.
type IndexPinger struct {
	// ping is the probe function, e.g. (*rag.QdrantIndex).Ping.
	ping func(ctx context.Context) error
}

// NewIndexPinger constructs an IndexPinger from a probe function.
func NewIndexPinger(ping func(ctx context.Context) error) *IndexPinger {
	return &IndexPinger{ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "qdrant" }

// Ping runs the probe function.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes an embedding backend over HTTP. For Ollama this is a
// GET against the server root, which responds without loading a model.
type EmbedderPinger struct {
	// url is the endpoint probed with a plain GET.
	url string
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewEmbedderPinger constructs an EmbedderPinger for the given URL and label.
func NewEmbedderPinger(url, name string) *EmbedderPinger {
	return &EmbedderPinger{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping issues a GET against the backend and accepts any 2xx or 3xx response.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
