// Package search answers queries against the chunk index. Results can be
// expanded with the chunks surrounding each hit so the caller sees enough of
// the source document to make sense of a match.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/rag"
)

// Conventional tuning values. The CLI flags and the HTTP API fall back to
// these when a request leaves the field unset; Search itself honors whatever
// Options it is handed, zero values included.
const (
	DefaultLimit  = 5
	DefaultWindow = 1
	DefaultAlpha  = 0.5
)

// Options tunes one search.
type Options struct {
	// Limit is the maximum number of direct hits (zero or negative means 5).
	Limit int
	// Window is how many neighboring chunks to pull in on each side of a
	// hit. Zero disables expansion and keeps relevance order; negative is
	// treated as zero.
	Window int
	// Alpha blends lexical and vector scoring: 0 is purely lexical, 1
	// purely vector.
	Alpha float32
	// CourseID restricts results to one course when non-zero.
	CourseID int64
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Window < 0 {
		o.Window = 0
	}
	return o
}

// Searcher runs hybrid queries with context expansion.
type Searcher struct {
	index    rag.VectorIndex
	embedder rag.Embedder
}

// New constructs a Searcher.
func New(index rag.VectorIndex, embedder rag.Embedder) *Searcher {
	return &Searcher{index: index, embedder: embedder}
}

// Search runs a hybrid query for the given text. With a context window, each
// hit is expanded with its neighboring chunks and the combined set is
// returned in document order (file, then chunk position); without one, hits
// are returned in relevance order.
//
// Search degrades rather than fails: if the query cannot be embedded, an
// empty result is returned and the problem logged.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]rag.ScoredChunk, error) {
	opts = opts.withDefaults()
	log := logging.FromContext(ctx)

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		log.Warn("query embedding failed, returning no results", slog.String("error", err.Error()))
		return nil, nil
	}
	if len(vectors) != 1 {
		log.Warn("query embedding returned unexpected vector count", slog.Int("count", len(vectors)))
		return nil, nil
	}

	filter := rag.SearchFilter{CourseID: opts.CourseID}
	hits, err := s.index.HybridQuery(ctx, query, vectors[0], opts.Limit, opts.Alpha, filter)
	if err != nil {
		return nil, fmt.Errorf("search: hybrid query: %w", err)
	}
	if opts.Window == 0 || len(hits) == 0 {
		return hits, nil
	}

	// expansion dedups by chunk key: a neighbor that is itself a hit keeps
	// its score
	collected := make(map[string]rag.ScoredChunk, len(hits))
	for _, h := range hits {
		collected[h.Key] = h
	}
	for _, h := range hits {
		for off := 1; off <= opts.Window; off++ {
			for _, idx := range []int{h.Index - off, h.Index + off} {
				if idx < 0 {
					continue
				}
				s.addNeighbor(ctx, log, collected, h.FileID, idx, filter)
			}
		}
	}

	out := make([]rag.ScoredChunk, 0, len(collected))
	for _, c := range collected {
		out = append(out, c)
	}
	// document order so expanded context reads naturally
	sort.Slice(out, func(i, j int) bool {
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (s *Searcher) addNeighbor(ctx context.Context, log *slog.Logger, collected map[string]rag.ScoredChunk, fileID int64, index int, filter rag.SearchFilter) {
	chunk, ok, err := s.index.FetchChunk(ctx, fileID, index, filter)
	if err != nil {
		log.Warn("neighbor fetch failed",
			slog.Int64("file_id", fileID),
			slog.Int("chunk_index", index),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		return
	}
	if _, exists := collected[chunk.Key]; exists {
		return
	}
	collected[chunk.Key] = rag.ScoredChunk{Chunk: chunk}
}
