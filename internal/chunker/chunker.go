// Package chunker splits document text into semantically coherent chunks.
// Text is tokenized into sentences, each sentence is embedded, and adjacent
// sentences are greedily merged while their similarity to the running chunk
// centroid stays above a threshold.
package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/coursecompass/compass-go/internal/rag"
)

// DefaultThreshold is the similarity cutoff used when none is configured.
const DefaultThreshold = 0.6

// Chunker groups sentences into chunks using embedding similarity.
type Chunker struct {
	embedder  rag.Embedder
	tokenizer *sentences.DefaultSentenceTokenizer
	// threshold is the strict lower bound on cosine similarity for a
	// sentence to join the current chunk. A sentence exactly at the
	// threshold starts a new chunk.
	threshold float32
}

// New constructs a Chunker with the given embedder and similarity threshold.
func New(embedder rag.Embedder, threshold float32) (*Chunker, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("chunker: load sentence tokenizer: %w", err)
	}
	return &Chunker{
		embedder:  embedder,
		tokenizer: tokenizer,
		threshold: threshold,
	}, nil
}

// Chunk splits text into semantically grouped chunks. Returns nil for text
// that contains no sentences.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]string, error) {
	sents := c.splitSentences(text)
	if len(sents) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.Embed(ctx, sents)
	if err != nil {
		return nil, fmt.Errorf("chunker: embed %d sentences: %w", len(sents), err)
	}
	if len(vectors) != len(sents) {
		return nil, fmt.Errorf("chunker: expected %d vectors, got %d", len(sents), len(vectors))
	}

	var chunks []string
	current := sents[0]
	centroid := append([]float32(nil), vectors[0]...)

	for i := 1; i < len(sents); i++ {
		if cosineSimilarity(centroid, vectors[i]) > c.threshold {
			current = current + " " + sents[i]
			centroid = midpoint(centroid, vectors[i])
			continue
		}
		chunks = append(chunks, current)
		current = sents[i]
		centroid = append(centroid[:0], vectors[i]...)
	}
	chunks = append(chunks, current)

	return chunks, nil
}

// splitSentences tokenizes text into trimmed, non-empty sentences.
func (c *Chunker) splitSentences(text string) []string {
	var out []string
	for _, s := range c.tokenizer.Tokenize(text) {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// midpoint returns the elementwise mean of the running centroid and the new
// vector. The centroid is a two-point running mean: each merge averages the
// previous centroid with the incoming sentence vector, which weights recent
// sentences more heavily than a full mean would.
func midpoint(centroid, vec []float32) []float32 {
	out := make([]float32, len(centroid))
	for i := range centroid {
		out[i] = (centroid[i] + vec[i]) / 2
	}
	return out
}

// cosineSimilarity returns the cosine of the angle between a and b. Returns 0
// when either vector has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
