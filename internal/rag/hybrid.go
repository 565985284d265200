package rag

import "strings"

// hybridCandidate accumulates the per-source scores for one chunk during a
// hybrid query merge.
type hybridCandidate struct {
	chunk   Chunk
	dense   float32
	lexical float32
}

// lexicalScore measures query/text term overlap: the fraction of distinct
// query terms that appear in the text. Matching is case-insensitive on
// whitespace-split terms. Returns 0 for an empty query.
func lexicalScore(query, text string) float32 {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		terms[w] = true
	}
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if terms[w] {
			present[w] = true
		}
	}
	return float32(len(present)) / float32(len(terms))
}
