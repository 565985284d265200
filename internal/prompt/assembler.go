// Package prompt assembles the context block and instructions sent to the
// answer model. Each chunk is labeled with its source file and location so
// the model can cite where its answer came from.
package prompt

import (
	"fmt"
	"strings"

	"github.com/coursecompass/compass-go/internal/rag"
)

// SystemInstruction primes the model to ground its answers in the provided
// context and cite sources.
const SystemInstruction = "You are a helpful AI assistant that wants to provide where the source is. " +
	"Answer the question using only the provided course material. " +
	"Cite the source file and location for the material you use. " +
	"If the context does not contain the answer, say so."

// MaxChunks returns how many chunks an assembled prompt may hold for a
// search configured with the given limit and context window: every hit plus
// its full neighborhood on both sides.
func MaxChunks(limit, window int) int {
	return limit * (1 + 2*window)
}

// Assemble builds the user prompt for a question and its retrieved chunks.
// Chunks beyond maxChunks are dropped from the end; pass 0 for no cap.
func Assemble(question string, chunks []rag.ScoredChunk, maxChunks int) string {
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}

	var b strings.Builder
	b.WriteString("Context from course material:\n\n")
	for _, c := range chunks {
		b.WriteString(formatSource(c.Chunk))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// formatSource renders a chunk's citation label, e.g.
// "[Source: week1.pptx (Slide 3)]" or "[Source: syllabus.txt]".
func formatSource(c rag.Chunk) string {
	if c.SourceLocation == "" {
		return fmt.Sprintf("[Source: %s]", c.FileName)
	}
	return fmt.Sprintf("[Source: %s (%s)]", c.FileName, c.SourceLocation)
}
