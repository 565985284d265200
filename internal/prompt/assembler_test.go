package prompt

import (
	"strings"
	"testing"

	"github.com/coursecompass/compass-go/internal/rag"
)

func TestMaxChunks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		limit, window, want int
	}{
		{5, 1, 15},
		{5, 0, 5},
		{3, 2, 15},
		{1, 1, 3},
	}
	for _, tc := range cases {
		if got := MaxChunks(tc.limit, tc.window); got != tc.want {
			t.Errorf("MaxChunks(%d, %d) = %d, want %d", tc.limit, tc.window, got, tc.want)
		}
	}
}

func TestAssemble_CitesSlideLocation(t *testing.T) {
	t.Parallel()

	got := Assemble("What is a heap?", []rag.ScoredChunk{
		{Chunk: rag.Chunk{Text: "A heap is a tree-shaped priority queue.", FileName: "week3.pptx", SourceLocation: "Slide 7"}},
	}, 0)

	if !strings.Contains(got, "[Source: week3.pptx (Slide 7)]") {
		t.Errorf("missing slide citation in prompt:\n%s", got)
	}
	if !strings.Contains(got, "A heap is a tree-shaped priority queue.") {
		t.Errorf("missing chunk text in prompt:\n%s", got)
	}
	if !strings.HasSuffix(got, "Question: What is a heap?") {
		t.Errorf("prompt must end with the question:\n%s", got)
	}
}

func TestAssemble_CitationWithoutLocation(t *testing.T) {
	t.Parallel()

	got := Assemble("q", []rag.ScoredChunk{
		{Chunk: rag.Chunk{Text: "Grading policy.", FileName: "syllabus.txt"}},
	}, 0)

	if !strings.Contains(got, "[Source: syllabus.txt]") {
		t.Errorf("expected bare file citation:\n%s", got)
	}
	if strings.Contains(got, "()") {
		t.Errorf("empty location must not render parentheses:\n%s", got)
	}
}

func TestAssemble_CapsChunks(t *testing.T) {
	t.Parallel()

	chunks := make([]rag.ScoredChunk, 10)
	for i := range chunks {
		chunks[i] = rag.ScoredChunk{Chunk: rag.Chunk{Text: "chunk", FileName: "f.txt"}}
	}

	got := Assemble("q", chunks, 4)
	if n := strings.Count(got, "[Source:"); n != 4 {
		t.Errorf("expected 4 chunks after cap, found %d citations", n)
	}
}

func TestAssemble_NoCapWhenZero(t *testing.T) {
	t.Parallel()

	chunks := make([]rag.ScoredChunk, 3)
	for i := range chunks {
		chunks[i] = rag.ScoredChunk{Chunk: rag.Chunk{Text: "chunk", FileName: "f.txt"}}
	}

	got := Assemble("q", chunks, 0)
	if n := strings.Count(got, "[Source:"); n != 3 {
		t.Errorf("expected all 3 chunks with no cap, found %d", n)
	}
}
