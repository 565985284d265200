// Package rag defines the retrieval data model and the vector index
// abstraction the pipeline is built on. Concrete storage lives in the
// Qdrant-backed implementation; consumers depend only on the interfaces
// here so tests can substitute fakes.
package rag

import "context"

// Collection names in the vector store. Courses and files are metadata-only
// collections (no vectors); chunks carry the embedding payload.
const (
	CoursesCollection = "compass_courses"
	FilesCollection   = "compass_files"
	ChunksCollection  = "compass_chunks"
)

// Course is a metadata record for one course.
type Course struct {
	// Key is the deterministic UUID identifying this course record.
	Key string
	// CourseID is the upstream numeric course identifier.
	CourseID int64
	// Name is the human-readable course title.
	Name string
}

// FileRecord is a metadata record for one file belonging to a course.
type FileRecord struct {
	// Key is the deterministic UUID identifying this file record.
	Key string
	// FileID is the upstream numeric file identifier.
	FileID int64
	// CourseID is the owning course's upstream identifier.
	CourseID int64
	// Name is the display name of the file, extension included.
	Name string
	// ContentType is the upstream MIME type, when known.
	ContentType string
}

// Chunk is one indexed unit of text with its position within the source file.
type Chunk struct {
	// Key is the deterministic UUID identifying this chunk.
	Key string
	// Text is the chunk content.
	Text string
	// Index is the chunk's zero-based position within its file. Indices are
	// contiguous per file: only chunks that were embedded successfully
	// consume a position.
	Index int
	// FileID is the owning file's upstream identifier.
	FileID int64
	// CourseID is the owning course's upstream identifier.
	CourseID int64
	// FileName is the display name of the owning file, carried on the chunk
	// so search results can cite their source without a second lookup.
	FileName string
	// SourceLocation describes where in the file the text came from, e.g.
	// "Slide 3" or "Page 12". Empty when the format has no subdivisions.
	SourceLocation string
	// Vector is the chunk's embedding. Nil on records read back from a
	// payload-only fetch.
	Vector []float32
}

// ScoredChunk is a chunk returned from a search, annotated with its
// relevance score. Context chunks pulled in around a hit carry a zero score.
type ScoredChunk struct {
	Chunk
	Score float32
}

// SearchFilter narrows a query to a subset of the index.
type SearchFilter struct {
	// CourseID restricts results to one course when non-zero.
	CourseID int64
}

// Embedder converts text into vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the width of the vectors this embedder produces.
	Dimensions() int
}

// VectorIndex is the storage contract for the retrieval pipeline. All writes
// are idempotent upserts keyed by deterministic UUIDs.
type VectorIndex interface {
	// EnsureSchema creates the course, file, and chunk collections if they
	// do not already exist.
	EnsureSchema(ctx context.Context) error
	// UpsertCourses writes course metadata records.
	UpsertCourses(ctx context.Context, courses []Course) error
	// UpsertFiles writes file metadata records.
	UpsertFiles(ctx context.Context, files []FileRecord) error
	// UpsertChunks writes embedded chunks.
	UpsertChunks(ctx context.Context, chunks []Chunk) error
	// HasChunks reports whether any chunks exist for the given file.
	HasChunks(ctx context.Context, fileID int64) (bool, error)
	// FetchChunk retrieves the chunk at an exact (file, index) coordinate,
	// optionally restricted by filter. Returns ok=false when absent.
	FetchChunk(ctx context.Context, fileID int64, index int, filter SearchFilter) (Chunk, bool, error)
	// HybridQuery runs a blended lexical and vector search. Alpha selects
	// the mix: 0 is purely lexical, 1 purely vector.
	HybridQuery(ctx context.Context, query string, vector []float32, limit int, alpha float32, filter SearchFilter) ([]ScoredChunk, error)
	// Close releases the underlying connection.
	Close() error
}
