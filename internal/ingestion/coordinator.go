// Package ingestion drives documents through extraction, semantic chunking,
// embedding, and indexing. Ingestion is idempotent end to end: identity keys
// are deterministic, so re-running a course replaces its records instead of
// duplicating them. Per-file failures are recorded in the run report and
// logged, never raised — one bad document must not sink a course.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/coursecompass/compass-go/internal/extract"
	"github.com/coursecompass/compass-go/internal/identity"
	"github.com/coursecompass/compass-go/internal/logging"
	"github.com/coursecompass/compass-go/internal/rag"
)

// Chunker splits text into semantically grouped chunks.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]string, error)
}

// Marker records that a file has been ingested. Implemented by the local
// catalog; nil disables marking.
type Marker interface {
	MarkIngested(ctx context.Context, fileID int64) error
}

// FileInput describes one file queued for ingestion.
type FileInput struct {
	// ID is the upstream file identifier.
	ID int64
	// Name is the display name, extension included.
	Name string
	// ContentType is the upstream MIME type, when known.
	ContentType string
	// Path is the local copy on disk. Empty when the file was never
	// downloaded; such files get metadata-only treatment.
	Path string
}

// CourseInput describes one course and its files queued for ingestion.
type CourseInput struct {
	ID    int64
	Name  string
	Files []FileInput
}

// Outcome classifies how one file fared during an ingestion run.
type Outcome string

const (
	// OutcomeIndexed means the file's chunks were embedded and indexed.
	OutcomeIndexed Outcome = "indexed"
	// OutcomeSkipped means chunks already existed, so chunking was skipped.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeMetadataOnly means only the file record was indexed: the
	// format is unsupported, the file was not downloaded, or it produced
	// no text.
	OutcomeMetadataOnly Outcome = "metadata_only"
	// OutcomePartial means some segments were indexed but others failed.
	OutcomePartial Outcome = "partial"
	// OutcomeError means extraction failed outright.
	OutcomeError Outcome = "error"
)

// FileReport records the result for one file.
type FileReport struct {
	FileID  int64   `json:"file_id"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Chunks  int     `json:"chunks"`
	Error   string  `json:"error,omitempty"`
}

// Report summarizes one course ingestion run.
type Report struct {
	CourseID      int64        `json:"course_id"`
	CourseName    string       `json:"course_name"`
	Files         []FileReport `json:"files"`
	ChunksIndexed int          `json:"chunks_indexed"`
	// BatchErrors lists index batch writes that failed. Records staged for a
	// failed batch were not written.
	BatchErrors []string `json:"batch_errors,omitempty"`
}

// Coordinator runs course ingestion. Concurrent calls for the same course
// are collapsed into one run; callers share its report.
type Coordinator struct {
	index    rag.VectorIndex
	embedder rag.Embedder
	chunker  Chunker
	registry *extract.Registry
	marker   Marker

	group singleflight.Group
}

// NewCoordinator wires an ingestion coordinator. marker may be nil.
func NewCoordinator(index rag.VectorIndex, embedder rag.Embedder, chunker Chunker, registry *extract.Registry, marker Marker) *Coordinator {
	return &Coordinator{
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		registry: registry,
		marker:   marker,
	}
}

// IngestCourse processes one course. Concurrent calls with the same course
// ID are serialized into a single flight; all callers receive the same
// report. Only schema/connectivity failures return an error — per-file
// problems and batch write failures land in the report.
func (c *Coordinator) IngestCourse(ctx context.Context, course CourseInput) (*Report, error) {
	v, err, _ := c.group.Do(strconv.FormatInt(course.ID, 10), func() (any, error) {
		return c.ingest(ctx, course)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (c *Coordinator) ingest(ctx context.Context, course CourseInput) (*Report, error) {
	log := logging.FromContext(ctx).With(
		slog.Int64("course_id", course.ID),
		slog.String("course", course.Name),
	)

	if err := c.index.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: ensure schema: %w", err)
	}

	report := &Report{CourseID: course.ID, CourseName: course.Name}

	files := make([]rag.FileRecord, 0, len(course.Files))
	var chunks []rag.Chunk
	var marked []int64

	for _, file := range course.Files {
		files = append(files, rag.FileRecord{
			Key:         identity.FileKey(file.ID),
			FileID:      file.ID,
			CourseID:    course.ID,
			Name:        file.Name,
			ContentType: file.ContentType,
		})

		fr := c.ingestFile(ctx, log, course.ID, file, &chunks)
		report.Files = append(report.Files, fr)
		report.ChunksIndexed += fr.Chunks
		if fr.Outcome == OutcomeIndexed || fr.Outcome == OutcomePartial {
			marked = append(marked, file.ID)
		}
	}

	// files land before their chunks so a chunk never references a file
	// record that is not yet queryable. A failed batch is recorded on the
	// report and must not block the sibling batches.
	err := c.index.UpsertCourses(ctx, []rag.Course{{
		Key:      identity.CourseKey(course.ID),
		CourseID: course.ID,
		Name:     course.Name,
	}})
	if err != nil {
		log.Warn("course upsert failed", slog.String("error", err.Error()))
		report.BatchErrors = append(report.BatchErrors, fmt.Sprintf("courses: 1 record: %v", err))
	}
	if err := c.index.UpsertFiles(ctx, files); err != nil {
		log.Warn("file batch upsert failed", slog.Int("files", len(files)), slog.String("error", err.Error()))
		report.BatchErrors = append(report.BatchErrors, fmt.Sprintf("files: %d records: %v", len(files), err))
	}
	if err := c.index.UpsertChunks(ctx, chunks); err != nil {
		log.Warn("chunk batch upsert failed", slog.Int("chunks", len(chunks)), slog.String("error", err.Error()))
		report.BatchErrors = append(report.BatchErrors, fmt.Sprintf("chunks: %d records: %v", len(chunks), err))
		// the chunk batch is all-or-nothing: nothing landed, so no file may
		// be marked ingested
		report.ChunksIndexed = 0
		marked = nil
	}

	if c.marker != nil {
		for _, id := range marked {
			if err := c.marker.MarkIngested(ctx, id); err != nil {
				log.Warn("failed to mark file ingested", slog.Int64("file_id", id), slog.String("error", err.Error()))
			}
		}
	}

	log.Info("course ingested",
		slog.Int("files", len(course.Files)),
		slog.Int("chunks", report.ChunksIndexed),
	)
	return report, nil
}

// ingestFile runs the per-file state machine and appends any produced chunks
// to out. It never returns an error: problems are captured in the report.
func (c *Coordinator) ingestFile(ctx context.Context, log *slog.Logger, courseID int64, file FileInput, out *[]rag.Chunk) FileReport {
	fr := FileReport{FileID: file.ID, Name: file.Name}
	flog := log.With(slog.Int64("file_id", file.ID), slog.String("file", file.Name))

	if !c.registry.Supported(file.Name) {
		flog.Debug("unsupported format, indexing metadata only")
		fr.Outcome = OutcomeMetadataOnly
		return fr
	}

	exists, err := c.index.HasChunks(ctx, file.ID)
	if err != nil {
		// upserts are idempotent, so chunking anyway is safe
		flog.Warn("chunk existence check failed, re-chunking", slog.String("error", err.Error()))
	}
	if exists {
		flog.Debug("chunks already indexed, skipping")
		fr.Outcome = OutcomeSkipped
		return fr
	}

	if file.Path == "" {
		flog.Warn("no local copy, indexing metadata only")
		fr.Outcome = OutcomeMetadataOnly
		return fr
	}

	segments, err := c.registry.Extract(file.Path)
	if err != nil {
		flog.Warn("extraction failed", slog.String("error", err.Error()))
		fr.Outcome = OutcomeError
		fr.Error = err.Error()
		return fr
	}
	if len(segments) == 0 {
		flog.Debug("no text extracted, indexing metadata only")
		fr.Outcome = OutcomeMetadataOnly
		return fr
	}

	// chunk indices stay contiguous per file: only chunks that embed
	// successfully consume a position
	chunkIndex := 0
	segmentsFailed := 0
	chunksDropped := 0
	for _, seg := range segments {
		texts, err := c.chunker.Chunk(ctx, seg.Text)
		if err != nil {
			flog.Warn("chunking failed", slog.String("location", seg.Location), slog.String("error", err.Error()))
			segmentsFailed++
			continue
		}
		var nonEmpty []string
		for _, t := range texts {
			if strings.TrimSpace(t) != "" {
				nonEmpty = append(nonEmpty, t)
			}
		}
		if len(nonEmpty) == 0 {
			continue
		}
		vectors, err := c.embedder.Embed(ctx, nonEmpty)
		if err == nil && len(vectors) != len(nonEmpty) {
			err = fmt.Errorf("expected %d vectors, got %d", len(nonEmpty), len(vectors))
		}
		if err != nil {
			// retry one chunk at a time so a single bad chunk costs only
			// itself, not its whole segment
			flog.Warn("batch embedding failed, retrying per chunk",
				slog.String("location", seg.Location),
				slog.String("error", err.Error()),
			)
			var dropped int
			nonEmpty, vectors, dropped = c.embedPerChunk(ctx, flog, seg.Location, nonEmpty)
			chunksDropped += dropped
			if len(nonEmpty) == 0 {
				segmentsFailed++
				continue
			}
		}
		for i, text := range nonEmpty {
			*out = append(*out, rag.Chunk{
				Key:            identity.ChunkKey(file.ID, chunkIndex),
				Text:           text,
				Index:          chunkIndex,
				FileID:         file.ID,
				CourseID:       courseID,
				FileName:       file.Name,
				SourceLocation: seg.Location,
				Vector:         vectors[i],
			})
			chunkIndex++
			fr.Chunks++
		}
	}

	switch {
	case fr.Chunks == 0 && (segmentsFailed > 0 || chunksDropped > 0):
		fr.Outcome = OutcomeError
		fr.Error = "all segments failed"
	case fr.Chunks == 0:
		fr.Outcome = OutcomeMetadataOnly
	case segmentsFailed > 0 || chunksDropped > 0:
		fr.Outcome = OutcomePartial
	default:
		fr.Outcome = OutcomeIndexed
	}
	return fr
}

// embedPerChunk embeds each text individually, dropping the ones that still
// fail. It returns the surviving texts, their vectors in the same order, and
// the number of chunks dropped.
func (c *Coordinator) embedPerChunk(ctx context.Context, log *slog.Logger, location string, texts []string) ([]string, [][]float32, int) {
	kept := make([]string, 0, len(texts))
	vectors := make([][]float32, 0, len(texts))
	dropped := 0
	for _, text := range texts {
		vs, err := c.embedder.Embed(ctx, []string{text})
		if err == nil && len(vs) != 1 {
			err = fmt.Errorf("expected 1 vector, got %d", len(vs))
		}
		if err != nil {
			log.Warn("chunk embedding failed, dropping chunk",
				slog.String("location", location),
				slog.String("error", err.Error()),
			)
			dropped++
			continue
		}
		kept = append(kept, text)
		vectors = append(vectors, vs[0])
	}
	return kept, vectors, dropped
}
