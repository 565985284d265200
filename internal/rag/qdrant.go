package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/coursecompass/compass-go/internal/logging"
)

// QdrantConfig carries the connection settings for the vector store.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// VectorSize is the embedding width used when creating the chunk
	// collection.
	VectorSize int
}

// QdrantIndex implements VectorIndex on top of a Qdrant instance.
type QdrantIndex struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

var _ VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant with the given settings.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: create qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// EnsureSchema creates the three collections when missing. Courses and files
// are metadata-only; chunks carry cosine-distance vectors sized to the
// configured embedding width.
func (q *QdrantIndex) EnsureSchema(ctx context.Context) error {
	log := logging.FromContext(ctx)

	metadataOnly := []string{CoursesCollection, FilesCollection}
	for _, name := range metadataOnly {
		exists, err := q.client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("rag: check collection %s: %w", name, err)
		}
		if exists {
			continue
		}
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     1,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("rag: create collection %s: %w", name, err)
		}
		log.Info("created collection", "collection", name)
	}

	exists, err := q.client.CollectionExists(ctx, ChunksCollection)
	if err != nil {
		return fmt.Errorf("rag: check collection %s: %w", ChunksCollection, err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: ChunksCollection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.cfg.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("rag: create collection %s: %w", ChunksCollection, err)
		}
		log.Info("created collection", "collection", ChunksCollection, "vector_size", q.cfg.VectorSize)
	}
	return nil
}

// UpsertCourses writes course metadata points keyed by their deterministic
// UUIDs. Points carry no vectors.
func (q *QdrantIndex) UpsertCourses(ctx context.Context, courses []Course) error {
	if len(courses) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(courses))
	for _, c := range courses {
		points = append(points, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(c.Key),
			Payload: qdrant.NewValueMap(map[string]any{
				"course_id":   c.CourseID,
				"course_name": c.Name,
			}),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: CoursesCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("rag: upsert %d courses: %w", len(courses), err)
	}
	return nil
}

// UpsertFiles writes file metadata points keyed by their deterministic UUIDs.
func (q *QdrantIndex) UpsertFiles(ctx context.Context, files []FileRecord) error {
	if len(files) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(files))
	for _, f := range files {
		points = append(points, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(f.Key),
			Payload: qdrant.NewValueMap(map[string]any{
				"file_id":      f.FileID,
				"course_id":    f.CourseID,
				"file_name":    f.Name,
				"content_type": f.ContentType,
			}),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: FilesCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("rag: upsert %d files: %w", len(files), err)
	}
	return nil
}

// UpsertChunks writes embedded chunk points keyed by their deterministic
// UUIDs, replacing any prior version of the same chunk.
func (q *QdrantIndex) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(c.Key),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_text":      c.Text,
				"chunk_index":     c.Index,
				"file_id":         c.FileID,
				"course_id":       c.CourseID,
				"file_name":       c.FileName,
				"source_location": c.SourceLocation,
			}),
			Vectors: qdrant.NewVectors(c.Vector...),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ChunksCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("rag: upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// HasChunks reports whether any chunk point exists for the given file.
func (q *QdrantIndex) HasChunks(ctx context.Context, fileID int64) (bool, error) {
	exact := true
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ChunksCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("file_id", fileID),
			},
		},
		Exact: &exact,
	})
	if err != nil {
		return false, fmt.Errorf("rag: count chunks for file %d: %w", fileID, err)
	}
	return count > 0, nil
}

// FetchChunk retrieves the chunk at an exact (file, index) coordinate.
func (q *QdrantIndex) FetchChunk(ctx context.Context, fileID int64, index int, filter SearchFilter) (Chunk, bool, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatchInt("file_id", fileID),
		qdrant.NewMatchInt("chunk_index", int64(index)),
	}
	if filter.CourseID != 0 {
		must = append(must, qdrant.NewMatchInt("course_id", filter.CourseID))
	}
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: ChunksCollection,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return Chunk{}, false, fmt.Errorf("rag: fetch chunk %d/%d: %w", fileID, index, err)
	}
	if len(points) == 0 {
		return Chunk{}, false, nil
	}
	return chunkFromPayload(points[0].Id.GetUuid(), points[0].Payload), true, nil
}

// lexicalCandidateFactor sizes the lexical candidate pool relative to the
// requested limit. A wider pool gives the blend more to work with.
const lexicalCandidateFactor = 4

// HybridQuery blends a dense vector query with a lexical text-match pass.
// The two candidate sets are merged by chunk key and scored as
// alpha*dense + (1-alpha)*lexical, then ranked and truncated to limit.
func (q *QdrantIndex) HybridQuery(ctx context.Context, query string, vector []float32, limit int, alpha float32, filter SearchFilter) ([]ScoredChunk, error) {
	log := logging.FromContext(ctx)

	var must []*qdrant.Condition
	if filter.CourseID != 0 {
		must = append(must, qdrant.NewMatchInt("course_id", filter.CourseID))
	}
	var qf *qdrant.Filter
	if len(must) > 0 {
		qf = &qdrant.Filter{Must: must}
	}

	candidates := make(map[string]*hybridCandidate)

	if alpha > 0 && len(vector) > 0 {
		qlimit := uint64(limit)
		hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: ChunksCollection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          &qlimit,
			Filter:         qf,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("rag: vector query: %w", err)
		}
		for _, h := range hits {
			c := chunkFromPayload(h.Id.GetUuid(), h.Payload)
			candidates[c.Key] = &hybridCandidate{chunk: c, dense: h.Score}
		}
	}

	if alpha < 1 {
		lexMust := append([]*qdrant.Condition{}, must...)
		lexMust = append(lexMust, qdrant.NewMatchText("chunk_text", query))
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: ChunksCollection,
			Filter:         &qdrant.Filter{Must: lexMust},
			Limit:          qdrant.PtrOf(uint32(limit * lexicalCandidateFactor)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			// lexical degradation keeps the dense half usable
			log.Warn("lexical pass failed, falling back to vector results", slog.String("error", err.Error()))
		} else {
			for _, p := range points {
				c := chunkFromPayload(p.Id.GetUuid(), p.Payload)
				if cand, ok := candidates[c.Key]; ok {
					cand.lexical = lexicalScore(query, c.Text)
					continue
				}
				candidates[c.Key] = &hybridCandidate{chunk: c, lexical: lexicalScore(query, c.Text)}
			}
		}
	}

	ranked := blendCandidates(candidates, alpha)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Ping verifies the Qdrant connection is healthy.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("rag: qdrant health check: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func chunkFromPayload(key string, payload map[string]*qdrant.Value) Chunk {
	c := Chunk{Key: key}
	if v, ok := payload["chunk_text"]; ok {
		c.Text = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		c.Index = int(v.GetIntegerValue())
	}
	if v, ok := payload["file_id"]; ok {
		c.FileID = v.GetIntegerValue()
	}
	if v, ok := payload["course_id"]; ok {
		c.CourseID = v.GetIntegerValue()
	}
	if v, ok := payload["file_name"]; ok {
		c.FileName = v.GetStringValue()
	}
	if v, ok := payload["source_location"]; ok {
		c.SourceLocation = v.GetStringValue()
	}
	return c
}

// blendCandidates scores and ranks merged candidates. Exposed to the hybrid
// helpers for ordering; ties break on chunk key for stable output.
func blendCandidates(candidates map[string]*hybridCandidate, alpha float32) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, ScoredChunk{
			Chunk: cand.chunk,
			Score: alpha*cand.dense + (1-alpha)*cand.lexical,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	return out
}
