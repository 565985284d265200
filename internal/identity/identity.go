// Package identity derives deterministic point identifiers for courses,
// files, and chunks. Identifiers are name-based UUIDs (version 5): each
// record class has its own namespace derived from a class label, and the
// record's natural key is hashed into that namespace. The same inputs always
// produce the same UUID, which makes every upsert into the vector store an
// idempotent replace rather than a duplicate insert.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Class namespaces. Each is itself a v5 UUID of the class label hashed into
// the DNS namespace, so course, file, and chunk keys can never collide even
// when their natural keys coincide.
var (
	courseNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("Course"))
	fileNamespace   = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("File"))
	chunkNamespace  = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("Chunk"))
)

// CourseKey returns the deterministic UUID for a course given its upstream
// numeric identifier.
func CourseKey(courseID int64) string {
	return uuid.NewSHA1(courseNamespace, []byte(fmt.Sprintf("%d", courseID))).String()
}

// FileKey returns the deterministic UUID for a file given its upstream
// numeric identifier.
func FileKey(fileID int64) string {
	return uuid.NewSHA1(fileNamespace, []byte(fmt.Sprintf("%d", fileID))).String()
}

// ChunkKey returns the deterministic UUID for a chunk. The natural key is the
// owning file's identifier joined with the chunk's position within that file,
// so re-ingesting a file overwrites its chunks in place.
func ChunkKey(fileID int64, chunkIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%d_%d", fileID, chunkIndex))).String()
}
