// Package catalog provides a SQLite-backed local record of synced courses and
// files. The catalog tracks what has been downloaded from the LMS and when
// each file was last ingested, so sync and ingestion runs can report progress
// without querying the vector store.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Course is a locally cataloged course.
type Course struct {
	// ID is the upstream course identifier.
	ID int64
	// Name is the course title.
	Name string
	// SyncedAt is when the course listing was last refreshed.
	SyncedAt time.Time
}

// File is a locally cataloged file.
type File struct {
	// ID is the upstream file identifier.
	ID int64
	// CourseID is the owning course's identifier.
	CourseID int64
	// Name is the display name, extension included.
	Name string
	// ContentType is the upstream MIME type.
	ContentType string
	// LocalPath is where the downloaded copy lives, empty if not downloaded.
	LocalPath string
	// IngestedAt is when the file was last ingested into the vector store.
	// Zero if never ingested.
	IngestedAt time.Time
}

// Catalog persists course and file records in a local SQLite database.
type Catalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database. It
// resolves to ~/.compass/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".compass")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a Catalog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Catalog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *Catalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS courses (
    id         INTEGER PRIMARY KEY,
    name       TEXT    NOT NULL,
    synced_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS files (
    id            INTEGER PRIMARY KEY,
    course_id     INTEGER NOT NULL REFERENCES courses(id),
    name          TEXT    NOT NULL,
    content_type  TEXT    NOT NULL DEFAULT '',
    local_path    TEXT    NOT NULL DEFAULT '',
    ingested_at   INTEGER NOT NULL DEFAULT 0  -- Unix timestamp, 0 = never
);
CREATE INDEX IF NOT EXISTS idx_files_course
    ON files (course_id);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// UpsertCourse records a course, replacing any prior version.
func (c *Catalog) UpsertCourse(ctx context.Context, course Course) error {
	const q = `
INSERT INTO courses (id, name, synced_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, synced_at = excluded.synced_at`
	if _, err := c.db.ExecContext(ctx, q, course.ID, course.Name, time.Now().Unix()); err != nil {
		return fmt.Errorf("catalog: upsert course %d: %w", course.ID, err)
	}
	return nil
}

// UpsertFile records a file, preserving its ingestion timestamp across
// re-syncs.
func (c *Catalog) UpsertFile(ctx context.Context, file File) error {
	const q = `
INSERT INTO files (id, course_id, name, content_type, local_path) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    course_id    = excluded.course_id,
    name         = excluded.name,
    content_type = excluded.content_type,
    local_path   = CASE WHEN excluded.local_path != '' THEN excluded.local_path ELSE files.local_path END`
	if _, err := c.db.ExecContext(ctx, q, file.ID, file.CourseID, file.Name, file.ContentType, file.LocalPath); err != nil {
		return fmt.Errorf("catalog: upsert file %d: %w", file.ID, err)
	}
	return nil
}

// MarkIngested stamps the file's ingestion time.
func (c *Catalog) MarkIngested(ctx context.Context, fileID int64) error {
	const q = `UPDATE files SET ingested_at = ? WHERE id = ?`
	if _, err := c.db.ExecContext(ctx, q, time.Now().Unix(), fileID); err != nil {
		return fmt.Errorf("catalog: mark file %d ingested: %w", fileID, err)
	}
	return nil
}

// Courses returns all cataloged courses ordered by name.
func (c *Catalog) Courses(ctx context.Context) ([]Course, error) {
	const q = `SELECT id, name, synced_at FROM courses ORDER BY name ASC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var crs Course
		var ts int64
		if err := rows.Scan(&crs.ID, &crs.Name, &ts); err != nil {
			return nil, fmt.Errorf("catalog: scan course: %w", err)
		}
		crs.SyncedAt = time.Unix(ts, 0)
		courses = append(courses, crs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: course rows: %w", err)
	}
	return courses, nil
}

// FilesForCourse returns the cataloged files for one course ordered by name.
func (c *Catalog) FilesForCourse(ctx context.Context, courseID int64) ([]File, error) {
	const q = `
SELECT id, course_id, name, content_type, local_path, ingested_at
FROM   files
WHERE  course_id = ?
ORDER  BY name ASC`
	rows, err := c.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list files for course %d: %w", courseID, err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var ts int64
		if err := rows.Scan(&f.ID, &f.CourseID, &f.Name, &f.ContentType, &f.LocalPath, &ts); err != nil {
			return nil, fmt.Errorf("catalog: scan file: %w", err)
		}
		if ts > 0 {
			f.IngestedAt = time.Unix(ts, 0)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: file rows: %w", err)
	}
	return files, nil
}

// Close releases the database connection pool.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}
