// Package extract pulls plain text out of course documents. Each supported
// format has an extractor that yields ordered segments, preserving the
// document's own subdivisions (slides, pages) so downstream citations can
// point at them.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Segment is one unit of extracted text with its location in the source
// document.
type Segment struct {
	// Text is the extracted content.
	Text string
	// Location names where the text came from, e.g. "Slide 3" or "Page 12".
	// Empty for formats without subdivisions.
	Location string
}

// Extractor extracts text segments from a file on disk.
type Extractor interface {
	// Extract reads the file at path and returns its text segments in
	// document order.
	Extract(path string) ([]Segment, error)
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors for pptx,
// docx, pdf, and txt files.
func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Extractor{
		".pptx": &PPTXExtractor{},
		".docx": &DOCXExtractor{},
		".pdf":  &PDFExtractor{},
		".txt":  &TextExtractor{},
	}}
}

// For returns the extractor for the file's extension. Returns ok=false for
// unsupported formats.
func (r *Registry) For(filename string) (Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	return e, ok
}

// Supported reports whether the file's extension has an extractor.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.For(filename)
	return ok
}

// Extract runs the matching extractor on the file. Returns an error for
// unsupported extensions; callers should check Supported first when they
// want to treat those differently.
func (r *Registry) Extract(path string) ([]Segment, error) {
	e, ok := r.For(path)
	if !ok {
		return nil, fmt.Errorf("extract: unsupported file type %q", filepath.Ext(path))
	}
	return e.Extract(path)
}
