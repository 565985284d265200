package extract

import (
	"fmt"
	"os"
	"strings"
)

// TextExtractor extracts plain text files as a single segment.
type TextExtractor struct{}

// Extract reads the whole file. Returns no segments for empty files.
func (e *TextExtractor) Extract(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extract: read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Segment{{Text: text}}, nil
}
