package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PPTXExtractor extracts text from PowerPoint files. A pptx is a zip archive
// holding one XML document per slide under ppt/slides/; text lives in the
// DrawingML a:t elements. Each slide becomes one segment.
type PPTXExtractor struct{}

var slidePathPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extract returns one segment per slide, in slide order, skipping slides
// with no text.
func (e *PPTXExtractor) Extract(path string) ([]Segment, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open pptx %s: %w", path, err)
	}
	defer archive.Close()

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, f := range archive.File {
		m := slidePathPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var segments []Segment
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("extract: open slide %d in %s: %w", s.number, path, err)
		}
		text, err := drawingMLText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract: parse slide %d in %s: %w", s.number, path, err)
		}
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Location: fmt.Sprintf("Slide %d", s.number),
		})
	}
	return segments, nil
}

// drawingMLText collects the character data of every a:t element, joining
// runs with single spaces.
func drawingMLText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var runs []string
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				if s := strings.TrimSpace(string(t)); s != "" {
					runs = append(runs, s)
				}
			}
		}
	}
	return strings.Join(runs, " "), nil
}
