package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXExtractor extracts text from Word documents. A docx is a zip archive
// with the body in word/document.xml; paragraphs are w:p elements and text
// runs are w:t. The whole document becomes a single segment with paragraphs
// joined by newlines, so sentence grouping can cross paragraph boundaries.
type DOCXExtractor struct{}

// Extract returns at most one segment holding the document body text.
func (e *DOCXExtractor) Extract(path string) ([]Segment, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open docx %s: %w", path, err)
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("extract: %s has no word/document.xml", path)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("extract: open document body in %s: %w", path, err)
	}
	defer rc.Close()

	paragraphs, err := wordMLParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("extract: parse document body in %s: %w", path, err)
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []Segment{{Text: strings.Join(paragraphs, "\n")}}, nil
}

// wordMLParagraphs collects the text of each w:p element, dropping empties.
func wordMLParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	var inParagraph, inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				inParagraph = false
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inParagraph && inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
