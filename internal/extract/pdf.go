package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts text from PDF files, one segment per page.
type PDFExtractor struct{}

// Extract returns one segment per page with extractable text, in page order.
func (e *PDFExtractor) Extract(path string) ([]Segment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	var segments []Segment
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// scanned or malformed pages yield no text but should not
			// sink the rest of the document
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Location: fmt.Sprintf("Page %d", i),
		})
	}
	return segments, nil
}
