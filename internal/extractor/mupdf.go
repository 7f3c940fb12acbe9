package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// MuPDFStrategy extracts PDF text with the MuPDF library. It is the most
// robust non-OCR strategy and runs first. Pages that yield nothing in plain
// text mode are retried via HTML extraction with the markup stripped.
type MuPDFStrategy struct{}

// NewMuPDFStrategy returns the MuPDF-backed strategy.
func NewMuPDFStrategy() *MuPDFStrategy { return &MuPDFStrategy{} }

// Name implements Strategy.
func (s *MuPDFStrategy) Name() string { return "mupdf" }

// Available implements Strategy. The MuPDF runtime is probed once by opening
// an empty in-memory document.
func (s *MuPDFStrategy) Available() bool {
	doc, err := fitz.NewFromMemory(emptyPDF)
	if err != nil {
		return false
	}
	_ = doc.Close()
	return true
}

// tagPattern strips HTML markup from the alternate extraction mode.
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Extract implements Strategy.
func (s *MuPDFStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("mupdf: open: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	pages := 0
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.Text(i)
		if err != nil || strings.TrimSpace(text) == "" {
			text = s.htmlFallback(doc, i)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
		pages++
	}

	return &Result{Text: sb.String(), PagesProcessed: pages}, nil
}

// htmlFallback re-extracts a page as HTML and strips the markup. Some PDFs
// expose text only through the structured renderer.
func (s *MuPDFStrategy) htmlFallback(doc *fitz.Document, page int) string {
	html, err := doc.HTML(page, false)
	if err != nil {
		return ""
	}
	return tagPattern.ReplaceAllString(html, " ")
}

// emptyPDF is a minimal single-page PDF used to probe the MuPDF runtime.
var emptyPDF = []byte("%PDF-1.4\n" +
	"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000052 00000 n \n" +
	"0000000101 00000 n \n" +
	"trailer<</Size 4/Root 1 0 R>>\n" +
	"startxref\n164\n%%EOF\n")
