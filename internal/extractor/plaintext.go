package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FastStrategy is a lightweight pure-Go PDF text reader. No layout
// awareness and no system dependencies; it is the final non-OCR attempt.
type FastStrategy struct{}

// NewFastStrategy returns the pure-Go strategy.
func NewFastStrategy() *FastStrategy { return &FastStrategy{} }

// Name implements Strategy.
func (s *FastStrategy) Name() string { return "fast-text" }

// Available implements Strategy. Pure Go, always present.
func (s *FastStrategy) Available() bool { return true }

// Extract implements Strategy.
func (s *FastStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fast-text: open: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	pages := 0
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
		pages++
	}

	return &Result{Text: sb.String(), PagesProcessed: pages}, nil
}
