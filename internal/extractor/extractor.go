// Package extractor turns heterogeneous documents (text, markdown, PDF,
// scanned PDF) into raw text. PDF extraction runs a prioritized chain of
// strategies, short-circuiting on the first that yields text, with an OCR
// fallback for scanned pages. Extraction failure is a normal outcome for
// corrupt or unsupported files and is reported in the result, never as an
// error.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// Result is the outcome of one extraction attempt.
type Result struct {
	// Success reports whether any strategy produced text.
	Success bool

	// Text is the extracted text, possibly empty on failure.
	Text string

	// PagesProcessed counts pages that yielded any text.
	PagesProcessed int

	// Method names the strategy that produced the text.
	Method string

	// OCRPages counts pages that required OCR.
	OCRPages int

	// ErrorMessage aggregates per-strategy failures; set only on failure.
	ErrorMessage string
}

// Strategy is one interchangeable PDF text-extraction implementation.
// An unavailable strategy (missing system dependency) is skipped at
// composition time rather than probed per call.
type Strategy interface {
	// Name identifies the strategy in results, stats, and logs.
	Name() string

	// Available reports whether the strategy's dependencies are present.
	Available() bool

	// Extract attempts to pull text out of the file at path.
	Extract(ctx context.Context, path string) (*Result, error)
}

// Stats holds running extraction counters for observability.
type Stats struct {
	// FilesAttempted counts extraction calls.
	FilesAttempted int `json:"files_attempted"`

	// FilesSucceeded counts calls that produced text.
	FilesSucceeded int `json:"files_succeeded"`

	// FilesFailed counts calls where every strategy failed.
	FilesFailed int `json:"files_failed"`

	// OCRUsed counts files that needed the OCR fallback.
	OCRUsed int `json:"ocr_used"`

	// StrategyCounts maps strategy name to its success count.
	StrategyCounts map[string]int `json:"strategy_counts"`
}

// Extractor extracts text from supported files using a strategy chain for
// PDFs and direct reads for plain-text formats. Safe for concurrent use.
type Extractor struct {
	strategies []Strategy
	log        *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds an Extractor over the given strategies, in priority order.
// Unavailable strategies are dropped here, once.
func New(strategies []Strategy, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}

	usable := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if !s.Available() {
			log.Warn("extraction strategy unavailable, skipping", slog.String("strategy", s.Name()))
			continue
		}
		usable = append(usable, s)
	}

	return &Extractor{
		strategies: usable,
		log:        log,
		stats:      Stats{StrategyCounts: make(map[string]int)},
	}
}

// DefaultChain returns the production strategy order: MuPDF, pdftotext,
// pure-Go reader, OCR. ocrPrimary and ocrSecondary are Tesseract language
// codes for the OCR fallback.
func DefaultChain(ocrPrimary, ocrSecondary string) []Strategy {
	return []Strategy{
		NewMuPDFStrategy(),
		NewPopplerStrategy(),
		NewFastStrategy(),
		NewOCRStrategy(ocrPrimary, ocrSecondary),
	}
}

// SupportedExtensions lists the file extensions Extract understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md"}
}

// Supported reports whether path has an extension Extract understands.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract produces text from the file at path. Plain-text formats are read
// directly; PDFs run through the strategy chain. Failure is reported in the
// result, not as an error.
func (e *Extractor) Extract(ctx context.Context, path string) *Result {
	var result *Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		result = e.extractPlainFile(path)
	case ".pdf":
		result = e.extractPDF(ctx, path)
	default:
		result = &Result{ErrorMessage: fmt.Sprintf("unsupported file type %q", filepath.Ext(path))}
	}

	e.record(result)
	return result
}

// extractPlainFile reads a text or markdown file. Decoding never fails:
// invalid UTF-8 is reinterpreted as Latin-1.
func (e *Extractor) extractPlainFile(path string) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{ErrorMessage: fmt.Sprintf("read %s: %v", path, err)}
	}

	text := string(data)
	method := "plain-utf8"
	if !utf8.Valid(data) {
		text = decodeLatin1(data)
		method = "plain-latin1"
	}

	if strings.TrimSpace(text) == "" {
		return &Result{ErrorMessage: "file is empty"}
	}
	return &Result{Success: true, Text: text, PagesProcessed: 1, Method: method}
}

// decodeLatin1 maps each byte to the Unicode code point of the same value.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// extractPDF walks the strategy chain until one yields non-empty text.
func (e *Extractor) extractPDF(ctx context.Context, path string) *Result {
	var failures []string
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
			break
		}

		result, err := s.Extract(ctx, path)
		if err != nil {
			e.log.Debug("extraction strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("file", filepath.Base(path)),
				slog.Any("error", err))
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		if strings.TrimSpace(result.Text) == "" {
			failures = append(failures, fmt.Sprintf("%s: no text", s.Name()))
			continue
		}

		result.Success = true
		result.Method = s.Name()
		return result
	}

	return &Result{ErrorMessage: "all strategies failed: " + strings.Join(failures, "; ")}
}

// record updates the running counters from one finished extraction.
func (e *Extractor) record(r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.FilesAttempted++
	if r.Success {
		e.stats.FilesSucceeded++
		e.stats.StrategyCounts[r.Method]++
		if r.OCRPages > 0 {
			e.stats.OCRUsed++
		}
	} else {
		e.stats.FilesFailed++
	}
}

// Stats returns a snapshot of the running counters.
func (e *Extractor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[string]int, len(e.stats.StrategyCounts))
	for k, v := range e.stats.StrategyCounts {
		counts[k] = v
	}
	snapshot := e.stats
	snapshot.StrategyCounts = counts
	return snapshot
}
