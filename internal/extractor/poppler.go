package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command and returns its stdout. It is a
// port so tests can substitute the real pdftotext binary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// popplerModes are the pdftotext extraction passes, tried in order. The
// default pass handles most documents; -layout preserves column structure
// for tabular pages; -raw dumps content-stream order as a last resort.
var popplerModes = [][]string{
	nil,
	{"-layout"},
	{"-raw"},
}

// PopplerStrategy extracts PDF text by shelling out to poppler's pdftotext.
// It is layout-aware, which MuPDF's plain text mode is not.
type PopplerStrategy struct {
	runner CommandRunner
}

// NewPopplerStrategy returns the pdftotext-backed strategy using os/exec.
func NewPopplerStrategy() *PopplerStrategy {
	return &PopplerStrategy{runner: execRunner{}}
}

// NewPopplerStrategyWithRunner injects a custom CommandRunner, used in tests.
func NewPopplerStrategyWithRunner(runner CommandRunner) *PopplerStrategy {
	return &PopplerStrategy{runner: runner}
}

// Name implements Strategy.
func (s *PopplerStrategy) Name() string { return "pdftotext" }

// Available implements Strategy by looking up the binary on PATH.
func (s *PopplerStrategy) Available() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}

// Extract implements Strategy. Each mode writes to stdout ("-" output file);
// the first mode producing non-empty text wins.
func (s *PopplerStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	var lastErr error
	for _, mode := range popplerModes {
		args := append(append([]string{}, mode...), path, "-")
		out, err := s.runner.Run(ctx, "pdftotext", args...)
		if err != nil {
			lastErr = err
			continue
		}
		text := string(out)
		if strings.TrimSpace(text) == "" {
			continue
		}
		return &Result{
			Text:           text,
			PagesProcessed: strings.Count(text, "\f") + 1,
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", lastErr)
	}
	return &Result{}, nil
}
