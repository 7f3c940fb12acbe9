package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeStrategy is a scripted Strategy for exercising the chain.
type fakeStrategy struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string    { return f.name }
func (f *fakeStrategy) Available() bool { return f.available }
func (f *fakeStrategy) Extract(_ context.Context, _ string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func Test_Extractor_ChainShortCircuitsOnFirstText(t *testing.T) {
	t.Parallel()

	first := &fakeStrategy{name: "first", available: true, result: &Result{Text: "found it", PagesProcessed: 2}}
	second := &fakeStrategy{name: "second", available: true, result: &Result{Text: "never reached"}}
	e := New([]Strategy{first, second}, nil)

	result := e.Extract(context.Background(), "doc.pdf")

	if !result.Success {
		t.Fatal("extraction should succeed")
	}
	if result.Method != "first" {
		t.Errorf("method = %q, want first", result.Method)
	}
	if second.calls != 0 {
		t.Errorf("second strategy called %d times, want 0", second.calls)
	}
}

func Test_Extractor_ChainFallsThroughFailuresAndEmptyText(t *testing.T) {
	t.Parallel()

	failing := &fakeStrategy{name: "failing", available: true, err: errors.New("corrupt xref")}
	empty := &fakeStrategy{name: "empty", available: true, result: &Result{Text: "   \n "}}
	winning := &fakeStrategy{name: "winning", available: true, result: &Result{Text: "recovered text", OCRPages: 3}}
	e := New([]Strategy{failing, empty, winning}, nil)

	result := e.Extract(context.Background(), "doc.pdf")

	if !result.Success {
		t.Fatal("extraction should succeed via the last strategy")
	}
	if result.Method != "winning" {
		t.Errorf("method = %q, want winning", result.Method)
	}
	if result.OCRPages != 3 {
		t.Errorf("ocr pages = %d, want 3", result.OCRPages)
	}
	if failing.calls != 1 || empty.calls != 1 || winning.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1 each", failing.calls, empty.calls, winning.calls)
	}
}

func Test_Extractor_AllStrategiesFailingIsNotAnError(t *testing.T) {
	t.Parallel()

	a := &fakeStrategy{name: "a", available: true, err: errors.New("broken")}
	b := &fakeStrategy{name: "b", available: true, result: &Result{}}
	e := New([]Strategy{a, b}, nil)

	result := e.Extract(context.Background(), "doc.pdf")

	if result.Success {
		t.Fatal("extraction should report failure")
	}
	if result.ErrorMessage == "" {
		t.Error("failure should carry an aggregated error message")
	}
}

func Test_Extractor_UnavailableStrategiesAreDroppedAtConstruction(t *testing.T) {
	t.Parallel()

	missing := &fakeStrategy{name: "missing", available: false, result: &Result{Text: "should not run"}}
	present := &fakeStrategy{name: "present", available: true, result: &Result{Text: "ok"}}
	e := New([]Strategy{missing, present}, nil)

	result := e.Extract(context.Background(), "doc.pdf")

	if result.Method != "present" {
		t.Errorf("method = %q, want present", result.Method)
	}
	if missing.calls != 0 {
		t.Errorf("unavailable strategy called %d times, want 0", missing.calls)
	}
}

func Test_Extractor_ReadsTextFilesDirectly(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "notes.txt", "RCA policies cover third-party liability.")
	e := New(nil, nil)

	result := e.Extract(context.Background(), path)

	if !result.Success {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if result.Text != "RCA policies cover third-party liability." {
		t.Errorf("text = %q", result.Text)
	}
	if result.Method != "plain-utf8" {
		t.Errorf("method = %q, want plain-utf8", result.Method)
	}
}

func Test_Extractor_FallsBackToLatin1(t *testing.T) {
	t.Parallel()

	// 0xE8 is Latin-1 "è", invalid as standalone UTF-8.
	path := writeTempFile(t, "legacy.txt", "franchigia \xe8 applicata")
	e := New(nil, nil)

	result := e.Extract(context.Background(), path)

	if !result.Success {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if result.Method != "plain-latin1" {
		t.Errorf("method = %q, want plain-latin1", result.Method)
	}
	if result.Text != "franchigia è applicata" {
		t.Errorf("text = %q, want Latin-1 decode", result.Text)
	}
}

func Test_Extractor_EmptyTextFileFails(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "empty.txt", "  \n ")
	e := New(nil, nil)

	if result := e.Extract(context.Background(), path); result.Success {
		t.Fatal("empty file should not succeed")
	}
}

func Test_Extractor_UnsupportedExtensionFails(t *testing.T) {
	t.Parallel()

	e := New(nil, nil)
	if result := e.Extract(context.Background(), "image.png"); result.Success {
		t.Fatal("unsupported extension should not succeed")
	}
	if !Supported("doc.pdf") || !Supported("doc.txt") || !Supported("doc.md") {
		t.Error("pdf/txt/md should be supported")
	}
	if Supported("image.png") {
		t.Error("png should not be supported")
	}
}

func Test_Extractor_StatsTrackOutcomes(t *testing.T) {
	t.Parallel()

	ok := &fakeStrategy{name: "ok", available: true, result: &Result{Text: "text", OCRPages: 1}}
	e := New([]Strategy{ok}, nil)
	ctx := context.Background()

	e.Extract(ctx, "one.pdf")
	e.Extract(ctx, "two.pdf")
	e.Extract(ctx, writeTempFile(t, "empty.txt", ""))

	stats := e.Stats()
	if stats.FilesAttempted != 3 {
		t.Errorf("attempted = %d, want 3", stats.FilesAttempted)
	}
	if stats.FilesSucceeded != 2 {
		t.Errorf("succeeded = %d, want 2", stats.FilesSucceeded)
	}
	if stats.FilesFailed != 1 {
		t.Errorf("failed = %d, want 1", stats.FilesFailed)
	}
	if stats.OCRUsed != 2 {
		t.Errorf("ocr used = %d, want 2", stats.OCRUsed)
	}
	if stats.StrategyCounts["ok"] != 2 {
		t.Errorf("strategy count = %d, want 2", stats.StrategyCounts["ok"])
	}
}
