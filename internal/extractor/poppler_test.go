package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedRunner returns canned output per invocation, in order.
type scriptedRunner struct {
	outputs [][]byte
	errs    []error
	argsLog [][]string
}

func (r *scriptedRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	call := len(r.argsLog)
	r.argsLog = append(r.argsLog, args)
	var out []byte
	var err error
	if call < len(r.outputs) {
		out = r.outputs[call]
	}
	if call < len(r.errs) {
		err = r.errs[call]
	}
	return out, err
}

func Test_PopplerStrategy_FirstModeWins(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{outputs: [][]byte{[]byte("page one text\fpage two text")}}
	s := NewPopplerStrategyWithRunner(runner)

	result, err := s.Extract(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(result.Text, "page one text") {
		t.Errorf("text = %q", result.Text)
	}
	if result.PagesProcessed != 2 {
		t.Errorf("pages = %d, want 2 (form-feed separated)", result.PagesProcessed)
	}
	if len(runner.argsLog) != 1 {
		t.Fatalf("ran %d commands, want 1", len(runner.argsLog))
	}
}

func Test_PopplerStrategy_FallsThroughModes(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{
		outputs: [][]byte{[]byte("   "), nil, []byte("raw mode text")},
		errs:    []error{nil, errors.New("pdftotext: syntax error"), nil},
	}
	s := NewPopplerStrategyWithRunner(runner)

	result, err := s.Extract(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "raw mode text" {
		t.Errorf("text = %q", result.Text)
	}
	if len(runner.argsLog) != 3 {
		t.Fatalf("ran %d commands, want 3", len(runner.argsLog))
	}
	// Second pass is layout-aware, third is raw order.
	if runner.argsLog[1][0] != "-layout" {
		t.Errorf("second pass args = %v, want -layout first", runner.argsLog[1])
	}
	if runner.argsLog[2][0] != "-raw" {
		t.Errorf("third pass args = %v, want -raw first", runner.argsLog[2])
	}
}

func Test_PopplerStrategy_AllModesFailingReturnsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("pdftotext crashed")
	runner := &scriptedRunner{errs: []error{boom, boom, boom}}
	s := NewPopplerStrategyWithRunner(runner)

	_, err := s.Extract(context.Background(), "doc.pdf")
	if err == nil {
		t.Fatal("want error when every mode fails")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped runner error", err)
	}
}

func Test_PopplerStrategy_OutputGoesToStdout(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{outputs: [][]byte{[]byte("x")}}
	s := NewPopplerStrategyWithRunner(runner)

	if _, err := s.Extract(context.Background(), "doc.pdf"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	args := runner.argsLog[0]
	if args[len(args)-1] != "-" {
		t.Errorf("args = %v, want trailing \"-\" for stdout output", args)
	}
	if args[len(args)-2] != "doc.pdf" {
		t.Errorf("args = %v, want file path before output", args)
	}
}
