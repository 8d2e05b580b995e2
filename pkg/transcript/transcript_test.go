package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterHeaderLinesAndClosing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.txt")
	w, err := Open(path, "+15551234567")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Line("Caller", "Okay, goodbye!"); err != nil {
		t.Fatalf("Line: %v", err)
	}
	if err := w.Line("Agent", "Goodbye, take care!"); err != nil {
		t.Fatalf("Line: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(raw)

	if !strings.Contains(content, "Number: +15551234567") {
		t.Errorf("expected number line, got:\n%s", content)
	}
	if !strings.Contains(content, "Caller: Okay, goodbye!") {
		t.Errorf("expected caller line, got:\n%s", content)
	}
	if !strings.Contains(content, "Agent: Goodbye, take care!") {
		t.Errorf("expected agent line, got:\n%s", content)
	}
	if !strings.Contains(content, "Call ended (duration:") {
		t.Errorf("expected closing line, got:\n%s", content)
	}
}
