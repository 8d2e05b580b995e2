// Package transcript writes the append-only call transcript described in
// spec §6 "Persisted state": a header, a rule, one line per turn, and a
// closing duration line, flushed synchronously so a crash mid-call never
// loses a line. Grounded on the teacher's file-writing idiom in
// cmd/agent/main.go (os.OpenFile with O_APPEND, explicit Sync).
package transcript

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type Writer struct {
	mu      sync.Mutex
	f       *os.File
	start   time.Time
	number  string
	started bool
}

// Open creates (or appends to) the transcript file at path and writes the
// header. number is the caller's phone number, used only for display.
func Open(path, number string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("transcript: open: %w", err)
	}
	w := &Writer{f: f, start: time.Now(), number: number}
	header := fmt.Sprintf("Call Transcript — %s\nNumber: %s\n%s\n",
		w.start.Format("2006-01-02 15:04:05"), number, rule())
	if _, err := w.f.WriteString(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("transcript: write header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("transcript: sync header: %w", err)
	}
	return w, nil
}

func rule() string {
	b := make([]byte, 40)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

// Line appends "[mm:ss.s] Role: text" and flushes immediately.
func (w *Writer) Line(role, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	elapsed := time.Since(w.start)
	ts := fmt.Sprintf("%02d:%04.1f", int(elapsed.Minutes()), elapsed.Seconds()-60*float64(int(elapsed.Minutes())))
	line := fmt.Sprintf("[%s] %s: %s\n", ts, role, text)
	if _, err := w.f.WriteString(line); err != nil {
		return fmt.Errorf("transcript: write line: %w", err)
	}
	return w.f.Sync()
}

// Close writes the closing duration line and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	duration := int(time.Since(w.start).Seconds())
	closing := fmt.Sprintf("\nCall ended (duration: %ds)\n", duration)
	if _, err := w.f.WriteString(closing); err != nil {
		w.f.Close()
		return fmt.Errorf("transcript: write closing: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
