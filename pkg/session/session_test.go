package session

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lokutor-ai/voicebridge/pkg/bridge"
	"github.com/lokutor-ai/voicebridge/pkg/trigger"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
)

type fakeBackend struct {
	mu        sync.Mutex
	connected bool
	cb        voiceagent.Callbacks
	prompts   []string
}

func (f *fakeBackend) Connect(ctx context.Context, profile voiceagent.Profile, cb voiceagent.Callbacks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.cb = cb
	return nil
}
func (f *fakeBackend) SendAudio([]byte) error  { return nil }
func (f *fakeBackend) SendText(string) error   { return nil }
func (f *fakeBackend) SendToolResult(string, string) error { return nil }
func (f *fakeBackend) PromptResponse(instructions string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, instructions)
	return nil
}
func (f *fakeBackend) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}
func (f *fakeBackend) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func newTestSession(t *testing.T) (*Session, *fakeBackend, *clock.Mock) {
	t.Helper()
	dir := t.TempDir()

	sockPath := filepath.Join(dir, "audio.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			t.Cleanup(func() { conn.Close() })
		}
	}()

	fb := &fakeBackend{}
	mockClock := clock.NewMock()

	br := bridge.New(bridge.DefaultConfig(sockPath), fb, nil)

	cfg := DefaultConfig(
		filepath.Join(dir, "agent.pid"),
		filepath.Join(dir, "transcript.txt"),
		"+15551234567",
	)
	cfg.SilenceTimeout = 100 * time.Millisecond
	cfg.SafetyTimer1 = 50 * time.Millisecond
	cfg.SafetyTimer2 = 50 * time.Millisecond

	s, err := New(cfg, Params{Bridge: br, Backend: fb, Clock: mockClock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, fb, mockClock
}

func TestFarewellTriggerSchedulesGoodbyePhase(t *testing.T) {
	s, _, _ := newTestSession(t)
	defer os.Remove(s.cfg.LockPath)

	s.triggers.Check(trigger.Context{Transcript: "Okay, goodbye!", Role: "user", Now: s.clk.Now()})

	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase != phaseGoodbye {
		t.Fatalf("expected phaseGoodbye after farewell trigger, got %d", phase)
	}
}

func TestSilenceTwoPhaseEscalation(t *testing.T) {
	s, fb, mockClock := newTestSession(t)
	defer os.Remove(s.cfg.LockPath)

	now := mockClock.Now()
	s.mu.Lock()
	s.lastResponseAt = &now
	s.mu.Unlock()

	mockClock.Add(200 * time.Millisecond)
	s.triggers.Check(trigger.Context{LastResponseAt: s.lastResponseAt, IsSpeaking: false, Now: s.clk.Now()})

	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase != phaseStillThere {
		t.Fatalf("expected phaseStillThere after first silence fire, got %d", phase)
	}
	if len(fb.prompts) != 1 {
		t.Fatalf("expected one 'still there' prompt, got %d", len(fb.prompts))
	}

	// The first fire reset the manager, so a second silence check fires
	// again and escalates to the goodbye phase with a closing prompt.
	s.triggers.Check(trigger.Context{LastResponseAt: s.lastResponseAt, IsSpeaking: false, Now: s.clk.Now()})

	s.mu.Lock()
	phase = s.phase
	s.mu.Unlock()
	if phase != phaseGoodbye {
		t.Fatalf("expected phaseGoodbye after second silence fire, got %d", phase)
	}
	if len(fb.prompts) != 2 {
		t.Fatalf("expected 'still there' and closing prompts, got %d", len(fb.prompts))
	}
}

func TestSpeechStartedCancelsPendingGoodbye(t *testing.T) {
	s, _, _ := newTestSession(t)
	defer os.Remove(s.cfg.LockPath)

	s.mu.Lock()
	s.phase = phaseStillThere
	s.mu.Unlock()

	s.onSpeechStarted()

	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase != phaseNone {
		t.Fatalf("expected phase reset to none, got %d", phase)
	}
}
