// Package session implements the session orchestrator (spec §4.7): it
// owns a call from dial to hangup, wires the trigger framework to the
// bridge and voice backend, and runs the two-phase goodbye sequence.
//
// Grounded on the teacher's pkg/orchestrator/orchestrator.go for the
// "one struct owns provider composition plus a mutex-guarded Config"
// shape, generalized from conversation turn-taking to call lifecycle.
// Safety timers use github.com/benbjohnson/clock (already an indirect
// pack dependency via beluga-ai) instead of raw goroutine+sleep, per §9
// "prefer a cancellation-aware timer primitive over spawning and
// killing" — Stop() on a clock.Timer cancels cleanly, unlike a sleeping
// goroutine that must run to completion or be abandoned.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/lokutor-ai/voicebridge/pkg/bridge"
	"github.com/lokutor-ai/voicebridge/pkg/lock"
	"github.com/lokutor-ai/voicebridge/pkg/sipctl"
	"github.com/lokutor-ai/voicebridge/pkg/transcript"
	"github.com/lokutor-ai/voicebridge/pkg/trigger"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

const (
	ActionHangup  = trigger.ActionHangup
	actionSilence trigger.Action = "silence"
)

// silence phase states for the two-phase goodbye sequence (§4.7).
const (
	phaseNone = iota
	phaseStillThere
	phaseGoodbye
)

// DelegateFunc runs an assistant request out of band (spec §4.7 "Delegate
// handling"). It is injected by the caller since the assistant backend
// itself is outside this package's scope.
type DelegateFunc func(ctx context.Context, intent, request string) (string, error)

type Config struct {
	LockPath          string
	TranscriptPath    string
	CallerNumber      string
	SilenceTimeout    time.Duration // 30s, per §4.7 "session uses 30 s"
	SafetyTimer1      time.Duration // 10s
	SafetyTimer2      time.Duration // 8s
	DrainPollInterval time.Duration // 100ms
	TailWait          time.Duration // 500ms
}

func DefaultConfig(lockPath, transcriptPath, callerNumber string) Config {
	return Config{
		LockPath:          lockPath,
		TranscriptPath:    transcriptPath,
		CallerNumber:      callerNumber,
		SilenceTimeout:    30 * time.Second,
		SafetyTimer1:      10 * time.Second,
		SafetyTimer2:      8 * time.Second,
		DrainPollInterval: 100 * time.Millisecond,
		TailWait:          500 * time.Millisecond,
	}
}

type Session struct {
	callID   string
	cfg      Config
	lock     *lock.Lock
	bridge   *bridge.Bridge
	backend  voiceagent.Backend
	sip      *sipctl.Client
	tw       *transcript.Writer
	delegate DelegateFunc
	clk      clock.Clock
	logger   voicelog.Logger

	triggers *trigger.Manager

	mu              sync.Mutex
	isSpeaking      bool
	lastResponseAt  *time.Time
	phase           int
	safetyTimer     *clock.Timer
	hangingUp       bool
	hangupOnce      sync.Once
	done            chan struct{}
}

type Params struct {
	Bridge   *bridge.Bridge
	Backend  voiceagent.Backend
	SIP      *sipctl.Client
	Delegate DelegateFunc
	Logger   voicelog.Logger
	Clock    clock.Clock
}

func New(cfg Config, p Params) (*Session, error) {
	if p.Logger == nil {
		p.Logger = voicelog.NoOp{}
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	tw, err := transcript.Open(cfg.TranscriptPath, cfg.CallerNumber)
	if err != nil {
		return nil, fmt.Errorf("session: open transcript: %w", err)
	}
	s := &Session{
		callID:   uuid.NewString(),
		cfg:      cfg,
		lock:     lock.New(cfg.LockPath),
		bridge:   p.Bridge,
		backend:  p.Backend,
		sip:      p.SIP,
		tw:       tw,
		delegate: p.Delegate,
		clk:      p.Clock,
		logger:   p.Logger,
		triggers: trigger.NewManager(),
		done:     make(chan struct{}),
	}
	s.wireTriggers()
	return s, nil
}

// CallID returns the session's unique identifier, generated once at
// construction, for log correlation across the bridge, backend and
// session lifecycle.
func (s *Session) CallID() string { return s.callID }

func (s *Session) wireTriggers() {
	s.triggers.Add(trigger.NewFarewellTrigger("farewell", ActionHangup, nil, ""))
	s.triggers.Add(trigger.NewSilenceTrigger("silence", actionSilence, s.cfg.SilenceTimeout))
	s.triggers.Add(trigger.NewDelegationTrigger("delegate", trigger.ActionDelegate, "classify_intent"))

	s.triggers.On(ActionHangup, s.onFarewellHangup)
	s.triggers.On(actionSilence, s.onSilence)
	s.triggers.On(trigger.ActionDelegate, s.onDelegate)
}

// Start acquires the single-instance lock, connects the backend and
// bridge, and blocks until Hangup is called.
func (s *Session) Start(ctx context.Context, profile voiceagent.Profile) error {
	if err := s.lock.Acquire(); err != nil {
		return fmt.Errorf("%w — another call is already running; run hangup first", err)
	}
	s.logger.Info("session: starting", "call_id", s.callID, "caller", s.cfg.CallerNumber)

	cb := voiceagent.Callbacks{
		OnAudio:           s.onBackendAudio,
		OnTranscript:      s.onTranscript,
		OnInputTranscript: s.onInputTranscript,
		OnResponseDone:    s.onResponseDone,
		OnSpeechStarted:   s.onSpeechStarted,
		OnToolCall:        s.onToolCall,
		OnError:           s.onBackendError,
		OnClose:           func() { s.Hangup(ctx) },
	}
	if err := s.backend.Connect(ctx, profile, cb); err != nil {
		s.lock.Release()
		return fmt.Errorf("session: backend connect: %w", err)
	}
	if err := s.bridge.Start(); err != nil {
		s.backend.Disconnect()
		s.lock.Release()
		return fmt.Errorf("session: bridge start: %w", err)
	}

	go s.periodicSilenceCheck(ctx)

	<-s.done
	return nil
}

func (s *Session) periodicSilenceCheck(ctx context.Context) {
	ticker := s.clk.Ticker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			last := s.lastResponseAt
			speaking := s.isSpeaking
			s.mu.Unlock()
			s.triggers.Check(trigger.Context{
				IsSpeaking:     speaking,
				LastResponseAt: last,
				Now:            s.clk.Now(),
			})
		}
	}
}

// --- backend callbacks -----------------------------------------------------

func (s *Session) onBackendAudio(ulaw []byte) {
	s.mu.Lock()
	s.isSpeaking = true
	s.mu.Unlock()
	if err := s.bridge.Enqueue(ulaw); err != nil {
		s.logger.Warn("session: enqueue audio failed", "error", err)
	}
}

func (s *Session) onTranscript(text string) {
	s.tw.Line("Agent", text)
}

func (s *Session) onInputTranscript(text string) {
	s.tw.Line("Caller", text)
	s.triggers.Check(trigger.Context{Transcript: text, Role: "user", Now: s.clk.Now()})
	s.triggers.Reset()
	s.cancelPendingGoodbye()
}

// onResponseDone computes the backlog drain time so the silence timer
// does not start while audio is still playing out (§4.7, §9 open
// question b).
func (s *Session) onResponseDone(_ voiceagent.Usage) {
	drain := time.Duration(s.bridge.WriteQueueSize()) * 20 * time.Millisecond
	go func() {
		s.clk.Sleep(drain)
		s.mu.Lock()
		now := s.clk.Now()
		s.lastResponseAt = &now
		s.isSpeaking = false
		goodbyePending := s.phase == phaseGoodbye
		s.mu.Unlock()

		if goodbyePending {
			s.drainAndHangup()
		}
	}()
}

func (s *Session) onSpeechStarted() {
	s.cancelPendingGoodbye()
}

func (s *Session) cancelPendingGoodbye() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseNone {
		return
	}
	if s.safetyTimer != nil {
		s.safetyTimer.Stop()
		s.safetyTimer = nil
	}
	s.phase = phaseNone
	s.triggers.Reset()
}

func (s *Session) onToolCall(name, argsJSON, callID string) {
	s.triggers.Check(trigger.Context{ToolName: name, ToolArguments: argsJSON, ToolCallID: callID})
}

func (s *Session) onBackendError(err error) {
	s.logger.Warn("session: backend error", "error", err)
}

// --- trigger callbacks -------------------------------------------------

func (s *Session) onFarewellHangup(ctx trigger.Context, payload interface{}) {
	s.mu.Lock()
	s.phase = phaseGoodbye
	s.mu.Unlock()
	s.scheduleSafetyTimer(s.cfg.SafetyTimer2, func() { s.forceHangup(context.Background()) })
}

func (s *Session) onSilence(ctx trigger.Context, payload interface{}) {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()

	switch phase {
	case phaseNone:
		s.mu.Lock()
		s.phase = phaseStillThere
		s.mu.Unlock()
		_ = s.backend.PromptResponse("Ask the caller, briefly, if they are still there.")
		s.triggers.Reset()
		s.scheduleSafetyTimer(s.cfg.SafetyTimer1, func() { s.advanceToGoodbye() })
	case phaseStillThere:
		s.advanceToGoodbye()
	}
}

func (s *Session) advanceToGoodbye() {
	s.mu.Lock()
	s.phase = phaseGoodbye
	s.mu.Unlock()
	_ = s.backend.PromptResponse("Give the caller a brief, warm closing statement.")
	s.scheduleSafetyTimer(s.cfg.SafetyTimer2, func() { s.forceHangup(context.Background()) })
}

func (s *Session) scheduleSafetyTimer(d time.Duration, onFire func()) {
	s.mu.Lock()
	if s.safetyTimer != nil {
		s.safetyTimer.Stop()
	}
	s.safetyTimer = s.clk.AfterFunc(d, onFire)
	s.mu.Unlock()
}

func (s *Session) onDelegate(ctx trigger.Context, payload interface{}) {
	m, _ := payload.(map[string]interface{})
	callID, _ := m["call_id"].(string)
	intent, _ := m["intent"].(string)
	request, _ := m["request"].(string)

	if callID == "" {
		s.logger.Warn("session: delegate trigger fired without call_id, skipping result")
		return
	}
	if s.delegate == nil {
		_ = s.backend.SendToolResult(callID, "I can't do that right now.")
		return
	}
	go func() {
		reply, err := s.delegate(context.Background(), intent, request)
		if err != nil {
			s.logger.Warn("session: delegate request failed", "error", err)
			_ = s.backend.SendToolResult(callID, "Sorry, I wasn't able to complete that.")
			return
		}
		_ = s.backend.SendToolResult(callID, reply)
	}()
}

// drainAndHangup polls the write queue while goodbyePending, waits for
// tail audio, then hangs up (§4.7 Phase 2).
func (s *Session) drainAndHangup() {
	ticker := s.clk.Ticker(s.cfg.DrainPollInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		pending := s.phase == phaseGoodbye
		s.mu.Unlock()
		if !pending {
			return
		}
		if s.bridge.WriteQueueSize() == 0 {
			break
		}
	}
	s.clk.Sleep(s.cfg.TailWait)
	s.forceHangup(context.Background())
}

func (s *Session) forceHangup(ctx context.Context) {
	s.Hangup(ctx)
}

// Hangup is idempotent: stops the bridge, disconnects the backend, sends
// the SIP hangup command, closes the transcript, releases the lock, and
// unblocks Start.
func (s *Session) Hangup(ctx context.Context) {
	s.hangupOnce.Do(func() {
		s.logger.Info("session: hanging up", "call_id", s.callID)
		s.mu.Lock()
		s.hangingUp = true
		if s.safetyTimer != nil {
			s.safetyTimer.Stop()
		}
		s.mu.Unlock()

		s.bridge.Stop()
		if err := s.backend.Disconnect(); err != nil {
			s.logger.Warn("session: backend disconnect error", "error", err)
		}
		if s.sip != nil {
			if _, err := s.sip.Hangup(); err != nil {
				s.logger.Warn("session: sip hangup error", "error", err)
			}
		}
		if err := s.tw.Close(); err != nil {
			s.logger.Warn("session: transcript close error", "error", err)
		}
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("session: lock release error", "error", err)
		}
		close(s.done)
	})
}
