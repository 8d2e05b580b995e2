// Package local implements the local voice pipeline backend (spec §4.5):
// two cooperating subprocesses (STT, TTS) plus a text-only streaming LLM
// HTTP call, exposed behind the same voiceagent.Backend contract the
// realtime WebSocket backend satisfies (§9: "a parallel implementation of
// the same interface", not a subtype refinement).
//
// Grounded on the teacher's pkg/orchestrator/managed_stream.go for the
// concurrency shape — a single mutex-guarded state struct, a dedicated
// worker goroutine draining a channel, explicit interrupt/abort paths —
// generalized from VAD-driven audio turn-taking to STT-subprocess-driven
// transcript turn-taking. go.uber.org/atomic replaces the teacher's plain
// bool/int64 fields for the flags read across goroutines (speaking,
// barge-in).
package local

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lokutor-ai/voicebridge/pkg/codec"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

// Config configures the subprocess commands and pipeline tunables. The
// constants below are the literal values spec §4.5 and §5 name.
type Config struct {
	STTCommand []string
	TTSCommand []string

	LLM LLMConfig

	EchoCooldown       time.Duration // 1.5s
	GreetingGateMinLen int           // 4 chars
	BargeInMinChars    int           // 10 chars
	BargeInMinWords    int           // 2 words
	SentenceMinLen     int           // 20 chars
	SentinelWait       time.Duration // 30s per-sentinel safety timer
	StartupTimeout     time.Duration // 120s subprocess model load
}

func DefaultConfig() Config {
	return Config{
		EchoCooldown:       1500 * time.Millisecond,
		GreetingGateMinLen: 4,
		BargeInMinChars:    10,
		BargeInMinWords:    2,
		SentenceMinLen:     20,
		SentinelWait:       30 * time.Second,
		StartupTimeout:     120 * time.Second,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend implements voiceagent.Backend over the local subprocess
// pipeline.
type Backend struct {
	cfg    Config
	logger voicelog.Logger

	mu        sync.Mutex
	cb        voiceagent.Callbacks
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	stt *sttProcess
	tts *ttsProcess

	utteranceCh chan string

	historyMu sync.Mutex
	history   []chatMessage
	profile   voiceagent.Profile

	speaking      atomic.Bool
	bargeIn       atomic.Bool
	gateOpen      atomic.Bool
	cooldownUntil atomic.Int64 // unix nano

	interruptMu            sync.Mutex
	interruptingTranscript string
}

func New(cfg Config, logger voicelog.Logger) *Backend {
	if logger == nil {
		logger = voicelog.NoOp{}
	}
	return &Backend{cfg: cfg, logger: logger}
}

func (b *Backend) Connect(ctx context.Context, profile voiceagent.Profile, cb voiceagent.Callbacks) error {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return voiceagent.ErrAlreadyConnected
	}
	b.cb = cb
	b.profile = profile
	b.mu.Unlock()

	b.historyMu.Lock()
	b.history = []chatMessage{{Role: "system", Content: systemPrompt(profile)}}
	b.historyMu.Unlock()

	stt, err := startSTT(b.cfg.STTCommand, b.cfg.StartupTimeout, b.logger, b.handleSTTEvent)
	if err != nil {
		return fmt.Errorf("local: start stt: %w", err)
	}
	tts, err := startTTS(b.cfg.TTSCommand, b.cfg.StartupTimeout, b.logger, b.handleTTSAudio)
	if err != nil {
		stt.Close()
		return fmt.Errorf("local: start tts: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.stt = stt
	b.tts = tts
	b.cancel = cancel
	b.connected = true
	b.utteranceCh = make(chan string, 4)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.utteranceWorker(runCtx)
	}()

	if cb.OnReady != nil {
		cb.OnReady()
	}
	return nil
}

func systemPrompt(p voiceagent.Profile) string {
	if p.Instructions != "" {
		return p.Instructions
	}
	return p.Personality
}

// SendAudio forwards caller audio (μ-law) to the STT subprocess as raw
// linear-16.
func (b *Backend) SendAudio(ulaw []byte) error {
	b.mu.Lock()
	stt := b.stt
	b.mu.Unlock()
	if stt == nil {
		return nil
	}
	return stt.WritePCM(codec.DecodeSlice(ulaw))
}

// SendText injects a synthetic user utterance, bypassing STT.
func (b *Backend) SendText(text string) error {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return nil
	}
	b.enqueueUtterance(text)
	return nil
}

func (b *Backend) SendToolResult(callID, output string) error {
	b.historyMu.Lock()
	b.history = append(b.history, chatMessage{Role: "tool", Content: fmt.Sprintf("[%s] %s", callID, output)})
	b.historyMu.Unlock()
	return nil
}

// PromptResponse asks the backend to speak specific content without a
// caller turn — modeled as a synthetic assistant-directed user message.
func (b *Backend) PromptResponse(instructions string) error {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return nil
	}
	b.enqueueUtterance("[system instruction] " + instructions)
	return nil
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil
	}
	b.connected = false
	cancel := b.cancel
	stt, tts := b.stt, b.tts
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stt != nil {
		stt.Close()
	}
	if tts != nil {
		tts.Close()
	}

	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		b.logger.Warn("local: workers did not join within grace period")
	}
	if b.cb.OnClose != nil {
		b.cb.OnClose()
	}
	return nil
}

func (b *Backend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// --- STT event handling: greeting gate, echo suppression, barge-in --------

func (b *Backend) handleSTTEvent(ev sttEvent) {
	switch ev.Type {
	case "speech_started":
		if b.cb.OnSpeechStarted != nil {
			b.cb.OnSpeechStarted()
		}
	case "speech_stopped":
		if b.cb.OnSpeechStopped != nil {
			b.cb.OnSpeechStopped()
		}
	case "transcript":
		b.handleTranscript(ev.Text)
	}
}

func isSubstantial(text string, minChars, minWords int) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minChars {
		return false
	}
	return len(strings.Fields(trimmed)) >= minWords
}

func (b *Backend) handleTranscript(text string) {
	if !b.gateOpen.Load() {
		if len(strings.TrimSpace(text)) < b.cfg.GreetingGateMinLen {
			b.logger.Debug("local: greeting gate discarding short transcript", "text", text)
			return
		}
		b.gateOpen.Store(true)
		b.enqueueUtterance(text)
		return
	}

	inCooldown := time.Now().UnixNano() < b.cooldownUntil.Load()
	if b.speaking.Load() || inCooldown {
		if isSubstantial(text, b.cfg.BargeInMinChars, b.cfg.BargeInMinWords) {
			b.interruptMu.Lock()
			b.interruptingTranscript = text
			b.interruptMu.Unlock()
			b.bargeIn.Store(true)
		} else {
			b.logger.Debug("local: dropping transcript as echo", "text", text)
		}
		return
	}

	if b.cb.OnInputTranscript != nil {
		b.cb.OnInputTranscript(text)
	}
	b.enqueueUtterance(text)
}

func (b *Backend) enqueueUtterance(text string) {
	b.mu.Lock()
	ch := b.utteranceCh
	b.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- text:
	default:
		b.logger.Warn("local: utterance queue full, dropping", "text", text)
	}
}

// --- TTS audio delivery -----------------------------------------------------

func (b *Backend) handleTTSAudio(frame []byte) {
	ulaw := codec.EncodeSlice(frame)
	if b.cb.OnAudio != nil {
		b.cb.OnAudio(ulaw)
	}
}

// --- Utterance worker: single consumer serializing transcript→LLM→TTS -----

func (b *Backend) utteranceWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-b.utteranceCh:
			next := b.generate(ctx, text)
			for next != "" {
				n := next
				next = b.generate(ctx, n)
			}
		}
	}
}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s`)

// generate streams one assistant turn for userText. It returns a
// non-empty string if the turn was interrupted by a substantial barge-in
// transcript, which the caller re-feeds as the next utterance.
func (b *Backend) generate(ctx context.Context, userText string) string {
	b.bargeIn.Store(false)

	b.historyMu.Lock()
	b.history = append(b.history, chatMessage{Role: "user", Content: userText})
	snapshot := make([]chatMessage, len(b.history))
	copy(snapshot, b.history)
	b.historyMu.Unlock()

	var buf strings.Builder
	var full strings.Builder
	firstSentence := true
	interrupted := false

	emit := func(sentence string) bool {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			return true
		}
		full.WriteString(sentence)
		full.WriteString(" ")
		if err := b.tts.Speak(sentence); err != nil {
			b.logger.Warn("local: tts write failed", "error", err)
			return false
		}
		if firstSentence {
			b.speaking.Store(true)
			firstSentence = false
		}
		if !b.tts.WaitDelivered(b.cfg.SentinelWait) {
			b.logger.Warn("local: timed out waiting for tts sentinel")
		}
		if b.bargeIn.Load() {
			interrupted = true
			return false
		}
		return true
	}

	err := streamLLM(ctx, b.cfg.LLM, snapshot, func(token string) error {
		buf.WriteString(token)
		for {
			var loc []int
			for _, l := range sentenceBoundary.FindAllStringIndex(buf.String(), -1) {
				if l[1] >= b.cfg.SentenceMinLen {
					loc = l
					break
				}
			}
			if loc == nil {
				break
			}
			sentence := buf.String()[:loc[1]]
			rest := buf.String()[loc[1]:]
			buf.Reset()
			buf.WriteString(rest)
			if !emit(sentence) {
				return errBargeIn
			}
		}
		return nil
	})

	if err != nil && err != errBargeIn {
		b.logger.Warn("local: llm stream error", "error", err)
	}

	if !interrupted && strings.TrimSpace(buf.String()) != "" {
		emit(buf.String())
	}

	b.speaking.Store(false)

	if interrupted {
		b.interruptMu.Lock()
		t := b.interruptingTranscript
		b.interruptMu.Unlock()
		return t
	}

	b.cooldownUntil.Store(time.Now().Add(b.cfg.EchoCooldown).UnixNano())

	assistantText := strings.TrimSpace(full.String())
	b.historyMu.Lock()
	b.history = append(b.history, chatMessage{Role: "assistant", Content: assistantText})
	b.historyMu.Unlock()

	if b.cb.OnTranscript != nil {
		b.cb.OnTranscript(assistantText)
	}
	if b.cb.OnResponseDone != nil {
		b.cb.OnResponseDone(voiceagent.Usage{})
	}
	return ""
}

var errBargeIn = fmt.Errorf("local: generation interrupted by barge-in")

// --- subprocess line protocol helpers --------------------------------------

type sttEvent struct {
	Type    string  `json:"type"`
	Text    string  `json:"text"`
	Latency float64 `json:"latency"`
}

func readJSONLines(r io.Reader, logger voicelog.Logger, onLine func([]byte)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var probe json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			logger.Warn("local: malformed json line, skipping", "error", err)
			continue
		}
		onLine(append([]byte(nil), line...))
	}
}

func startProcess(command []string) (*exec.Cmd, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("local: empty subprocess command")
	}
	cmd := exec.Command(command[0], command[1:]...)
	return cmd, nil
}
