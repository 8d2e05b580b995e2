// Package voiceagent defines the voice backend contract (spec §4.3) that
// the realtime WebSocket backend (pkg/voiceagent/realtime) and the local
// subprocess pipeline (pkg/voiceagent/local) both implement.
//
// Grounded on the teacher's pkg/orchestrator/types.go, which splits the
// same concern into three separate provider interfaces (STTProvider,
// LLMProvider, TTSProvider) composed by an Orchestrator. Per the design
// note on dynamic dispatch (§9: "the local backend is not a subtype
// refinement of the realtime backend — it is a parallel implementation of
// the same interface"), this package collapses that split into a single
// Backend interface with a callback bundle, which is what the realtime
// vendor API and the local pipeline both actually expose to a caller: one
// connect/stream/disconnect surface, not three separately-timed pipelines.
package voiceagent

import (
	"context"
	"fmt"
)

// Voice and Language are carried over from the teacher's enums; the
// realtime and local backends both accept them in Connect's profile.
type Voice string

const (
	VoiceF1 Voice = "f1"
	VoiceF2 Voice = "f2"
	VoiceF3 Voice = "f3"
	VoiceM1 Voice = "m1"
	VoiceM2 Voice = "m2"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
)

// Usage is the backend's per-utterance usage metadata, forwarded verbatim
// on OnResponseDone. The local backend has no token accounting from a
// vendor, so it reports zero values — see Open Question (a) in §9.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Profile configures a session: persona, voice, tool list.
type Profile struct {
	Name         string
	Voice        Voice
	Language     Language
	Personality  string
	Instructions string
	Tools        []ToolSpec
}

// ToolSpec names a tool the backend may invoke via OnToolCall.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Callbacks is the canonical event set from §3's "Voice backend event set"
// table. Every field is optional; a nil callback is simply not invoked.
type Callbacks struct {
	OnReady            func()
	OnAudio            func(ulaw []byte)
	OnText             func(delta string)
	OnTranscript       func(text string)
	OnInputTranscript  func(text string)
	OnSpeechStarted    func()
	OnSpeechStopped    func()
	OnResponseDone     func(usage Usage)
	OnToolCall         func(name, argsJSON, callID string)
	OnError            func(err error)
	OnClose            func()
}

// WithInstructionOverride returns a copy of p with Instructions replaced,
// preserving Name and Voice and prepending "Your name is <name>. " so the
// override never loses the persona's identity (spec §8 "Instruction
// override preserves the profile's name and voice").
func (p Profile) WithInstructionOverride(override string) Profile {
	np := p
	np.Instructions = fmt.Sprintf("Your name is %s. %s", p.Name, override)
	return np
}

// Backend is the voice-backend contract (§4.3). Implementations must
// deliver OnAudio frame-aligned (a multiple of 160 μ-law bytes).
type Backend interface {
	Connect(ctx context.Context, profile Profile, cb Callbacks) error
	SendAudio(ulaw []byte) error
	SendText(text string) error
	SendToolResult(callID, output string) error
	PromptResponse(instructions string) error
	Disconnect() error
	Connected() bool
}
