// Package orchestrator carries the small set of shared vendor-facing types
// (Voice, Language, Message, the VAD event contract) that pkg/providers/*
// and the STT/TTS subprocess binaries (cmd/sttbridge, cmd/ttsbridge) build
// on. The conversational pipeline this package once housed
// (Orchestrator/ManagedStream/EchoSuppressor) has no consumer left: the
// spec's local voice pipeline (pkg/voiceagent/local) implements its own
// turn-taking and echo suppression against a subprocess protocol rather
// than a captured-audio stream, so that stack was removed rather than kept
// as unexercised verbatim carryover.
package orchestrator

type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Reset()
	Clone() VADProvider
	Name() string
}

type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
