package voiceagent

import "errors"

// Sentinel errors, in the teacher's pkg/orchestrator/errors.go style:
// declared with errors.New, wrapped at call sites with fmt.Errorf("...: %w").
var (
	ErrNotConnected     = errors.New("voiceagent: not connected")
	ErrAlreadyConnected = errors.New("voiceagent: already connected")
	ErrBackendClosed    = errors.New("voiceagent: backend closed")
	ErrEmptyTranscript  = errors.New("voiceagent: empty transcript")
	ErrSubprocessFailed = errors.New("voiceagent: subprocess failed")
	ErrStartupTimeout   = errors.New("voiceagent: subprocess startup timeout")
)
