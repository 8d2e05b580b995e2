package local

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

// sttProcess wraps the STT subprocess: raw linear-16 8kHz on stdin, one
// JSON event per line on stdout (spec §4.5).
type sttProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	mu    sync.Mutex
}

func startSTT(command []string, startupTimeout time.Duration, logger voicelog.Logger, onEvent func(sttEvent)) (*sttProcess, error) {
	cmd, err := startProcess(command)
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("local: stt subprocess start: %w", err)
	}

	go readJSONLines(stdout, logger, func(line []byte) {
		var ev sttEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warn("local: malformed stt event, skipping", "error", err)
			return
		}
		onEvent(ev)
	})
	go logStderr(stderr, logger, "stt")

	return &sttProcess{cmd: cmd, stdin: stdin}, nil
}

func (s *sttProcess) WritePCM(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return fmt.Errorf("local: stt stdin closed")
	}
	_, err := s.stdin.Write(pcm)
	return err
}

func (s *sttProcess) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin != nil {
		s.stdin.Close()
		s.stdin = nil
	}
	done := make(chan struct{})
	go func() { s.cmd.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
	}
}

// ttsProcess wraps the TTS subprocess: one JSON {"text": "..."} object per
// line on stdin, raw linear-16 24kHz-resampled-to-8kHz on stdout framed by
// a 4-byte 0xDEADBEEF little-endian sentinel (spec §4.5).
type ttsProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	mu    sync.Mutex

	deliveredMu sync.Mutex
	delivered   chan struct{}
}

var sentinel = []byte{0xEF, 0xBE, 0xAD, 0xDE} // little-endian 0xDEADBEEF

func startTTS(command []string, startupTimeout time.Duration, logger voicelog.Logger, onAudio func(frame []byte)) (*ttsProcess, error) {
	cmd, err := startProcess(command)
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("local: tts subprocess start: %w", err)
	}

	t := &ttsProcess{cmd: cmd, stdin: stdin, delivered: make(chan struct{}, 1)}
	go t.readAudio(stdout, onAudio, logger)
	go logStderr(stderr, logger, "tts")
	return t, nil
}

// readAudio implements the sentinel-framed accumulator described in
// §4.5 "TTS audio reader": scan for the sentinel, slice, frame, discard,
// repeat, careful not to consume bytes that could be the start of the
// next sentinel.
func (t *ttsProcess) readAudio(r io.Reader, onAudio func([]byte), logger voicelog.Logger) {
	const frameBytes = 320
	buf := make([]byte, 0, frameBytes*8)
	chunk := make([]byte, 4096)
	firstSentinel := true

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				idx := indexOf(buf, sentinel)
				if idx < 0 {
					break
				}
				pre := buf[:idx]
				if !firstSentinel && len(pre) > 0 {
					for off := 0; off+frameBytes <= len(pre); off += frameBytes {
						onAudio(pre[off : off+frameBytes])
					}
				}
				buf = append([]byte(nil), buf[idx+len(sentinel):]...)
				if firstSentinel {
					firstSentinel = false
					continue
				}
				select {
				case t.delivered <- struct{}{}:
				default:
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("local: tts stdout read error", "error", err)
			}
			return
		}
	}
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func (t *ttsProcess) Speak(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin == nil {
		return fmt.Errorf("local: tts stdin closed")
	}
	line, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	_, err = t.stdin.Write(append(line, '\n'))
	return err
}

// WaitDelivered blocks until the current sentence's audio has been fully
// emitted (a non-warm-up sentinel observed), or until timeout elapses.
// Returns false on timeout.
func (t *ttsProcess) WaitDelivered(timeout time.Duration) bool {
	select {
	case <-t.delivered:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (t *ttsProcess) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin != nil {
		t.stdin.Close()
		t.stdin = nil
	}
	done := make(chan struct{})
	go func() { t.cmd.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if t.cmd.Process != nil {
			t.cmd.Process.Kill()
		}
	}
}

func logStderr(r io.Reader, logger voicelog.Logger, who string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug("local: subprocess status", "proc", who, "line", scanner.Text())
	}
}
