// Command ttsbridge is the TTS subprocess shim for the local voice
// pipeline (spec §4.5): it reads one JSON {"text": "..."} object per line
// on stdin and writes raw linear-16 PCM, resampled to 8kHz and padded to
// a 320-byte frame boundary, followed by the 4-byte 0xDEADBEEF
// little-endian utterance-boundary sentinel, on stdout.
//
// Wraps pkg/providers/tts.LokutorTTS (the teacher's websocket TTS
// client) as the concrete vendor behind the protocol boundary.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lokutor-ai/voicebridge/pkg/audio"
	"github.com/lokutor-ai/voicebridge/pkg/orchestrator"
	"github.com/lokutor-ai/voicebridge/pkg/providers/tts"
)

var sentinel = []byte{0xEF, 0xBE, 0xAD, 0xDE} // little-endian 0xDEADBEEF

type inLine struct {
	Text string `json:"text"`
}

func main() {
	apiKey := os.Getenv("LOKUTOR_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ttsbridge: missing LOKUTOR_API_KEY")
		os.Exit(1)
	}
	provider := tts.NewLokutorTTS(apiKey)
	voice := orchestrator.Voice(envOr("VOICEBRIDGE_VOICE", "f1"))
	lang := orchestrator.Language(envOr("VOICEBRIDGE_LANGUAGE", "en"))

	// Warm-up flush: emit an empty sentinel immediately so the reader on
	// the other end can distinguish genuine first-utterance audio from
	// subprocess startup jitter (spec §4.5 "first sentinel ... ignored").
	os.Stdout.Write(sentinel)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line inLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			fmt.Fprintf(os.Stderr, "ttsbridge: malformed input line: %v\n", err)
			continue
		}
		if err := speak(provider, line.Text, voice, lang); err != nil {
			fmt.Fprintf(os.Stderr, "ttsbridge: synthesis error: %v\n", err)
		}
	}
}

func speak(provider *tts.LokutorTTS, text string, voice orchestrator.Voice, lang orchestrator.Language) error {
	var pcm24k []byte
	err := provider.StreamSynthesize(context.Background(), text, voice, lang, func(chunk []byte) error {
		pcm24k = append(pcm24k, chunk...)
		return nil
	})
	if err != nil {
		return err
	}
	framed := audio.PadToFrameBoundary(audio.Downsample3to1(pcm24k), 320)
	if _, err := os.Stdout.Write(framed); err != nil {
		return err
	}
	_, err = os.Stdout.Write(sentinel)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
