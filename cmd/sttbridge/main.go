// Command sttbridge is the STT subprocess shim for the local voice
// pipeline (spec §4.5): it reads raw linear-16 8kHz audio on stdin, runs
// voice-activity detection to find utterance boundaries, and emits one
// JSON status/transcript line per event on stdout.
//
// Reuses the teacher's pkg/orchestrator.RMSVAD directly (adapted by
// calling it from a subprocess protocol loop instead of from
// ManagedStream.Write) and pkg/providers/stt.GroqSTT as the concrete
// vendor behind the protocol boundary.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lokutor-ai/voicebridge/pkg/orchestrator"
	"github.com/lokutor-ai/voicebridge/pkg/providers/stt"
)

type outEvent struct {
	Type    string  `json:"type"`
	Text    string  `json:"text,omitempty"`
	Latency float64 `json:"latency,omitempty"`
}

func emit(enc *json.Encoder, ev outEvent) {
	if err := enc.Encode(ev); err != nil {
		fmt.Fprintf(os.Stderr, "sttbridge: encode error: %v\n", err)
	}
}

func main() {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "sttbridge: missing GROQ_API_KEY")
		os.Exit(1)
	}
	provider := stt.NewGroqSTT(apiKey, "")
	provider.SetSampleRate(8000)

	vad := orchestrator.NewRMSVAD(0.02, 500*time.Millisecond)

	out := json.NewEncoder(os.Stdout)
	in := bufio.NewReaderSize(os.Stdin, 64*1024)

	var utterance []byte
	chunk := make([]byte, 320)

	for {
		n, err := io.ReadFull(in, chunk)
		if n > 0 {
			ev, verr := vad.Process(chunk[:n])
			if verr == nil && ev != nil {
				switch ev.Type {
				case orchestrator.VADSpeechStart:
					emit(out, outEvent{Type: "speech_started"})
					utterance = utterance[:0]
				case orchestrator.VADSpeechEnd:
					emit(out, outEvent{Type: "speech_stopped"})
					if len(utterance) > 0 {
						start := time.Now()
						text, terr := provider.Transcribe(context.Background(), utterance, "en")
						if terr != nil {
							fmt.Fprintf(os.Stderr, "sttbridge: transcribe error: %v\n", terr)
						} else {
							emit(out, outEvent{Type: "transcript", Text: text, Latency: time.Since(start).Seconds()})
						}
					}
					utterance = utterance[:0]
				}
			}
			if vad.IsSpeaking() {
				utterance = append(utterance, chunk[:n]...)
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				fmt.Fprintf(os.Stderr, "sttbridge: stdin read error: %v\n", err)
			}
			return
		}
	}
}
