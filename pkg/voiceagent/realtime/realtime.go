// Package realtime implements the voiceagent.Backend contract over a
// WebSocket to a vendor realtime voice API (spec §4.4).
//
// Grounded on the teacher's pkg/providers/tts/lokutor.go, which already
// dials a single github.com/coder/websocket connection, sends a JSON
// request, and switches on inbound message type/text sentinels. This
// package generalizes that shape into the full bidirectional event
// protocol the realtime backend needs: a session-scoped connection with an
// outbound JSON-command side and an inbound typed-event dispatch loop,
// instead of one request/response call.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

// Config points at the vendor realtime endpoint.
type Config struct {
	Host      string // e.g. "api.example-realtime.com"
	Path      string // e.g. "/v1/realtime"
	APIKey    string
	ModelName string
}

// Backend is the realtime WebSocket implementation of voiceagent.Backend.
type Backend struct {
	cfg    Config
	logger voicelog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cb        voiceagent.Callbacks

	cancel context.CancelFunc
}

func New(cfg Config, logger voicelog.Logger) *Backend {
	if logger == nil {
		logger = voicelog.NoOp{}
	}
	return &Backend{cfg: cfg, logger: logger}
}

// inboundEvent mirrors the subset of vendor realtime event fields this
// backend understands; unknown types are ignored (§7 kind 4: protocol
// parse errors are skipped, not fatal).
type inboundEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Audio string `json:"audio"`

	Transcript string `json:"transcript"`

	Response struct {
		Usage struct {
			TotalTokens      int `json:"total_tokens"`
			PromptTokens     int `json:"input_tokens"`
			CompletionTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"response"`

	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`

	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Backend) Connect(ctx context.Context, profile voiceagent.Profile, cb voiceagent.Callbacks) error {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return voiceagent.ErrAlreadyConnected
	}
	b.cb = cb
	b.mu.Unlock()

	u := url.URL{Scheme: "wss", Host: b.cfg.Host, Path: b.cfg.Path}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + b.cfg.APIKey}},
	})
	if err != nil {
		return fmt.Errorf("realtime: dial failed: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	b.conn = conn
	b.connected = true
	b.cancel = cancel
	b.mu.Unlock()

	tools := make([]map[string]interface{}, 0, len(profile.Tools))
	for _, t := range profile.Tools {
		tools = append(tools, map[string]interface{}{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}

	sessionUpdate := map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"voice":              string(profile.Voice),
			"modalities":         []string{"text", "audio"},
			"instructions":       profile.Instructions,
			"input_audio_format": "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"turn_detection":      map[string]interface{}{"type": "server_vad"},
			"tools":               tools,
		},
	}
	if err := wsjson.Write(sessionCtx, conn, sessionUpdate); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "session.update failed")
		return fmt.Errorf("realtime: session.update failed: %w", err)
	}

	if cb.OnReady != nil {
		cb.OnReady()
	}

	go b.readLoop(sessionCtx, conn)
	return nil
}

func (b *Backend) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			b.mu.Lock()
			b.connected = false
			b.mu.Unlock()
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil && b.cb.OnError != nil {
				b.cb.OnError(fmt.Errorf("realtime: read: %w", err))
			}
			if b.cb.OnClose != nil {
				b.cb.OnClose()
			}
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			b.logger.Warn("realtime: malformed event, skipping", "error", err)
			continue
		}
		b.dispatch(ev)
	}
}

func (b *Backend) dispatch(ev inboundEvent) {
	cb := b.cb
	switch ev.Type {
	case "response.audio.delta":
		raw, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			b.logger.Warn("realtime: bad audio delta base64", "error", err)
			return
		}
		if cb.OnAudio != nil {
			cb.OnAudio(raw)
		}
	case "response.audio_transcript.delta":
		if cb.OnText != nil {
			cb.OnText(ev.Delta)
		}
	case "response.audio_transcript.done":
		if cb.OnTranscript != nil {
			cb.OnTranscript(ev.Transcript)
		}
	case "response.done":
		if cb.OnResponseDone != nil {
			cb.OnResponseDone(voiceagent.Usage{
				PromptTokens:     ev.Response.Usage.PromptTokens,
				CompletionTokens: ev.Response.Usage.CompletionTokens,
				TotalTokens:      ev.Response.Usage.TotalTokens,
			})
		}
	case "input_audio_buffer.speech_started":
		if cb.OnSpeechStarted != nil {
			cb.OnSpeechStarted()
		}
	case "input_audio_buffer.speech_stopped":
		if cb.OnSpeechStopped != nil {
			cb.OnSpeechStopped()
		}
	case "conversation.item.input_audio_transcription.completed":
		if cb.OnInputTranscript != nil {
			cb.OnInputTranscript(ev.Transcript)
		}
	case "response.function_call_arguments.done":
		if cb.OnToolCall != nil {
			cb.OnToolCall(ev.Name, ev.Arguments, ev.CallID)
		}
	case "session.created", "session.updated":
		// forwarded for observability only; no callback named for these.
	case "error":
		if cb.OnError != nil {
			cb.OnError(fmt.Errorf("realtime: %s", ev.Error.Message))
		}
	default:
		b.logger.Debug("realtime: unhandled event type", "type", ev.Type)
	}
}

func (b *Backend) SendAudio(ulaw []byte) error {
	conn, ok := b.activeConn()
	if !ok {
		return nil
	}
	msg := map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(ulaw),
	}
	return wsjson.Write(context.Background(), conn, msg)
}

func (b *Backend) SendText(text string) error {
	conn, ok := b.activeConn()
	if !ok {
		return nil
	}
	ctx := context.Background()
	item := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "input_text", "text": text},
			},
		},
	}
	if err := wsjson.Write(ctx, conn, item); err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, map[string]interface{}{
		"type":     "response.create",
		"response": map[string]interface{}{"modalities": []string{"text", "audio"}},
	})
}

func (b *Backend) SendToolResult(callID, output string) error {
	conn, ok := b.activeConn()
	if !ok {
		return nil
	}
	ctx := context.Background()
	item := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}
	if err := wsjson.Write(ctx, conn, item); err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, map[string]interface{}{
		"type":     "response.create",
		"response": map[string]interface{}{"modalities": []string{"text", "audio"}},
	})
}

func (b *Backend) PromptResponse(instructions string) error {
	conn, ok := b.activeConn()
	if !ok {
		return nil
	}
	return wsjson.Write(context.Background(), conn, map[string]interface{}{
		"type": "response.create",
		"response": map[string]interface{}{
			"modalities":   []string{"text", "audio"},
			"instructions": instructions,
		},
	})
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil
	}
	b.connected = false
	if b.cancel != nil {
		b.cancel()
	}
	err := b.conn.Close(websocket.StatusNormalClosure, "")
	return err
}

func (b *Backend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Backend) activeConn() (*websocket.Conn, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, false
	}
	return b.conn, true
}
