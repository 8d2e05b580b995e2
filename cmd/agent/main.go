// Command agent is the telephony entry point (spec §4.7): it loads the
// agent profile and credentials, wires the audio bridge to either the
// realtime WebSocket backend or the local subprocess pipeline, hands both
// to a session orchestrator alongside the SIP control channel, and blocks
// until the call ends.
//
// Exit codes follow spec §6: 0 on clean hangup, non-zero for lock
// contention, missing credentials, subprocess startup timeout, or an
// unrecoverable backend error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lokutor-ai/voicebridge/pkg/bridge"
	"github.com/lokutor-ai/voicebridge/pkg/config"
	"github.com/lokutor-ai/voicebridge/pkg/session"
	"github.com/lokutor-ai/voicebridge/pkg/sipctl"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent/local"
	"github.com/lokutor-ai/voicebridge/pkg/voiceagent/realtime"
	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

const (
	exitOK = iota
	exitLockContention
	exitConfigError
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "agent: loading .env: %v\n", err)
	}

	logger, err := voicelog.New(envOr("VOICEBRIDGE_LOG_LEVEL", "info"), envOr("VOICEBRIDGE_ENV", "development") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent: logger init: %v\n", err)
		return exitConfigError
	}

	creds, err := config.LoadCredentials("")
	if err != nil {
		logger.Error("agent: credentials", "error", err)
		return exitConfigError
	}

	profile, err := loadProfile()
	if err != nil {
		logger.Error("agent: profile", "error", err)
		return exitConfigError
	}

	backendKind := envOr("VOICEBRIDGE_BACKEND", "realtime")
	var backend voiceagent.Backend
	switch backendKind {
	case "local":
		backend = local.New(localConfig(creds), logger)
	case "realtime":
		fallthrough
	default:
		if err := creds.RequireRealtime(); err != nil {
			logger.Error("agent: realtime backend requires credentials", "error", err)
			return exitConfigError
		}
		backend = realtime.New(realtime.Config{
			Host:      creds.RealtimeHost,
			Path:      envOr("VOICEBRIDGE_REALTIME_PATH", "/v1/realtime"),
			APIKey:    creds.RealtimeAPIKey,
			ModelName: envOr("VOICEBRIDGE_REALTIME_MODEL", "default"),
		}, logger)
	}

	socketPath := envOr("VOICEBRIDGE_AUDIO_SOCKET", "/tmp/ausock.sock")
	br := bridge.New(bridge.DefaultConfig(socketPath), backend, logger)

	var sip *sipctl.Client
	if addr := os.Getenv("VOICEBRIDGE_SIPCTL_ADDR"); addr != "" {
		sip, err = sipctl.Dial(addr, 5*time.Second)
		if err != nil {
			logger.Warn("agent: sip control channel unavailable", "error", err)
			sip = nil
		} else {
			defer sip.Close()
		}
	}

	lockPath := envOr("VOICEBRIDGE_LOCK_PATH", "/tmp/agent.pid")
	transcriptPath := os.Getenv("VOICEBRIDGE_TRANSCRIPT_PATH")
	if transcriptPath == "" {
		transcriptPath = fmt.Sprintf("/tmp/transcript-%d.txt", time.Now().UnixNano())
	}
	callerNumber := envOr("VOICEBRIDGE_CALLER_NUMBER", "unknown")

	sess, err := session.New(session.DefaultConfig(lockPath, transcriptPath, callerNumber), session.Params{
		Bridge:  br,
		Backend: backend,
		SIP:     sip,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("agent: session init", "error", err)
		return exitLockContention
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("agent: signal received, hanging up")
		sess.Hangup(ctx)
	}()

	if err := sess.Start(ctx, profile); err != nil {
		logger.Error("agent: session start", "error", err)
		return exitLockContention
	}
	return exitOK
}

// localConfig builds the local voice pipeline's subprocess commands and
// LLM endpoint from environment variables, layered on local.DefaultConfig's
// timing constants (spec §4.5, §10).
func localConfig(creds config.Credentials) local.Config {
	cfg := local.DefaultConfig()
	cfg.STTCommand = []string{envOr("VOICEBRIDGE_STTBRIDGE_BIN", "sttbridge")}
	cfg.TTSCommand = []string{envOr("VOICEBRIDGE_TTSBRIDGE_BIN", "ttsbridge")}
	cfg.LLM = local.DefaultLLMConfig(
		envOr("VOICEBRIDGE_LLM_ENDPOINT", "https://api.groq.com/openai/v1/chat/completions"),
		envOr("VOICEBRIDGE_LLM_API_KEY", creds.GroqAPIKey),
		envOr("VOICEBRIDGE_LLM_MODEL", "llama-3.3-70b-versatile"),
	)
	return cfg
}

func loadProfile() (voiceagent.Profile, error) {
	path := os.Getenv("VOICEBRIDGE_AGENTS_FILE")
	name := envOr("VOICEBRIDGE_AGENT_NAME", "default")
	if path == "" {
		return voiceagent.Profile{
			Name:     "Garbo",
			Voice:    voiceagent.VoiceF1,
			Language: voiceagent.LanguageEn,
		}, nil
	}
	agents, err := config.LoadAgents(path)
	if err != nil {
		return voiceagent.Profile{}, err
	}
	p, ok := agents.Profiles[name]
	if !ok {
		return voiceagent.Profile{}, fmt.Errorf("agent: profile %q not found in %s", name, path)
	}
	return p.Profile(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
