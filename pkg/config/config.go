// Package config loads static agent-profile definitions from YAML and
// runtime credentials from the environment, per spec §10 (AMBIENT STACK
// configuration). Grounded on blitss-sip-tg-bridge/bridge/config.go for
// the YAML-struct-tag convention (gopkg.in/yaml.v3) and on the teacher's
// cmd/agent/main.go, which already calls github.com/joho/godotenv to load
// a .env file before reading os.Getenv for provider credentials.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lokutor-ai/voicebridge/pkg/voiceagent"
)

// AgentProfile is the on-disk shape of a named agent persona.
type AgentProfile struct {
	Name         string               `yaml:"name"`
	Voice        string               `yaml:"voice"`
	Language     string               `yaml:"language"`
	Personality  string               `yaml:"personality"`
	Instructions string               `yaml:"instructions"`
	Tools        []AgentToolSpec      `yaml:"tools"`
	FarewellWords []string            `yaml:"farewell_words"`
	WakePhrases  []string             `yaml:"wake_phrases"`
}

type AgentToolSpec struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Parameters  map[string]interface{} `yaml:"parameters"`
}

// AgentFile is the top-level document: a map of profile name to profile.
type AgentFile struct {
	Profiles map[string]AgentProfile `yaml:"profiles"`
}

// LoadAgents reads and parses a YAML agent-profile file.
func LoadAgents(path string) (*AgentFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read agents file: %w", err)
	}
	var f AgentFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse agents file: %w", err)
	}
	return &f, nil
}

// Profile converts an on-disk AgentProfile into the runtime
// voiceagent.Profile the backend's Connect accepts.
func (p AgentProfile) Profile() voiceagent.Profile {
	tools := make([]voiceagent.ToolSpec, len(p.Tools))
	for i, t := range p.Tools {
		tools[i] = voiceagent.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	lang := voiceagent.Language(p.Language)
	if lang == "" {
		lang = voiceagent.LanguageEn
	}
	return voiceagent.Profile{
		Name:         p.Name,
		Voice:        voiceagent.Voice(p.Voice),
		Language:     lang,
		Personality:  p.Personality,
		Instructions: p.Instructions,
		Tools:        tools,
	}
}

// Credentials holds runtime secrets loaded from the environment. Missing
// required fields are a configuration error (spec §7, kind 1), reported
// synchronously at startup.
type Credentials struct {
	RealtimeAPIKey string
	RealtimeHost   string
	GroqAPIKey     string
	OpenAIAPIKey   string
	LokutorAPIKey  string
}

// LoadCredentials loads envFile when it is non-empty (a missing file is
// ignored) and then reads process environment variables.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("config: load env file: %w", err)
		}
	}
	return Credentials{
		RealtimeAPIKey: os.Getenv("VOICEBRIDGE_REALTIME_API_KEY"),
		RealtimeHost:   os.Getenv("VOICEBRIDGE_REALTIME_HOST"),
		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		LokutorAPIKey:  os.Getenv("LOKUTOR_API_KEY"),
	}, nil
}

// RequireRealtime validates the credentials needed for the realtime
// WebSocket backend.
func (c Credentials) RequireRealtime() error {
	if c.RealtimeAPIKey == "" {
		return fmt.Errorf("config: missing VOICEBRIDGE_REALTIME_API_KEY")
	}
	if c.RealtimeHost == "" {
		return fmt.Errorf("config: missing VOICEBRIDGE_REALTIME_HOST")
	}
	return nil
}
