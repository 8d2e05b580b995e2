// Package trigger implements the trigger framework from spec §4.6: small,
// independently testable predicates over call context that fire a named
// action (hangup, delegate, ...) for the session orchestrator to react to.
//
// Grounded on the teacher's orchestrator.go event-dispatch idiom (a
// switch over named event types driving callback invocation) generalized
// to a pluggable set of triggers. Delegation tool-argument parsing uses
// github.com/tidwall/gjson, the JSON-path library already pulled in by
// the pack (beluga-ai and other_examples/manifests) for ad hoc JSON
// inspection without a fixed schema — a good fit for untyped tool
// arguments (§9 "dynamic payloads": Parsed(map) | Raw(string) | Empty).
package trigger

import (
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Action names a trigger outcome the session orchestrator reacts to.
type Action string

const (
	ActionHangup   Action = "hangup"
	ActionDelegate Action = "delegate"
)

// Context is the bag of optional fields a trigger may consult.
type Context struct {
	Transcript     string
	Role           string // "user" or "assistant"
	LastResponseAt *time.Time
	Now            time.Time
	IsSpeaking     bool
	ToolName       string
	ToolArguments  interface{} // map[string]interface{}, string, or nil
	ToolCallID     string
}

// Result is what a trigger returns when it fires.
type Result struct {
	Action  Action
	Payload interface{}
}

// Trigger is the common contract every concrete trigger satisfies.
type Trigger interface {
	Name() string
	Check(ctx Context) *Result
	Once() bool
}

// --- Farewell (keyword) trigger -------------------------------------------

var defaultFarewellWords = []string{"goodbye", "bye", "see you later", "take care", "gotta go"}

type FarewellTrigger struct {
	name       string
	action     Action
	pattern    *regexp.Regexp
	roleFilter string // empty means no filter
	once       bool
}

// NewFarewellTrigger compiles words (plain strings, word-boundary
// anchored, case-insensitive) into one alternation regex. Pass a single
// element containing regex metacharacters to use a raw pattern instead.
func NewFarewellTrigger(name string, action Action, words []string, roleFilter string) *FarewellTrigger {
	if len(words) == 0 {
		words = defaultFarewellWords
	}
	var re *regexp.Regexp
	if len(words) == 1 && regexp.QuoteMeta(words[0]) != words[0] {
		re = regexp.MustCompile(words[0])
	} else {
		parts := make([]string, len(words))
		for i, w := range words {
			parts[i] = `\b` + regexp.QuoteMeta(w) + `\b`
		}
		re = regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
	}
	return &FarewellTrigger{name: name, action: action, pattern: re, roleFilter: roleFilter, once: true}
}

func (t *FarewellTrigger) Name() string { return t.name }
func (t *FarewellTrigger) Once() bool   { return t.once }

func (t *FarewellTrigger) Check(ctx Context) *Result {
	if t.roleFilter != "" && ctx.Role != t.roleFilter {
		return nil
	}
	m := t.pattern.FindString(ctx.Transcript)
	if m == "" {
		return nil
	}
	return &Result{Action: t.action, Payload: m}
}

// --- Silence trigger --------------------------------------------------------

type SilenceTrigger struct {
	name    string
	action  Action
	timeout time.Duration
	once    bool
}

func NewSilenceTrigger(name string, action Action, timeout time.Duration) *SilenceTrigger {
	return &SilenceTrigger{name: name, action: action, timeout: timeout, once: true}
}

func (t *SilenceTrigger) Name() string { return t.name }
func (t *SilenceTrigger) Once() bool   { return t.once }

func (t *SilenceTrigger) Check(ctx Context) *Result {
	if ctx.IsSpeaking {
		return nil
	}
	if ctx.LastResponseAt == nil {
		return nil
	}
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	if now.Sub(*ctx.LastResponseAt) > t.timeout {
		return &Result{Action: t.action}
	}
	return nil
}

// --- Delegation trigger ------------------------------------------------------

type DelegationTrigger struct {
	name   string
	action Action
	tool   string
}

func NewDelegationTrigger(name string, action Action, tool string) *DelegationTrigger {
	if tool == "" {
		tool = "classify_intent"
	}
	return &DelegationTrigger{name: name, action: action, tool: tool}
}

func (t *DelegationTrigger) Name() string { return t.name }
func (t *DelegationTrigger) Once() bool   { return false }

func (t *DelegationTrigger) Check(ctx Context) *Result {
	if ctx.ToolName != t.tool {
		return nil
	}
	payload := parseToolArguments(ctx.ToolArguments)
	payload["call_id"] = ctx.ToolCallID
	return &Result{Action: t.action, Payload: payload}
}

func parseToolArguments(args interface{}) map[string]interface{} {
	switch v := args.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case string:
		if !gjson.Valid(v) {
			return map[string]interface{}{"raw": v}
		}
		parsed := gjson.Parse(v)
		if !parsed.IsObject() {
			return map[string]interface{}{"raw": v}
		}
		out := make(map[string]interface{})
		parsed.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = value.Value()
			return true
		})
		return out
	default:
		return map[string]interface{}{}
	}
}

// --- Wake-phrase (request capture) trigger ----------------------------------

type WakePhraseTrigger struct {
	name     string
	action   Action
	prefixes []string
}

func NewWakePhraseTrigger(name string, action Action, prefixes []string) *WakePhraseTrigger {
	return &WakePhraseTrigger{name: name, action: action, prefixes: prefixes}
}

func (t *WakePhraseTrigger) Name() string { return t.name }
func (t *WakePhraseTrigger) Once() bool   { return false }

var punctOnly = regexp.MustCompile(`^[\p{P}\s]*$`)

func (t *WakePhraseTrigger) Check(ctx Context) *Result {
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(ctx.Transcript, prefix) {
			rest := strings.TrimSpace(ctx.Transcript[len(prefix):])
			if rest == "" || punctOnly.MatchString(rest) {
				return nil
			}
			return &Result{Action: t.action, Payload: rest}
		}
	}
	return nil
}

// --- Manager ------------------------------------------------------------

// Callback receives the firing trigger's context and, if published, its
// payload.
type Callback func(ctx Context, payload interface{})

type Manager struct {
	triggers  []Trigger
	callbacks map[Action][]Callback
	fired     map[string]bool
}

func NewManager() *Manager {
	return &Manager{
		callbacks: make(map[Action][]Callback),
		fired:     make(map[string]bool),
	}
}

func (m *Manager) Add(t Trigger) {
	m.triggers = append(m.triggers, t)
}

func (m *Manager) On(action Action, cb Callback) {
	m.callbacks[action] = append(m.callbacks[action], cb)
}

// Check evaluates every trigger in registration order, invoking callbacks
// for each that fires (skipping one-shot triggers that already fired).
func (m *Manager) Check(ctx Context) {
	for _, t := range m.triggers {
		res := t.Check(ctx)
		if res == nil {
			continue
		}
		key := t.Name() + "|" + string(res.Action)
		if t.Once() {
			if m.fired[key] {
				continue
			}
			m.fired[key] = true
		}
		for _, cb := range m.callbacks[res.Action] {
			cb(ctx, res.Payload)
		}
	}
}

// Reset clears the fired set so one-shot triggers can fire again.
func (m *Manager) Reset() {
	m.fired = make(map[string]bool)
}
