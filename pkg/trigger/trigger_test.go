package trigger

import (
	"testing"
	"time"
)

func TestFarewellFiresOnDefaultPatterns(t *testing.T) {
	ft := NewFarewellTrigger("farewell", ActionHangup, nil, "")
	fires := []string{"Goodbye", "bye", "see you later", "take care", "gotta go"}
	for _, s := range fires {
		if ft.Check(Context{Transcript: s}) == nil {
			t.Errorf("expected fire on %q", s)
		}
	}
	noFires := []string{"hello", "how are you"}
	for _, s := range noFires {
		if ft.Check(Context{Transcript: s}) != nil {
			t.Errorf("expected no fire on %q", s)
		}
	}
}

func TestFarewellRoleFilter(t *testing.T) {
	ft := NewFarewellTrigger("farewell", ActionHangup, nil, "user")
	if ft.Check(Context{Transcript: "goodbye", Role: "assistant"}) != nil {
		t.Error("expected role=assistant to be filtered out")
	}
	if ft.Check(Context{Transcript: "goodbye", Role: "user"}) == nil {
		t.Error("expected role=user to fire")
	}
}

func TestSilenceFiresAfterTimeout(t *testing.T) {
	st := NewSilenceTrigger("silence", ActionHangup, 5*time.Second)
	now := time.Now()
	last := now.Add(-10 * time.Second)
	if st.Check(Context{LastResponseAt: &last, Now: now, IsSpeaking: false}) == nil {
		t.Error("expected silence trigger to fire")
	}
	if st.Check(Context{LastResponseAt: &last, Now: now, IsSpeaking: true}) != nil {
		t.Error("expected no fire while is_speaking is true")
	}
}

func TestSilenceNoFireWithoutReference(t *testing.T) {
	st := NewSilenceTrigger("silence", ActionHangup, 5*time.Second)
	if st.Check(Context{Now: time.Now()}) != nil {
		t.Error("expected no fire with nil LastResponseAt")
	}
}

func TestDelegationParsesJSONArguments(t *testing.T) {
	dt := NewDelegationTrigger("delegate", ActionDelegate, "classify_intent")
	res := dt.Check(Context{
		ToolName:      "classify_intent",
		ToolArguments: `{"intent":"x","request":"y"}`,
		ToolCallID:    "c1",
	})
	if res == nil {
		t.Fatal("expected delegation trigger to fire")
	}
	payload := res.Payload.(map[string]interface{})
	if payload["intent"] != "x" || payload["request"] != "y" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload["call_id"] != "c1" {
		t.Errorf("expected call_id c1, got %v", payload["call_id"])
	}
}

func TestDelegationFallsBackToRawOnParseFailure(t *testing.T) {
	dt := NewDelegationTrigger("delegate", ActionDelegate, "classify_intent")
	res := dt.Check(Context{ToolName: "classify_intent", ToolArguments: "not json"})
	payload := res.Payload.(map[string]interface{})
	if payload["raw"] != "not json" {
		t.Errorf("expected raw fallback, got %+v", payload)
	}
}

func TestWakePhraseCapturesRequest(t *testing.T) {
	wt := NewWakePhraseTrigger("wake", ActionDelegate, []string{"Hey Garbo, "})
	res := wt.Check(Context{Transcript: "Hey Garbo, send a text to mom"})
	if res == nil {
		t.Fatal("expected wake phrase to fire")
	}
	if res.Payload != "send a text to mom" {
		t.Errorf("expected payload 'send a text to mom', got %v", res.Payload)
	}
}

func TestWakePhraseRejectsEmptyPayload(t *testing.T) {
	wt := NewWakePhraseTrigger("wake", ActionDelegate, []string{"Hey Garbo,"})
	if wt.Check(Context{Transcript: "Hey Garbo,"}) != nil {
		t.Error("expected no fire on empty payload")
	}
}

func TestManagerResetRearmsOneShot(t *testing.T) {
	ft := NewFarewellTrigger("farewell", ActionHangup, nil, "")
	m := NewManager()
	m.Add(ft)
	fired := 0
	m.On(ActionHangup, func(ctx Context, payload interface{}) { fired++ })

	m.Check(Context{Transcript: "goodbye"})
	m.Check(Context{Transcript: "goodbye"})
	if fired != 1 {
		t.Fatalf("expected one-shot to fire once, fired=%d", fired)
	}

	m.Reset()
	m.Check(Context{Transcript: "goodbye"})
	if fired != 2 {
		t.Fatalf("expected reset to rearm trigger, fired=%d", fired)
	}
}
