package voiceagent

import "testing"

func TestWithInstructionOverridePreservesNameAndVoice(t *testing.T) {
	p := Profile{Name: "Garbo", Voice: VoiceF2, Instructions: "be helpful"}
	np := p.WithInstructionOverride("wrap up the call politely")

	if np.Name != p.Name {
		t.Errorf("expected name preserved, got %q", np.Name)
	}
	if np.Voice != p.Voice {
		t.Errorf("expected voice preserved, got %q", np.Voice)
	}
	want := "Your name is Garbo. wrap up the call politely"
	if np.Instructions != want {
		t.Errorf("expected instructions %q, got %q", want, np.Instructions)
	}
}
