package audio

import "testing"

func TestDownsample3to1(t *testing.T) {
	// 6 samples in -> 2 samples out (keep index 0, 3)
	pcm := make([]byte, 12)
	for i := 0; i < 6; i++ {
		pcm[i*2] = byte(i)
	}
	out := Downsample3to1(pcm)
	if len(out) != 4 {
		t.Fatalf("expected 4 bytes (2 samples), got %d", len(out))
	}
	if out[0] != 0 || out[2] != 3 {
		t.Fatalf("expected samples 0 and 3 kept, got %v", out)
	}
}

func TestPadToFrameBoundary(t *testing.T) {
	pcm := make([]byte, 300)
	out := PadToFrameBoundary(pcm, 320)
	if len(out) != 320 {
		t.Fatalf("expected padded length 320, got %d", len(out))
	}

	exact := make([]byte, 640)
	if out2 := PadToFrameBoundary(exact, 320); len(out2) != 640 {
		t.Fatalf("expected no padding for exact multiple, got %d", len(out2))
	}
}
