package local

import "testing"

func TestIsSubstantialRequiresCharsAndWords(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"wait, tell me about the other option", true}, // 36 chars, 7 words: the barge-in phrase of spec scenario 3
		{"uh", false},
		{"yes yes", false}, // 7 chars, below the 10-char floor
		{"ok thanks", false},
		{"please hold on a second", true},
	}
	for _, c := range cases {
		if got := isSubstantial(c.text, 10, 2); got != c.want {
			t.Errorf("isSubstantial(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestIndexOfFindsSentinelAnywhere(t *testing.T) {
	haystack := append(append([]byte{1, 2, 3}, sentinel...), 9, 9)
	idx := indexOf(haystack, sentinel)
	if idx != 3 {
		t.Fatalf("expected sentinel at index 3, got %d", idx)
	}
}

func TestIndexOfNoMatch(t *testing.T) {
	if indexOf([]byte{1, 2, 3}, sentinel) != -1 {
		t.Fatal("expected no match")
	}
}

func TestSentenceBoundaryRequiresMinLength(t *testing.T) {
	short := "Hi. "
	if loc := sentenceBoundary.FindStringIndex(short); loc != nil && loc[1] >= 20 {
		t.Fatal("short sentence should not pass the 20-char gate")
	}
	long := "Here is a longer sentence. "
	loc := sentenceBoundary.FindStringIndex(long)
	if loc == nil || loc[1] < 20 {
		t.Fatalf("expected a boundary at or after char 20, got %v", loc)
	}
}
