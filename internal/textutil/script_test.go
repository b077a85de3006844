package textutil

import "testing"

func TestParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph\nwith a wrapped line.\n\n\n\nThird."
	got := Paragraphs(text)
	if len(got) != 3 {
		t.Fatalf("Paragraphs returned %d blocks, want 3: %q", len(got), got)
	}
	if got[2] != "Third." {
		t.Fatalf("last paragraph = %q", got[2])
	}
}

func TestParagraphsCRLF(t *testing.T) {
	got := Paragraphs("one\r\n\r\ntwo")
	if len(got) != 2 {
		t.Fatalf("Paragraphs returned %d blocks, want 2", len(got))
	}
}

func TestYearStamps(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Born in 1956, he wins in 1994 and again in 1995.", 3},
		{"In 2024 he returns.", 1},
		{"No years here, just 42 and 123456.", 0},
		{"1899 is out of range, 1900 is in.", 1},
	}
	for _, tc := range cases {
		if got := YearStamps(tc.text); got != tc.want {
			t.Fatalf("YearStamps(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestAgeMentions(t *testing.T) {
	text := "At 32 he walks away. Now 47, he looks back. Age 19 felt distant."
	if got := AgeMentions(text); got != 3 {
		t.Fatalf("AgeMentions = %d, want 3", got)
	}
}

func TestCountOccurrences(t *testing.T) {
	text := "Fact one (unverified). Fact two (unverified)."
	if got := CountOccurrences(text, "(unverified)"); got != 2 {
		t.Fatalf("CountOccurrences = %d, want 2", got)
	}
	if got := CountOccurrences(text, ""); got != 0 {
		t.Fatalf("CountOccurrences empty token = %d, want 0", got)
	}
}
