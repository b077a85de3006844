package textutil

import "testing"

func TestEntityKey(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Tom Hanks", "tom_hanks"},
		{"upper", "TOM HANKS", "tom_hanks"},
		{"extra whitespace", "  tom   hanks ", "tom_hanks"},
		{"tabs", "tom\thanks", "tom_hanks"},
		{"hyphenated", "Mary-Kate Olsen", "mary_kate_olsen"},
		{"apostrophe", "Lupita Nyong'o", "lupita_nyongo"},
		{"period", "Samuel L. Jackson", "samuel_l_jackson"},
		{"punctuation runs", "tom -- hanks!!", "tom_hanks"},
		{"unicode fold", "Penélope Cruz", "penélope_cruz"},
		{"empty", "", ""},
		{"only punctuation", "-- !! --", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EntityKey(tc.input); got != tc.want {
				t.Fatalf("EntityKey(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestEntityKeyCaseInsensitiveIdentity(t *testing.T) {
	variants := []string{"Tom Hanks", "tom hanks", "TOM  HANKS", " tom\thanks "}
	want := EntityKey(variants[0])
	for _, v := range variants {
		if got := EntityKey(v); got != want {
			t.Fatalf("EntityKey(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  Tom   Hanks\t"); got != "Tom Hanks" {
		t.Fatalf("CollapseWhitespace = %q", got)
	}
	if got := CollapseWhitespace(""); got != "" {
		t.Fatalf("CollapseWhitespace empty = %q", got)
	}
}
