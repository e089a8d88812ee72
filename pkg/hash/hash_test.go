package hash

import "testing"

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty string is the offset basis",
			input: "",
			want:  "811c9dc5",
		},
		{
			name:  "single ascii character",
			input: "a",
			want:  "e40c292c",
		},
		{
			name:  "whitespace only collapses to empty",
			input: "  \n\t  ",
			want:  "811c9dc5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.input)
			if got != tt.want {
				t.Errorf("Fingerprint(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFingerprintNormalization(t *testing.T) {
	a := Fingerprint("hello   world")
	b := Fingerprint(" hello\nworld ")
	if a != b {
		t.Errorf("whitespace variants should hash identically: %s vs %s", a, b)
	}

	c := Fingerprint("hello worlds")
	if a == c {
		t.Error("different content should produce different fingerprints")
	}
}

func TestFingerprintShape(t *testing.T) {
	inputs := []string{"", "a", "příliš žluťoučký kůň", "日本語のテキスト", "emoji 🙂 content"}

	for _, input := range inputs {
		fp := Fingerprint(input)
		if len(fp) != 8 {
			t.Errorf("Fingerprint(%q) = %q, want 8 hex digits", input, fp)
		}
		for _, r := range fp {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
				t.Errorf("Fingerprint(%q) = %q contains non-hex rune %q", input, fp, r)
			}
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	input := "Nový příspěvek s obrázky 🙂"
	first := Fingerprint(input)
	for i := 0; i < 10; i++ {
		if got := Fingerprint(input); got != first {
			t.Fatalf("fingerprint not deterministic: %s vs %s", got, first)
		}
	}
}
