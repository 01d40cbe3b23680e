package export

import "testing"

func TestPercentEncodeForDataURL(t *testing.T) {
	cases := map[string]string{
		"plain-text_1.0~": "plain-text_1.0~",
		"a b":             "a%20b",
		"a—b":        "a%E2%80%94b",
		"<p>":             "%3Cp%3E",
	}
	for in, want := range cases {
		if got := percentEncodeForDataURL(in); got != want {
			t.Fatalf("percentEncodeForDataURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Raft Building-guide": "Raft-Building-guide",
		"!!!":                 "guide",
		"already_safe":        "already_safe",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
