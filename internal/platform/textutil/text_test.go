package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]struct {
		in    string
		limit int
		want  string
	}{
		"strips markup":        {in: `<b>Wrong</b> size <script>alert(1)</script>`, limit: 100, want: "Wrong size"},
		"collapses whitespace": {in: "  too \n\n small\t", limit: 100, want: "too small"},
		"keeps entities text":  {in: "fits & looks ok", limit: 100, want: "fits & looks ok"},
		"normalises to NFC":    {in: "café", limit: 100, want: "café"},
		"caps length":          {in: strings.Repeat("a", 20), limit: 5, want: "aaaaa"},
		"blank":                {in: " <br> ", limit: 10, want: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := SanitizeText(tc.in, tc.limit); got != tc.want {
				t.Fatalf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestOptionalText(t *testing.T) {
	if OptionalText("   ", 10) != nil {
		t.Fatalf("expected nil for blank text")
	}
	got := OptionalText(" damaged ", 10)
	if got == nil || *got != "damaged" {
		t.Fatalf("unexpected %v", got)
	}
}
