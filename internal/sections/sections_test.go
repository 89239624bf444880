package sections

import (
	"strings"
	"testing"
)

func TestParseCompleteSections(t *testing.T) {
	text := "preamble chatter\n" +
		"===SECTION:summary===\nAll agents agree.\n===END:summary===\n" +
		"interstitial noise\n" +
		"===SECTION:details===\nline one\nline two\n===END:details===\n" +
		"trailing text"

	secs := Parse(text)
	if len(secs) != 2 {
		t.Fatalf("Parse returned %d sections, want 2", len(secs))
	}

	if secs[0].Name != "summary" || !secs[0].Complete {
		t.Errorf("section 0 = %+v, want complete summary", secs[0])
	}
	if secs[0].Content != "All agents agree." {
		t.Errorf("section 0 content = %q", secs[0].Content)
	}
	if secs[1].Name != "details" || secs[1].Content != "line one\nline two" {
		t.Errorf("section 1 = %+v", secs[1])
	}
}

func TestParseTruncatedSection(t *testing.T) {
	text := "===SECTION:alpha===\ncomplete body\n===END:alpha===\n" +
		"===SECTION:beta===\ncut off mid-"

	secs := Parse(text)
	if len(secs) != 2 {
		t.Fatalf("Parse returned %d sections, want 2", len(secs))
	}
	if !secs[0].Complete {
		t.Error("alpha should be complete")
	}
	if secs[1].Complete {
		t.Error("beta should be incomplete")
	}
	// Truncated content is the suffix after the opener.
	if secs[1].Content != "cut off mid-" {
		t.Errorf("beta content = %q", secs[1].Content)
	}
}

func TestParseMultipleTruncated(t *testing.T) {
	text := "===SECTION:a===\nfirst opener never closed\n" +
		"===SECTION:b===\nsecond opener never closed"

	secs := Parse(text)
	if len(secs) != 2 {
		t.Fatalf("Parse returned %d sections, want 2", len(secs))
	}
	for _, s := range secs {
		if s.Complete {
			t.Errorf("section %s should be incomplete", s.Name)
		}
	}
	if !strings.Contains(secs[0].Content, "===SECTION:b===") {
		t.Errorf("first truncated section should span to end-of-text, got %q", secs[0].Content)
	}
}

func TestParseEmptyAndNoSections(t *testing.T) {
	if secs := Parse(""); len(secs) != 0 {
		t.Errorf("Parse(\"\") = %v, want empty", secs)
	}
	if secs := Parse("plain text with no delimiters at all"); len(secs) != 0 {
		t.Errorf("Parse(plain) = %v, want empty", secs)
	}
}

func TestParseIgnoresInvalidNames(t *testing.T) {
	// A hyphen is outside the allowed name alphabet, so this opener must
	// not start a section.
	text := "===SECTION:bad-name===\nstuff\n===END:bad-name==="
	if secs := Parse(text); len(secs) != 0 {
		t.Errorf("Parse = %v, want empty", secs)
	}
}

func TestRoundTrip(t *testing.T) {
	a := "Executive summary.\nTwo lines."
	b := "- phase 1\n- phase 2"
	text := Encode("exec", a) + "\n\n" + Encode("phases", b)

	secs := Parse(text)
	if len(secs) != 2 {
		t.Fatalf("Parse returned %d sections, want 2", len(secs))
	}
	if !secs[0].Complete || !secs[1].Complete {
		t.Fatal("round-trip sections must be complete")
	}
	if secs[0].Content != a {
		t.Errorf("content 0 = %q, want %q", secs[0].Content, a)
	}
	if secs[1].Content != b {
		t.Errorf("content 1 = %q, want %q", secs[1].Content, b)
	}
}

func TestCompleteAndFind(t *testing.T) {
	text := "===SECTION:x===\nok\n===END:x===\n===SECTION:y===\ndangling"
	secs := Parse(text)

	if got := Complete(secs); len(got) != 1 || got[0].Name != "x" {
		t.Errorf("Complete = %v, want only x", got)
	}
	if f := Find(secs, "y"); f == nil || f.Complete {
		t.Errorf("Find(y) = %v, want incomplete section", f)
	}
	if f := Find(secs, "missing"); f != nil {
		t.Errorf("Find(missing) = %v, want nil", f)
	}
}
