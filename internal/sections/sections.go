// Package sections implements the delimited multi-section wire format used
// for chairman output. Sections are demarcated as
//
//	===SECTION:name===
//	...content...
//	===END:name===
//
// where name matches [A-Za-z0-9_]+. Text outside sections is ignored, and
// an opener with no matching closer is reported as an incomplete section so
// callers can detect truncated model output.
package sections

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedSection is one named section extracted from a response.
type ParsedSection struct {
	// Name is the section identifier from the delimiter.
	Name string `json:"name"`
	// Content is the section body, trimmed of surrounding whitespace.
	Content string `json:"content"`
	// Complete is false when the opening delimiter had no matching
	// closing delimiter before end-of-text (truncation signal).
	Complete bool `json:"complete"`
}

var startRe = regexp.MustCompile(`===SECTION:([A-Za-z0-9_]+)===`)

// Parse extracts every section from text in order of appearance. Complete
// pairs are non-overlapping; for an unterminated opener the content is
// everything after the opener to end-of-text with Complete=false.
func Parse(text string) []ParsedSection {
	var out []ParsedSection

	pos := 0
	for {
		loc := startRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		name := text[pos+loc[2] : pos+loc[3]]
		bodyStart := pos + loc[1]

		end := "===END:" + name + "==="
		endIdx := strings.Index(text[bodyStart:], end)
		if endIdx < 0 {
			out = append(out, ParsedSection{
				Name:     name,
				Content:  strings.TrimSpace(text[bodyStart:]),
				Complete: false,
			})
			// Keep scanning after the opener so later sections inside the
			// truncated suffix are still reported.
			pos = bodyStart
			continue
		}

		out = append(out, ParsedSection{
			Name:     name,
			Content:  strings.TrimSpace(text[bodyStart : bodyStart+endIdx]),
			Complete: true,
		})
		pos = bodyStart + endIdx + len(end)
	}

	return out
}

// Encode wraps content in the section delimiters for name.
func Encode(name, content string) string {
	return fmt.Sprintf("===SECTION:%s===\n%s\n===END:%s===", name, content, name)
}

// EncodeAll encodes sections in order, separated by blank lines. Incomplete
// sections are skipped.
func EncodeAll(secs []ParsedSection) string {
	var parts []string
	for _, s := range secs {
		if !s.Complete {
			continue
		}
		parts = append(parts, Encode(s.Name, s.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Complete filters secs down to the complete ones, preserving order.
func Complete(secs []ParsedSection) []ParsedSection {
	var out []ParsedSection
	for _, s := range secs {
		if s.Complete {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the first section with the given name, or nil.
func Find(secs []ParsedSection, name string) *ParsedSection {
	for i := range secs {
		if secs[i].Name == name {
			return &secs[i]
		}
	}
	return nil
}
