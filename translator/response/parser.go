// Package response extracts translation arrays from raw backend output and
// repairs malformed output through a corrective round-trip.
package response

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Reason names the way a reply failed to parse
type Reason string

const (
	InvalidJSON      Reason = "invalid-json"
	UnexpectedShape  Reason = "unexpected-shape"
	CountMismatch    Reason = "count-mismatch"
	WrongElementType Reason = "wrong-element-type"
)

// ParseError is returned when a reply cannot be accepted for a batch
type ParseError struct {
	Reason Reason
	// Raw is the candidate JSON text that failed
	Raw      string
	Expected int
	Got      int
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case CountMismatch:
		return fmt.Sprintf("parse: %s: expected %d translations, got %d", e.Reason, e.Expected, e.Got)
	case WrongElementType:
		return fmt.Sprintf("parse: %s at index %d", e.Reason, e.Got)
	default:
		return fmt.Sprintf("parse: %s: %s", e.Reason, truncate(e.Raw, 120))
	}
}

// Repairable reports whether a JSON fix-up round-trip may help
func (e *ParseError) Repairable() bool {
	return e.Reason == InvalidJSON || e.Reason == UnexpectedShape
}

var (
	// surroundingFence matches a reply that is one fenced block from start to end
	surroundingFence = regexp.MustCompile("(?s)\\A```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)\\s*```\\z")
	codeFence        = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)\\s*```")
)

// Extract returns the JSON candidate of a reply. The trimmed reply is used
// as is when it is valid JSON; otherwise a fence wrapping the whole reply is
// stripped, then the first fenced block anywhere, then the outermost array or
// object span is tried. The first valid candidate wins. When none is valid
// the most specific candidate found is returned.
func Extract(raw string) string {
	text := strings.TrimSpace(raw)
	if gjson.Valid(text) {
		return text
	}

	var candidates []string
	if m := surroundingFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if span, ok := outermostSpan(text); ok {
		candidates = append(candidates, span)
	}

	for _, c := range candidates {
		if gjson.Valid(c) {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return text
}

func outermostSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", false
	}
	closer := "]"
	if text[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Parse extracts exactly expected translations from raw, preserving order.
// Accepted shapes are a bare array and an object with a "translations" array.
func Parse(raw string, expected int) ([]string, error) {
	text := Extract(raw)

	if !gjson.Valid(text) {
		return nil, &ParseError{Reason: InvalidJSON, Raw: text, Expected: expected}
	}

	doc := gjson.Parse(text)
	var items gjson.Result
	switch {
	case doc.IsArray():
		items = doc
	case doc.IsObject() && doc.Get("translations").IsArray():
		items = doc.Get("translations")
	default:
		return nil, &ParseError{Reason: UnexpectedShape, Raw: text, Expected: expected}
	}

	elems := items.Array()
	if len(elems) != expected {
		return nil, &ParseError{Reason: CountMismatch, Raw: text, Expected: expected, Got: len(elems)}
	}

	out := make([]string, len(elems))
	for i, e := range elems {
		s, ok := elementText(e)
		if !ok {
			return nil, &ParseError{Reason: WrongElementType, Raw: text, Expected: expected, Got: i}
		}
		out[i] = s
	}

	return out, nil
}

// elementText accepts strings and {"translation": "..."} / {"text": "..."} objects
func elementText(e gjson.Result) (string, bool) {
	if e.Type == gjson.String {
		return e.String(), true
	}
	if e.IsObject() {
		for _, key := range []string{"translation", "text"} {
			if v := e.Get(key); v.Type == gjson.String {
				return v.String(), true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
