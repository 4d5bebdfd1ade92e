// Package prompt renders translation and JSON-fix prompts from templates
// with {name} placeholders. Literal braces are written as {{ and }}.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholders recognized in translation templates
const (
	BaseLanguage   = "base_language"
	DstLanguage    = "dst_language"
	PhrasesJSON    = "phrases_json"
	Context        = "context"
	PhraseContexts = "phrase_contexts"
)

// Placeholders recognized in JSON-fix templates
const (
	InvalidJSON   = "invalid_json"
	Schema        = "schema"
	ExpectedCount = "expected_count"
)

// TemplateError reports a template that can never render a usable prompt
type TemplateError struct {
	Template    string
	Placeholder string
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template %s: %s {%s}", e.Template, e.Reason, e.Placeholder)
	}
	return fmt.Sprintf("template %s: %s", e.Template, e.Reason)
}

type segment struct {
	text        string
	placeholder string
}

// Template is a parsed prompt template
type Template struct {
	name     string
	segments []segment
}

// Parse parses text and checks that it only references recognized
// placeholders and references every required one
func Parse(name, text string, recognized, required []string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &TemplateError{Template: name, Reason: "empty template"}
	}

	known := make(map[string]bool, len(recognized))
	for _, r := range recognized {
		known[r] = true
	}

	t := &Template{name: name}
	seen := make(map[string]bool)
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := identEnd(text, i+1)
			if end < len(text) && end > i+1 && text[end] == '}' {
				name := text[i+1 : end]
				if !known[name] {
					return nil, &TemplateError{Template: t.name, Placeholder: name, Reason: "unrecognized placeholder"}
				}
				flush()
				t.segments = append(t.segments, segment{placeholder: name})
				seen[name] = true
				i = end
				continue
			}
			lit.WriteByte(c)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	for _, r := range required {
		if !seen[r] {
			return nil, &TemplateError{Template: t.name, Placeholder: r, Reason: "missing required placeholder"}
		}
	}

	return t, nil
}

func identEnd(s string, from int) int {
	i := from
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return i
}

// Name returns the template name used in errors
func (t *Template) Name() string {
	return t.name
}

// Placeholders returns the distinct placeholders referenced by the template, sorted
func (t *Template) Placeholders() []string {
	set := make(map[string]bool)
	for _, s := range t.segments {
		if s.placeholder != "" {
			set[s.placeholder] = true
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Execute substitutes values into the template. Values are inserted verbatim.
func (t *Template) Execute(values map[string]string) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.placeholder != "" {
			b.WriteString(values[s.placeholder])
			continue
		}
		b.WriteString(s.text)
	}
	return b.String()
}
