package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ownlingo/phrasebatch/translator"
)

//go:embed templates/*.txt
var templates embed.FS

var (
	translationPlaceholders = []string{BaseLanguage, DstLanguage, PhrasesJSON, Context, PhraseContexts}
	translationRequired     = []string{PhrasesJSON}

	fixPlaceholders = []string{InvalidJSON, Schema, ExpectedCount}
	fixRequired     = []string{InvalidJSON}
)

// DefaultTranslation returns the embedded translation template text
func DefaultTranslation() string {
	return mustRead("templates/translation.txt")
}

// DefaultFix returns the embedded JSON-fix template text
func DefaultFix() string {
	return mustRead("templates/json_fix.txt")
}

func mustRead(name string) string {
	data, err := templates.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded template %s: %v", name, err))
	}
	return strings.TrimSpace(string(data))
}

// ParseTranslation parses a translation template
func ParseTranslation(name, text string) (*Template, error) {
	return Parse(name, text, translationPlaceholders, translationRequired)
}

// ParseFix parses a JSON-fix template
func ParseFix(name, text string) (*Template, error) {
	return Parse(name, text, fixPlaceholders, fixRequired)
}

// LoadTranslation reads a translation template from path. An empty path
// selects the embedded default. When strict is false an unreadable or invalid
// file is logged and the default is used instead.
func LoadTranslation(path string, strict bool, logger *slog.Logger) (*Template, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return ParseTranslation("translation", DefaultTranslation())
	}

	tmpl, err := loadFile(path)
	if err == nil {
		return tmpl, nil
	}
	if strict {
		return nil, err
	}

	logger.Warn("custom prompt rejected, using default", "path", path, "err", err)
	return ParseTranslation("translation", DefaultTranslation())
}

func loadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	return ParseTranslation(path, strings.TrimSpace(string(data)))
}

// Builder renders translation prompts for batches
type Builder struct {
	tmpl *Template
}

// NewBuilder returns a builder for a parsed translation template
func NewBuilder(tmpl *Template) *Builder {
	return &Builder{tmpl: tmpl}
}

// Render renders the prompt for one batch. Language codes are expanded to
// English names, e.g. "fr" becomes "French (fr)".
func (b *Builder) Render(baseLanguage, dstLanguage string, batch translator.Batch) (string, error) {
	phrasesJSON, err := encode(batch.Texts(), true)
	if err != nil {
		return "", fmt.Errorf("encode phrases: %w", err)
	}

	var contextSection string
	if c := strings.TrimSpace(batch.Context); c != "" {
		contextSection = "\nGlobal Translation Context:\n" + c + "\n"
	}

	var phraseContextSection string
	if contexts := batch.PhraseContexts(); len(contexts) > 0 {
		contextsJSON, err := encode(contexts, true)
		if err != nil {
			return "", fmt.Errorf("encode phrase contexts: %w", err)
		}
		phraseContextSection = "\nPhrase-specific contexts (index refers to the position in the phrases array):\n" + contextsJSON + "\n"
	}

	return b.tmpl.Execute(map[string]string{
		BaseLanguage:   LanguageName(baseLanguage),
		DstLanguage:    LanguageName(dstLanguage),
		PhrasesJSON:    phrasesJSON,
		Context:        contextSection,
		PhraseContexts: phraseContextSection,
	}), nil
}

// Render parses template and renders it for batch in one step
func Render(template, baseLanguage, dstLanguage string, batch translator.Batch) (string, error) {
	tmpl, err := ParseTranslation("translation", template)
	if err != nil {
		return "", err
	}
	return NewBuilder(tmpl).Render(baseLanguage, dstLanguage, batch)
}

// FixBuilder renders JSON-fix prompts
type FixBuilder struct {
	tmpl *Template
}

// NewFixBuilder returns a fix builder for tmpl, or for the embedded default when tmpl is nil
func NewFixBuilder(tmpl *Template) *FixBuilder {
	if tmpl == nil {
		var err error
		tmpl, err = ParseFix("json_fix", DefaultFix())
		if err != nil {
			panic(fmt.Sprintf("prompt: default fix template: %v", err))
		}
	}
	return &FixBuilder{tmpl: tmpl}
}

// Render embeds invalid output and the expected schema into a fix-up prompt
func (f *FixBuilder) Render(invalid string, expectedCount int) string {
	schema, err := encode(translator.TranslationsSchema(), true)
	if err != nil {
		schema = `{"translations": ["string", ...]}`
	}
	return f.tmpl.Execute(map[string]string{
		InvalidJSON:   invalid,
		Schema:        schema,
		ExpectedCount: strconv.Itoa(expectedCount),
	})
}

// LanguageName returns the English display name of a language code followed
// by the code, or the code itself when it is not a known BCP 47 tag
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" || strings.EqualFold(name, code) {
		return code
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

func encode(v any, indent bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
