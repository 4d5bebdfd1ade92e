// Package providers maps model names to backends.
package providers

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/fallback"
	"github.com/ownlingo/phrasebatch/translator/providers/anthropic"
	"github.com/ownlingo/phrasebatch/translator/providers/gemini"
	"github.com/ownlingo/phrasebatch/translator/providers/grok"
	"github.com/ownlingo/phrasebatch/translator/providers/openai"
)

// Provider names
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Grok      = "grok"
)

// Keys holds API keys per provider
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
	Grok      string
}

// KeysFromEnv reads OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY and GROK_API_KEY.
// GOOGLE_API_KEY and XAI_API_KEY are accepted as fallbacks.
func KeysFromEnv() Keys {
	return Keys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		Gemini:    firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		Grok:      firstEnv("GROK_API_KEY", "XAI_API_KEY"),
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (k Keys) key(provider string) string {
	switch provider {
	case OpenAI:
		return k.OpenAI
	case Anthropic:
		return k.Anthropic
	case Gemini:
		return k.Gemini
	case Grok:
		return k.Grok
	}
	return ""
}

var models = map[string]string{
	"gpt-4o":                   OpenAI,
	"gpt-4o-mini":              OpenAI,
	"gpt-4.1":                  OpenAI,
	"gpt-4.1-mini":             OpenAI,
	"gpt-4":                    OpenAI,
	"gpt-3.5-turbo":            OpenAI,
	"claude-sonnet-4-20250514": Anthropic,
	"claude-sonnet-4-5":        Anthropic,
	"claude-opus-4-1":          Anthropic,
	"claude-haiku-4-5":         Anthropic,
	"claude-3-5-haiku-latest":  Anthropic,
	"gemini-1.5-pro":           Gemini,
	"gemini-1.5-flash":         Gemini,
	"gemini-2.0-flash":         Gemini,
	"grok-3":                   Grok,
	"grok-3-mini":              Grok,
	"grok-2-1212":              Grok,
	"grok-beta":                Grok,
}

// AvailableModels returns the known model names, sorted
func AvailableModels() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderFor returns the provider serving model. Models missing from the
// known list are matched by family prefix.
func ProviderFor(model string) (string, error) {
	if p, ok := models[model]; ok {
		return p, nil
	}
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return OpenAI, nil
	case strings.HasPrefix(model, "claude-"):
		return Anthropic, nil
	case strings.HasPrefix(model, "gemini-"):
		return Gemini, nil
	case strings.HasPrefix(model, "grok-"):
		return Grok, nil
	}
	return "", &translator.ConfigError{Err: fmt.Errorf("unknown model %q (see the models command)", model)}
}

// Backend is a translator.Backend holding resources released by Close
type Backend interface {
	translator.Backend
	Close() error
}

type closer struct {
	translator.Backend
	close func() error
}

func (c closer) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// New creates the backend serving model. A missing API key is a ConfigError.
func New(ctx context.Context, model string, keys Keys) (Backend, error) {
	provider, err := ProviderFor(model)
	if err != nil {
		return nil, err
	}

	key := keys.key(provider)
	if key == "" {
		return nil, &translator.ConfigError{Err: fmt.Errorf("no API key for %s (model %s)", provider, model)}
	}

	switch provider {
	case OpenAI:
		config := openai.DefaultConfig(key)
		config.Model = model
		config.Capabilities = openai.ModelCapabilities(model)
		return closer{Backend: openai.NewProvider(config)}, nil
	case Anthropic:
		config := anthropic.DefaultConfig(key)
		config.Model = model
		return closer{Backend: anthropic.NewProvider(config)}, nil
	case Gemini:
		config := gemini.DefaultConfig(key)
		config.Model = model
		p, err := gemini.NewProvider(ctx, config)
		if err != nil {
			return nil, err
		}
		return closer{Backend: p, close: p.Close}, nil
	default:
		config := grok.DefaultConfig(key)
		config.Model = model
		return closer{Backend: grok.NewProvider(config)}, nil
	}
}

// NewChain creates a backend for the first model falling back to the others in order
func NewChain(ctx context.Context, models []string, keys Keys) (Backend, error) {
	if len(models) == 0 {
		return nil, &translator.ConfigError{Err: fmt.Errorf("no model configured")}
	}

	var backends []translator.Backend
	var closers []func() error
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, model := range models {
		b, err := New(ctx, model, keys)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		backends = append(backends, b)
		closers = append(closers, b.Close)
	}

	if len(backends) == 1 {
		return backends[0].(Backend), nil
	}
	return closer{Backend: fallback.NewChain(backends...), close: closeAll}, nil
}
