// Package grok provides the xAI Grok backend over its OpenAI-compatible API.
package grok

import (
	"strings"
	"time"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/providers/openai"
)

// BaseURL is the xAI API endpoint
const BaseURL = "https://api.x.ai/v1"

// Config holds Grok provider configuration
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	TPM     int
	RPM     int
}

// DefaultConfig returns default Grok configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:  apiKey,
		Model:   "grok-3",
		BaseURL: BaseURL,
		TPM:     100000,
		RPM:     60,
	}
}

// ModelCapabilities returns the output-shaping features of a Grok model
func ModelCapabilities(model string) translator.Capabilities {
	switch {
	case strings.HasPrefix(model, "grok-3"), strings.HasPrefix(model, "grok-4"), model == "grok-beta":
		return translator.FunctionCalling | translator.StructuredOutput
	case strings.HasPrefix(model, "grok-2"):
		return translator.StructuredOutput
	default:
		return 0
	}
}

// NewProvider creates a Grok backend
func NewProvider(config *Config) *openai.Provider {
	if config == nil {
		panic("config cannot be nil")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	return openai.NewProvider(&openai.Config{
		APIKey:         config.APIKey,
		Model:          config.Model,
		BaseURL:        baseURL,
		Name:           "grok",
		Capabilities:   ModelCapabilities(config.Model),
		Price:          price(config.Model),
		TPM:            config.TPM,
		RPM:            config.RPM,
		RateLimitPause: 10 * time.Second,
	})
}

// price returns approximate per-1K-token USD prices
func price(model string) *openai.Price {
	switch {
	case strings.HasPrefix(model, "grok-3-mini"):
		return &openai.Price{Input: 0.0003, Output: 0.0005}
	case strings.HasPrefix(model, "grok-2"):
		return &openai.Price{Input: 0.002, Output: 0.01}
	default:
		return &openai.Price{Input: 0.003, Output: 0.015}
	}
}
