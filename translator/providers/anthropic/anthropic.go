package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/ratelimit"
)

// Provider implements the Backend interface for Anthropic
type Provider struct {
	client         anthropic.Client
	model          string
	maxTokens      int64
	caps           translator.Capabilities
	rateLimiter    *ratelimit.Limiter
	rateLimitPause time.Duration
}

// Config holds Anthropic provider configuration
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint
	BaseURL   string
	MaxTokens int64
	TPM       int // Tokens per minute
	RPM       int // Requests per minute
	// RateLimitPause holds back every caller after a 429 reply
	RateLimitPause time.Duration
}

// DefaultConfig returns default Anthropic configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:         apiKey,
		Model:          "claude-sonnet-4-20250514",
		MaxTokens:      8192,
		TPM:            80000, // Claude Sonnet default TPM
		RPM:            50,    // Claude Sonnet default RPM
		RateLimitPause: 10 * time.Second,
	}
}

// ModelCapabilities returns the output-shaping features of a Claude model.
// Every Claude 3+ model takes forced tool use; schema-constrained output
// starts with the 4.5 generation.
func ModelCapabilities(model string) translator.Capabilities {
	caps := translator.FunctionCalling
	for _, prefix := range []string{"claude-sonnet-4-5", "claude-opus-4-1", "claude-opus-4-5", "claude-haiku-4-5"} {
		if strings.HasPrefix(model, prefix) {
			caps |= translator.StructuredOutput
		}
	}
	return caps
}

// NewProvider creates a new Anthropic provider
func NewProvider(config *Config) *Provider {
	if config == nil {
		panic("config cannot be nil")
	}

	// Retries are left to the caller
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &Provider{
		client:         anthropic.NewClient(opts...),
		model:          config.Model,
		maxTokens:      maxTokens,
		caps:           ModelCapabilities(config.Model),
		rateLimiter:    ratelimit.NewLimiter(config.TPM, config.RPM),
		rateLimitPause: config.RateLimitPause,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "anthropic"
}

// Capabilities returns the capability set of the configured model
func (p *Provider) Capabilities() translator.Capabilities {
	return p.caps
}

// Invoke sends one Messages API request
func (p *Provider) Invoke(ctx context.Context, req *translator.Request) (*translator.Response, error) {
	start := time.Now()

	// Estimate tokens needed: prompt plus a reply of similar size
	estimatedTokens := 2 * translator.EstimateTokens(req.System+req.Prompt)
	if estimatedTokens < 100 {
		estimatedTokens = 100 // Minimum estimate
	}

	if err := p.rateLimiter.Wait(ctx, estimatedTokens); err != nil {
		return nil, err
	}

	message, err := p.client.Messages.New(ctx, p.messageParams(req))
	if err != nil {
		backendErr := classify(err)
		if backendErr.Kind == translator.RateLimited && p.rateLimitPause > 0 {
			p.rateLimiter.Pause(p.rateLimitPause)
		}
		return nil, fmt.Errorf("anthropic: %w", backendErr)
	}

	if len(message.Content) == 0 {
		return nil, &translator.BackendError{Kind: translator.Transport, Err: errors.New("no content returned from Anthropic")}
	}

	var raw string
	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "tool_use":
			if req.Function != nil && block.Name == req.Function.Name {
				raw = string(block.Input)
			}
		case "text":
			text.WriteString(block.Text)
		}
	}
	if raw == "" {
		raw = text.String()
	}

	inputTokens := int(message.Usage.InputTokens)
	outputTokens := int(message.Usage.OutputTokens)

	return &translator.Response{
		Raw: raw,
		TokensUsed: translator.TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
		Cost: translator.Cost{
			Amount:   calculateCost(p.model, inputTokens, outputTokens),
			Currency: "USD",
		},
		Provider: p.Name(),
		Duration: time.Since(start),
	}, nil
}

func (p *Provider) messageParams(req *translator.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	switch req.Shape {
	case translator.ShapeSchema:
		params.OutputConfig = anthropic.OutputConfigParam{
			Format: anthropic.JSONOutputFormatParam{Schema: req.Schema},
		}
	case translator.ShapeFunction:
		tool := anthropic.ToolParam{
			Name:        req.Function.Name,
			Description: anthropic.String(req.Function.Description),
			InputSchema: inputSchema(req.Function.Parameters),
		}
		params.Tools = []anthropic.ToolUnionParam{{OfTool: &tool}}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(req.Function.Name)
	}

	return params
}

// inputSchema converts an object JSON schema into the SDK's tool input schema
func inputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	param := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
	if required, ok := schema["required"].([]string); ok {
		param.Required = required
	}
	extra := map[string]any{}
	for k, v := range schema {
		switch k {
		case "type", "properties", "required":
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		param.ExtraFields = extra
	}
	return param
}

// classify maps SDK errors onto backend error kinds using the HTTP status
func classify(err error) *translator.BackendError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		// 529 overloaded
		if status == 529 {
			return &translator.BackendError{Kind: translator.RateLimited, StatusCode: status, Err: err}
		}
		return translator.NewBackendError(err, status)
	}
	return translator.NewBackendError(err, 0)
}

// calculateCost calculates the cost based on token usage
// Prices are approximate and should be updated based on current Anthropic pricing
func calculateCost(model string, inputTokens, outputTokens int) float64 {
	var inputPrice, outputPrice float64

	switch {
	case strings.Contains(model, "claude-sonnet-4"):
		inputPrice = 0.003 / 1000  // $0.003 per 1K input tokens
		outputPrice = 0.015 / 1000 // $0.015 per 1K output tokens
	case strings.Contains(model, "claude-opus"):
		inputPrice = 0.015 / 1000  // $0.015 per 1K input tokens
		outputPrice = 0.075 / 1000 // $0.075 per 1K output tokens
	case strings.Contains(model, "haiku"):
		inputPrice = 0.001 / 1000
		outputPrice = 0.005 / 1000
	default:
		inputPrice = 0.003 / 1000
		outputPrice = 0.015 / 1000
	}

	return float64(inputTokens)*inputPrice + float64(outputTokens)*outputPrice
}
