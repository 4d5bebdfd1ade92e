package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/ratelimit"
)

// Provider implements the Backend interface for Google Gemini
type Provider struct {
	client         *genai.Client
	modelName      string
	rateLimiter    *ratelimit.Limiter
	rateLimitPause time.Duration
}

// Config holds Gemini provider configuration
type Config struct {
	APIKey string
	Model  string
	TPM    int // Tokens per minute
	RPM    int // Requests per minute
	// RateLimitPause holds back every caller after a 429 reply
	RateLimitPause time.Duration
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:         apiKey,
		Model:          "gemini-1.5-pro",
		TPM:            32000, // Gemini default TPM
		RPM:            60,    // Gemini default RPM
		RateLimitPause: 10 * time.Second,
	}
}

// NewProvider creates a new Gemini provider
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		client:         client,
		modelName:      config.Model,
		rateLimiter:    ratelimit.NewLimiter(config.TPM, config.RPM),
		rateLimitPause: config.RateLimitPause,
	}, nil
}

// Close closes the Gemini client
func (p *Provider) Close() error {
	return p.client.Close()
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "gemini"
}

// Capabilities reports schema-constrained output and forced function calls
func (p *Provider) Capabilities() translator.Capabilities {
	return translator.FunctionCalling | translator.StructuredOutput
}

// Invoke sends one generateContent request. Each call configures its own
// model handle so a provider can serve several languages at once.
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

	model := p.model(req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		backendErr := ClassifyError(err)
		if backendErr.Kind == translator.RateLimited && p.rateLimitPause > 0 {
			p.rateLimiter.Pause(p.rateLimitPause)
		}
		return nil, fmt.Errorf("gemini: %w", backendErr)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &translator.BackendError{Kind: translator.Transport, Err: errors.New("no content returned from Gemini")}
	}

	raw, err := replyText(resp.Candidates[0].Content.Parts, req)
	if err != nil {
		return nil, err
	}

	// Extract token usage
	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &translator.Response{
		Raw: raw,
		TokensUsed: translator.TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
		Cost: translator.Cost{
			Amount:   calculateCost(p.modelName, inputTokens, outputTokens),
			Currency: "USD",
		},
		Provider: p.Name(),
		Duration: time.Since(start),
	}, nil
}

func (p *Provider) model(req *translator.Request) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.modelName)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	switch req.Shape {
	case translator.ShapeSchema:
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = ConvertSchema(req.Schema)
	case translator.ShapeFunction:
		model.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        req.Function.Name,
				Description: req.Function.Description,
				Parameters:  ConvertSchema(req.Function.Parameters),
			}},
		}}
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingAny,
				AllowedFunctionNames: []string{req.Function.Name},
			},
		}
	}

	return model
}

// replyText returns the function-call arguments when the requested function
// was called, else the concatenated text parts
func replyText(parts []genai.Part, req *translator.Request) (string, error) {
	var text strings.Builder
	for _, part := range parts {
		switch v := part.(type) {
		case genai.FunctionCall:
			if req.Function != nil && v.Name == req.Function.Name {
				args, err := json.Marshal(v.Args)
				if err != nil {
					return "", fmt.Errorf("encode function arguments: %w", err)
				}
				return string(args), nil
			}
		case genai.Text:
			text.WriteString(string(v))
		}
	}
	return text.String(), nil
}

// ConvertSchema converts a JSON schema into the Gemini schema subset.
// Keywords Gemini does not understand, like additionalProperties, are dropped.
func ConvertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	switch schema["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	}

	if d, ok := schema["description"].(string); ok {
		s.Description = d
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = ConvertSchema(items)
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				s.Properties[name] = ConvertSchema(m)
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		s.Required = required
	}

	return s
}

// ClassifyError maps Google API errors onto backend error kinds
func ClassifyError(err error) *translator.BackendError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return translator.NewBackendError(err, apiErr.Code)
	}
	return translator.NewBackendError(err, 0)
}

// calculateCost calculates the cost based on token usage
// Prices are approximate and should be updated based on current Google pricing
func calculateCost(model string, inputTokens, outputTokens int) float64 {
	var inputPrice, outputPrice float64

	switch {
	case strings.Contains(model, "gemini-1.5-pro"):
		inputPrice = 0.00125 / 1000 // $0.00125 per 1K input tokens
		outputPrice = 0.005 / 1000  // $0.005 per 1K output tokens
	case strings.Contains(model, "gemini-1.5-flash"):
		inputPrice = 0.000075 / 1000 // $0.000075 per 1K input tokens
		outputPrice = 0.0003 / 1000  // $0.0003 per 1K output tokens
	case strings.Contains(model, "gemini-2.0-flash"):
		inputPrice = 0.0001 / 1000
		outputPrice = 0.0004 / 1000
	default:
		inputPrice = 0.00125 / 1000
		outputPrice = 0.005 / 1000
	}

	return float64(inputTokens)*inputPrice + float64(outputTokens)*outputPrice
}
