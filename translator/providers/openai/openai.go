package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/ratelimit"
)

// Price is a per-1K-token price in USD
type Price struct {
	Input  float64
	Output float64
}

// Provider implements the Backend interface for OpenAI-compatible chat completion APIs
type Provider struct {
	client         *openai.Client
	name           string
	model          string
	caps           translator.Capabilities
	price          *Price
	rateLimiter    *ratelimit.Limiter
	rateLimitPause time.Duration
}

// Config holds OpenAI provider configuration
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint for OpenAI-compatible services
	BaseURL string
	// Name defaults to "openai"
	Name         string
	Capabilities translator.Capabilities
	// Price overrides the built-in OpenAI price table
	Price *Price
	TPM   int // Tokens per minute
	RPM   int // Requests per minute
	// RateLimitPause holds back every caller after a 429 reply
	RateLimitPause time.Duration
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:         apiKey,
		Model:          "gpt-4o",
		Capabilities:   ModelCapabilities("gpt-4o"),
		TPM:            90000, // GPT-4o default TPM
		RPM:            500,   // GPT-4o default RPM
		RateLimitPause: 10 * time.Second,
	}
}

// ModelCapabilities returns the output-shaping features of an OpenAI model.
// json_schema output needs gpt-4o or newer; tool calls work from gpt-3.5-turbo on.
func ModelCapabilities(model string) translator.Capabilities {
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return translator.FunctionCalling | translator.StructuredOutput
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5-turbo"):
		return translator.FunctionCalling
	default:
		return 0
	}
}

// NewProvider creates a new OpenAI provider
func NewProvider(config *Config) *Provider {
	if config == nil {
		panic("config cannot be nil")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	name := config.Name
	if name == "" {
		name = "openai"
	}

	return &Provider{
		client:         openai.NewClientWithConfig(clientConfig),
		name:           name,
		model:          config.Model,
		caps:           config.Capabilities,
		price:          config.Price,
		rateLimiter:    ratelimit.NewLimiter(config.TPM, config.RPM),
		rateLimitPause: config.RateLimitPause,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Capabilities returns the configured capability set of the model
func (p *Provider) Capabilities() translator.Capabilities {
	return p.caps
}

// Invoke sends one chat completion request
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

	chatReq, err := p.chatRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		backendErr := classify(err)
		if backendErr.Kind == translator.RateLimited && p.rateLimitPause > 0 {
			p.rateLimiter.Pause(p.rateLimitPause)
		}
		return nil, fmt.Errorf("%s: %w", p.name, backendErr)
	}

	if len(resp.Choices) == 0 {
		return nil, &translator.BackendError{Kind: translator.Transport, Err: fmt.Errorf("no choices returned from %s", p.name)}
	}

	message := resp.Choices[0].Message
	raw := message.Content
	if req.Shape == translator.ShapeFunction {
		for _, call := range message.ToolCalls {
			if call.Function.Name == req.Function.Name {
				raw = call.Function.Arguments
				break
			}
		}
	}

	return &translator.Response{
		Raw: raw,
		TokensUsed: translator.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Cost: translator.Cost{
			Amount:   p.cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
			Currency: "USD",
		},
		Provider: p.name,
		Duration: time.Since(start),
	}, nil
}

func (p *Provider) chatRequest(req *translator.Request) (openai.ChatCompletionRequest, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	}

	switch req.Shape {
	case translator.ShapeSchema:
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return chatReq, &translator.BackendError{Kind: translator.Rejected, Err: fmt.Errorf("encode schema: %w", err)}
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "translations",
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		}
	case translator.ShapeFunction:
		chatReq.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        req.Function.Name,
				Description: req.Function.Description,
				Parameters:  req.Function.Parameters,
			},
		}}
		chatReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.Function.Name},
		}
	}

	return chatReq, nil
}

// classify maps client errors onto backend error kinds using the HTTP status
func classify(err error) *translator.BackendError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return translator.NewBackendError(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return translator.NewBackendError(err, reqErr.HTTPStatusCode)
	}
	return translator.NewBackendError(err, 0)
}

func (p *Provider) cost(inputTokens, outputTokens int) float64 {
	if p.price != nil {
		return float64(inputTokens)*p.price.Input/1000 + float64(outputTokens)*p.price.Output/1000
	}
	return calculateCost(p.model, inputTokens, outputTokens)
}

// calculateCost calculates the cost based on token usage
// Prices are approximate and should be updated based on current OpenAI pricing
func calculateCost(model string, inputTokens, outputTokens int) float64 {
	var inputPrice, outputPrice float64

	switch {
	case strings.HasPrefix(model, "gpt-4o-mini"):
		inputPrice = 0.00015 / 1000 // $0.00015 per 1K input tokens
		outputPrice = 0.0006 / 1000 // $0.0006 per 1K output tokens
	case strings.HasPrefix(model, "gpt-4o"):
		inputPrice = 0.005 / 1000  // $0.005 per 1K input tokens
		outputPrice = 0.015 / 1000 // $0.015 per 1K output tokens
	case strings.HasPrefix(model, "gpt-4.1"):
		inputPrice = 0.002 / 1000
		outputPrice = 0.008 / 1000
	case model == "gpt-4":
		inputPrice = 0.03 / 1000  // $0.03 per 1K input tokens
		outputPrice = 0.06 / 1000 // $0.06 per 1K output tokens
	default:
		inputPrice = 0.005 / 1000
		outputPrice = 0.015 / 1000
	}

	return float64(inputTokens)*inputPrice + float64(outputTokens)*outputPrice
}
