package translator

import (
	"context"
	"strings"
	"time"
)

// Backend defines the interface for LLM providers driven by the pipeline
type Backend interface {
	// Invoke sends one request and returns the raw provider output
	Invoke(ctx context.Context, req *Request) (*Response, error)

	// Capabilities reports which output-shaping features the backend supports
	Capabilities() Capabilities

	// Name returns the provider name
	Name() string
}

// Capabilities is the set of optional output-shaping features of a backend
type Capabilities uint8

const (
	// FunctionCalling means the backend can be forced to answer through a function call
	FunctionCalling Capabilities = 1 << iota
	// StructuredOutput means the backend can constrain generation to a JSON schema
	StructuredOutput
)

// Has reports whether every flag in f is present
func (c Capabilities) Has(f Capabilities) bool {
	return c&f == f
}

func (c Capabilities) String() string {
	var parts []string
	if c.Has(FunctionCalling) {
		parts = append(parts, "function-calling")
	}
	if c.Has(StructuredOutput) {
		parts = append(parts, "structured-output")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Shape selects how the backend is asked to format its reply
type Shape int

const (
	ShapeText Shape = iota
	ShapeSchema
	ShapeFunction
)

func (s Shape) String() string {
	switch s {
	case ShapeSchema:
		return "schema"
	case ShapeFunction:
		return "function"
	default:
		return "text"
	}
}

// Request is a rendered prompt plus the shape directive for one backend call
type Request struct {
	Prompt string
	System string
	Shape  Shape

	// Schema is set for ShapeSchema
	Schema map[string]any

	// Function is set for ShapeFunction
	Function *FunctionSpec
}

// FunctionSpec describes the single function the backend must call
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response represents the raw reply of one backend call
type Response struct {
	// Raw is the reply text, or the function-call arguments for ShapeFunction
	Raw        string
	TokensUsed TokenUsage
	Cost       Cost
	Provider   string
	Duration   time.Duration
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add accumulates other into u
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Cost tracks the cost of a backend call
type Cost struct {
	Amount   float64
	Currency string
}

// Add accumulates other into c
func (c *Cost) Add(other Cost) {
	c.Amount += other.Amount
	if c.Currency == "" {
		c.Currency = other.Currency
	}
}

// EstimateTokens approximates the token count of text (~4 bytes per token)
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// TranslationsFunction is the name of the function backends call with their translations
const TranslationsFunction = "submit_translations"

// TranslationsSchema returns the JSON schema of a translations reply:
// {"translations": [string, ...]}
func TranslationsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"translations": map[string]any{
				"type":        "array",
				"description": "Translated phrases, in the same order as the input phrases",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []string{"translations"},
		"additionalProperties": false,
	}
}

// TranslationsFunctionSpec returns the function specification for function-call output
func TranslationsFunctionSpec() *FunctionSpec {
	return &FunctionSpec{
		Name:        TranslationsFunction,
		Description: "Submit the translated phrases, one per input phrase, in input order.",
		Parameters:  TranslationsSchema(),
	}
}

// SystemPrompt returns the system instruction shared by every provider
func SystemPrompt() string {
	return "You are a professional translator. Translate each phrase accurately while maintaining the original meaning, tone, and style.\n\n" +
		"IMPORTANT: Reply only with JSON. The reply must contain exactly one translation per input phrase, in the same order as the input. " +
		"Preserve placeholders, markup tags and whitespace exactly as they appear."
}
