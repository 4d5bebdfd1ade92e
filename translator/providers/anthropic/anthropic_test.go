package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/providers/anthropic"
)

func TestDefaultConfig(t *testing.T) {
	config := anthropic.DefaultConfig("test-api-key")

	if config.APIKey != "test-api-key" {
		t.Errorf("expected API key 'test-api-key', got %q", config.APIKey)
	}

	if config.Model == "" {
		t.Error("expected default model to be set")
	}

	if config.TPM <= 0 {
		t.Error("expected TPM > 0")
	}

	if config.RPM <= 0 {
		t.Error("expected RPM > 0")
	}
}

func TestNewProvider(t *testing.T) {
	config := anthropic.DefaultConfig("test-api-key")
	provider := anthropic.NewProvider(config)

	if provider == nil {
		t.Fatal("expected provider to be created")
	}

	if provider.Name() != "anthropic" {
		t.Errorf("expected provider name 'anthropic', got %q", provider.Name())
	}

	if !provider.Capabilities().Has(translator.FunctionCalling) {
		t.Error("expected function calling support")
	}
}

func TestNewProviderPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when creating provider with nil config")
		}
	}()

	anthropic.NewProvider(nil)
}

func TestModelCapabilities(t *testing.T) {
	both := translator.FunctionCalling | translator.StructuredOutput
	tests := map[string]translator.Capabilities{
		"claude-sonnet-4-20250514":   translator.FunctionCalling,
		"claude-3-5-haiku-latest":    translator.FunctionCalling,
		"claude-sonnet-4-5-20250929": both,
		"claude-haiku-4-5":           both,
	}

	for model, want := range tests {
		if got := anthropic.ModelCapabilities(model); got != want {
			t.Errorf("ModelCapabilities(%q) = %s, want %s", model, got, want)
		}
	}
}

func messagesServer(t *testing.T, status int, reply map[string]any, body *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if body != nil {
			if err := json.NewDecoder(r.Body).Decode(body); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func message(content ...any) map[string]any {
	return map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-20250514",
		"content":     content,
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 1000, "output_tokens": 1000},
	}
}

func testProvider(url string) *anthropic.Provider {
	return anthropic.NewProvider(&anthropic.Config{
		APIKey:  "test-api-key",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: url,
	})
}

func TestInvokeText(t *testing.T) {
	var body map[string]any
	srv := messagesServer(t, http.StatusOK, message(map[string]any{"type": "text", "text": `["Bonjour"]`}), &body)

	resp, err := testProvider(srv.URL).Invoke(context.Background(), &translator.Request{
		Prompt: "Translate",
		System: "system prompt",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Raw != `["Bonjour"]` {
		t.Errorf("unexpected raw output %q", resp.Raw)
	}
	if resp.TokensUsed.TotalTokens != 2000 {
		t.Errorf("expected 2000 tokens, got %d", resp.TokensUsed.TotalTokens)
	}
	// claude-sonnet-4: $0.003 in + $0.015 out per 1K
	if resp.Cost.Amount < 0.0179 || resp.Cost.Amount > 0.0181 {
		t.Errorf("unexpected cost %f", resp.Cost.Amount)
	}

	if _, ok := body["tools"]; ok {
		t.Error("free-text request must not carry tools")
	}
	if body["system"] == nil {
		t.Error("expected system prompt to be sent")
	}
}

func TestInvokeFunction(t *testing.T) {
	var body map[string]any
	srv := messagesServer(t, http.StatusOK, message(map[string]any{
		"type":  "tool_use",
		"id":    "toolu_1",
		"name":  translator.TranslationsFunction,
		"input": map[string]any{"translations": []string{"Bonjour"}},
	}), &body)

	resp, err := testProvider(srv.URL).Invoke(context.Background(), &translator.Request{
		Prompt:   "Translate",
		Shape:    translator.ShapeFunction,
		Function: translator.TranslationsFunctionSpec(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Raw != `{"translations":["Bonjour"]}` {
		t.Errorf("expected tool input as raw output, got %q", resp.Raw)
	}

	choice, _ := body["tool_choice"].(map[string]any)
	if choice["type"] != "tool" || choice["name"] != translator.TranslationsFunction {
		t.Errorf("expected forced tool choice, got %v", body["tool_choice"])
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected one tool, got %v", body["tools"])
	}
	tool, _ := tools[0].(map[string]any)
	schema, _ := tool["input_schema"].(map[string]any)
	if schema["type"] != "object" || schema["properties"] == nil {
		t.Errorf("unexpected input schema %v", schema)
	}
}

func TestInvokeClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   translator.ErrorKind
	}{
		{status: http.StatusTooManyRequests, kind: translator.RateLimited},
		{status: 529, kind: translator.RateLimited},
		{status: http.StatusInternalServerError, kind: translator.Transport},
		{status: http.StatusUnauthorized, kind: translator.Rejected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := messagesServer(t, tt.status, map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": "nope"},
			}, nil)

			_, err := testProvider(srv.URL).Invoke(context.Background(), &translator.Request{Prompt: "Translate"})

			var backendErr *translator.BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %v", err)
			}
			if backendErr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, backendErr.Kind)
			}
		})
	}
}
