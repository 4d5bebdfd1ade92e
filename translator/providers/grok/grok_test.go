package grok_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/providers/grok"
)

func TestModelCapabilities(t *testing.T) {
	both := translator.FunctionCalling | translator.StructuredOutput
	tests := map[string]translator.Capabilities{
		"grok-3":      both,
		"grok-3-mini": both,
		"grok-beta":   both,
		"grok-2-1212": translator.StructuredOutput,
		"grok-1":      0,
	}

	for model, want := range tests {
		if got := grok.ModelCapabilities(model); got != want {
			t.Errorf("ModelCapabilities(%q) = %s, want %s", model, got, want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	provider := grok.NewProvider(grok.DefaultConfig("test-api-key"))

	if provider.Name() != "grok" {
		t.Errorf("expected provider name 'grok', got %q", provider.Name())
	}
	if provider.Capabilities() != grok.ModelCapabilities("grok-3") {
		t.Errorf("unexpected capabilities %s", provider.Capabilities())
	}
}

func TestInvokeUsesGrokPricing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-api-key" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "1",
			"object": "chat.completion",
			"model":  "grok-3",
			"choices": []any{map[string]any{
				"index":   0,
				"message": map[string]any{"role": "assistant", "content": `["Hola"]`},
			}},
			"usage": map[string]any{"prompt_tokens": 1000, "completion_tokens": 1000, "total_tokens": 2000},
		})
	}))
	defer srv.Close()

	config := grok.DefaultConfig("test-api-key")
	config.BaseURL = srv.URL + "/v1"

	resp, err := grok.NewProvider(config).Invoke(context.Background(), &translator.Request{Prompt: "Translate"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Provider != "grok" || resp.Raw != `["Hola"]` {
		t.Errorf("unexpected response %+v", resp)
	}
	// grok-3: $0.003 in + $0.015 out per 1K
	if resp.Cost.Amount < 0.0179 || resp.Cost.Amount > 0.0181 {
		t.Errorf("unexpected cost %f", resp.Cost.Amount)
	}
}
