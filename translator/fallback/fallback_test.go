package fallback_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/fallback"
)

// Mock backend for testing
type mockBackend struct {
	name  string
	caps  translator.Capabilities
	err   error
	calls int
}

func (m *mockBackend) Name() string {
	return m.name
}

func (m *mockBackend) Capabilities() translator.Capabilities {
	return m.caps
}

func (m *mockBackend) Invoke(ctx context.Context, req *translator.Request) (*translator.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	return &translator.Response{
		Raw:      `["translated: ` + req.Prompt + `"]`,
		Provider: m.name,
	}, nil
}

func TestNewChain(t *testing.T) {
	provider1 := &mockBackend{name: "provider1"}
	provider2 := &mockBackend{name: "provider2"}

	chain := fallback.NewChain(provider1, provider2)
	if chain == nil {
		t.Fatal("expected chain to be created")
	}

	if !strings.Contains(chain.Name(), "provider1") {
		t.Errorf("expected chain name to contain 'provider1', got %q", chain.Name())
	}

	if single := fallback.NewChain(provider1); single.Name() != "provider1" {
		t.Errorf("expected single-provider chain to keep the provider name, got %q", single.Name())
	}
}

func TestNewChainPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when creating chain with no providers")
		}
	}()

	fallback.NewChain()
}

func TestChainCapabilities(t *testing.T) {
	both := translator.FunctionCalling | translator.StructuredOutput

	tests := []struct {
		name string
		caps []translator.Capabilities
		want translator.Capabilities
	}{
		{name: "single", caps: []translator.Capabilities{both}, want: both},
		{name: "intersection", caps: []translator.Capabilities{both, translator.FunctionCalling}, want: translator.FunctionCalling},
		{name: "disjoint", caps: []translator.Capabilities{translator.StructuredOutput, translator.FunctionCalling}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var providers []translator.Backend
			for _, c := range tt.caps {
				providers = append(providers, &mockBackend{name: "p", caps: c})
			}

			if got := fallback.NewChain(providers...).Capabilities(); got != tt.want {
				t.Errorf("Capabilities() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChainInvokeSuccess(t *testing.T) {
	provider := &mockBackend{name: "test-provider"}
	chain := fallback.NewChain(provider)

	resp, err := chain.Invoke(context.Background(), &translator.Request{Prompt: "Hello"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Provider != "test-provider" {
		t.Errorf("expected provider 'test-provider', got %q", resp.Provider)
	}

	if resp.Raw != `["translated: Hello"]` {
		t.Errorf("unexpected output: %q", resp.Raw)
	}
}

func TestChainInvokeFallback(t *testing.T) {
	provider1 := &mockBackend{
		name: "provider1",
		err:  errors.New("provider1 error"),
	}
	provider2 := &mockBackend{name: "provider2"}
	provider3 := &mockBackend{name: "provider3"}

	chain := fallback.NewChain(provider1, provider2, provider3)

	resp, err := chain.Invoke(context.Background(), &translator.Request{Prompt: "Hello"})
	if err != nil {
		t.Fatalf("expected no error after fallback, got %v", err)
	}

	// Should use provider2 since provider1 failed
	if resp.Provider != "provider2" {
		t.Errorf("expected provider 'provider2', got %q", resp.Provider)
	}
	if provider3.calls != 0 {
		t.Errorf("expected provider3 not to be called, got %d calls", provider3.calls)
	}
}

func TestChainInvokeAllFail(t *testing.T) {
	lastErr := &translator.BackendError{Kind: translator.RateLimited, StatusCode: 429, Err: errors.New("error2")}
	provider1 := &mockBackend{
		name: "provider1",
		err:  errors.New("error1"),
	}
	provider2 := &mockBackend{
		name: "provider2",
		err:  lastErr,
	}

	chain := fallback.NewChain(provider1, provider2)

	_, err := chain.Invoke(context.Background(), &translator.Request{Prompt: "Hello"})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}

	if !strings.Contains(err.Error(), "all providers failed") {
		t.Errorf("expected 'all providers failed' in error, got: %v", err)
	}

	var backendErr *translator.BackendError
	if !errors.As(err, &backendErr) || !backendErr.Retryable() {
		t.Errorf("expected the last backend error to stay classifiable, got %v", err)
	}
}

func TestChainInvokeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider1 := &mockBackend{name: "provider1", err: context.Canceled}
	provider2 := &mockBackend{name: "provider2"}

	_, err := fallback.NewChain(provider1, provider2).Invoke(ctx, &translator.Request{Prompt: "Hello"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if provider2.calls != 0 {
		t.Error("expected no fallback after cancellation")
	}
}
