package fallback

import (
	"context"
	"fmt"

	"github.com/ownlingo/phrasebatch/translator"
)

// Chain implements a fallback chain of backends
type Chain struct {
	providers []translator.Backend
}

// NewChain creates a new fallback chain with the given providers
// Providers are tried in order: primary → secondary → tertiary → ...
func NewChain(providers ...translator.Backend) *Chain {
	if len(providers) == 0 {
		panic("at least one provider is required")
	}

	return &Chain{
		providers: providers,
	}
}

// Name returns the name of the chain (primary provider name)
func (c *Chain) Name() string {
	if len(c.providers) == 1 {
		return c.providers[0].Name()
	}
	return fmt.Sprintf("fallback-chain(%s)", c.providers[0].Name())
}

// Capabilities returns the capabilities every provider of the chain shares,
// so a strategy selected for the chain is valid for whichever provider answers
func (c *Chain) Capabilities() translator.Capabilities {
	caps := c.providers[0].Capabilities()
	for _, p := range c.providers[1:] {
		caps &= p.Capabilities()
	}
	return caps
}

// Invoke sends the request to each provider in turn until one answers.
// The last provider's error is kept in the chain so callers can classify it.
func (c *Chain) Invoke(ctx context.Context, req *translator.Request) (*translator.Response, error) {
	var lastErr error

	for i, provider := range c.providers {
		resp, err := provider.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = fmt.Errorf("provider %s (%d/%d) failed: %w",
			provider.Name(), i+1, len(c.providers), err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}
