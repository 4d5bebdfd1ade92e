// Package translatortest provides scripted backends for tests.
package translatortest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ownlingo/phrasebatch/translator"
)

// Reply is one scripted backend answer
type Reply struct {
	Raw string
	Err error
}

// Backend is a translator.Backend that answers from a script. Replies are
// consumed in order; once exhausted, Handler answers. Every request is recorded.
type Backend struct {
	BackendName string
	Caps        translator.Capabilities
	Replies     []Reply
	Handler     func(req *translator.Request) (string, error)

	mu       sync.Mutex
	requests []*translator.Request
}

// Name returns the backend name
func (b *Backend) Name() string {
	if b.BackendName == "" {
		return "scripted"
	}
	return b.BackendName
}

// Capabilities returns the scripted capability set
func (b *Backend) Capabilities() translator.Capabilities {
	return b.Caps
}

// Invoke records req and returns the next scripted reply
func (b *Backend) Invoke(ctx context.Context, req *translator.Request) (*translator.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	var reply Reply
	scripted := len(b.Replies) > 0
	if scripted {
		reply = b.Replies[0]
		b.Replies = b.Replies[1:]
	}
	b.mu.Unlock()

	if !scripted {
		if b.Handler == nil {
			return nil, errors.New("translatortest: no scripted reply left")
		}
		raw, err := b.Handler(req)
		reply = Reply{Raw: raw, Err: err}
	}

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &translator.Response{
		Raw:        reply.Raw,
		Provider:   b.Name(),
		TokensUsed: translator.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Cost:       translator.Cost{Amount: 0.001, Currency: "USD"},
	}, nil
}

// Requests returns the requests received so far
func (b *Backend) Requests() []*translator.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*translator.Request(nil), b.requests...)
}

// Calls returns the number of requests received so far
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// JSON encodes translations as a bare JSON array
func JSON(translations ...string) string {
	data, err := json.Marshal(translations)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// PhrasesOf decodes the phrases_json payload of a prompt rendered with the
// template "{phrases_json}" only
func PhrasesOf(req *translator.Request) []string {
	var phrases []string
	if err := json.Unmarshal([]byte(req.Prompt), &phrases); err != nil {
		return nil
	}
	return phrases
}
