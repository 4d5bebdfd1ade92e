// Package store persists accepted translations for a destination language.
//
// Every implementation makes a Save durable before returning, so a run that
// stops after N saves leaves the first N translations in place.
package store

import (
	"context"
	"sync"

	"github.com/ownlingo/phrasebatch/translator"
)

// Memory is a map-backed store, mostly useful for dry runs and tests
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates a store seeded with entries
func NewMemory(entries map[string]string) *Memory {
	m := &Memory{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

func (m *Memory) HasTranslation(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *Memory) Save(ctx context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = text
	return nil
}

// Entries returns a copy of the stored translations
func (m *Memory) Entries() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// WithExisting reports keys with a non-empty translation in existing as
// already translated and delegates everything else to inner. It lets
// translations already present in the source file count as done without
// copying them into inner.
func WithExisting(inner translator.Store, existing map[string]string) translator.Store {
	return &seeded{inner: inner, existing: existing}
}

type seeded struct {
	inner    translator.Store
	existing map[string]string
}

func (s *seeded) HasTranslation(ctx context.Context, key string) (bool, error) {
	if s.existing[key] != "" {
		return true, nil
	}
	return s.inner.HasTranslation(ctx, key)
}

func (s *seeded) Save(ctx context.Context, key, text string) error {
	return s.inner.Save(ctx, key, text)
}
