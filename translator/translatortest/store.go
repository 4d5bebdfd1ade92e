package translatortest

import (
	"context"
	"fmt"
	"sync"
)

// Saved is one recorded Store.Save call
type Saved struct {
	Key  string
	Text string
}

// Store is an in-memory translator.Store that records saves in order
type Store struct {
	// Existing keys report HasTranslation true
	Existing map[string]bool
	// FailOn makes Save fail for this key
	FailOn string

	mu    sync.Mutex
	saved []Saved
	looks int
}

// HasTranslation reports whether key is existing or was saved
func (s *Store) HasTranslation(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.looks++
	if s.Existing[key] {
		return true, nil
	}
	for _, sv := range s.saved {
		if sv.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// Save records the translation unless key is FailOn
func (s *Store) Save(ctx context.Context, key, text string) error {
	if key == s.FailOn {
		return fmt.Errorf("translatortest: disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, Saved{Key: key, Text: text})
	return nil
}

// Saved returns the recorded saves in call order
func (s *Store) Saved() []Saved {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Saved(nil), s.saved...)
}

// Lookups returns the number of HasTranslation calls
func (s *Store) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looks
}
