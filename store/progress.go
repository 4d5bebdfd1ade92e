package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ProgressFile stores translations of one language as a JSON object of
// key to translation. The whole file is rewritten atomically on every Save.
type ProgressFile struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

// NewProgressFile opens the progress file at path, creating its directory.
// A missing file starts empty.
func NewProgressFile(path string) (*ProgressFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}

	p := &ProgressFile{path: path, entries: map[string]string{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("read progress: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &p.entries); err != nil {
			return nil, fmt.Errorf("parse progress %s: %w", path, err)
		}
	}
	return p, nil
}

// Path returns the file location
func (p *ProgressFile) Path() string {
	return p.path
}

func (p *ProgressFile) HasTranslation(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[key]
	return ok, nil
}

// Save records the translation and rewrites the file. On a write failure the
// entry is rolled back so memory and disk agree.
func (p *ProgressFile) Save(ctx context.Context, key, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, had := p.entries[key]
	p.entries[key] = text

	if err := p.flush(); err != nil {
		if had {
			p.entries[key] = prev
		} else {
			delete(p.entries, key)
		}
		return err
	}
	return nil
}

// Entries returns a copy of the stored translations
func (p *ProgressFile) Entries() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

func (p *ProgressFile) flush() error {
	data, err := json.MarshalIndent(p.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	return WriteFileAtomic(p.path, data)
}

// WriteFileAtomic replaces path with data through a synced temporary file in
// the same directory, so readers see either the old or the new content
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
