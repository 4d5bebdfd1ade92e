package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ownlingo/phrasebatch/store"
	"github.com/ownlingo/phrasebatch/translator"
)

// exerciseStore checks the behavior every store shares
func exerciseStore(t *testing.T, s translator.Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.HasTranslation(ctx, "greeting")
	if err != nil {
		t.Fatalf("HasTranslation failed: %v", err)
	}
	if ok {
		t.Fatal("expected empty store")
	}

	if err := s.Save(ctx, "greeting", "Bonjour"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "greeting", "Salut"); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	ok, err = s.HasTranslation(ctx, "greeting")
	if err != nil || !ok {
		t.Fatalf("expected saved key to exist, got %v, %v", ok, err)
	}
	if ok, _ := s.HasTranslation(ctx, "farewell"); ok {
		t.Error("unexpected translation for unsaved key")
	}
}

func TestMemory(t *testing.T) {
	m := store.NewMemory(nil)
	exerciseStore(t, m)

	if got := m.Entries()["greeting"]; got != "Salut" {
		t.Errorf("expected last save to win, got %q", got)
	}
}

func TestProgressFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fr", "progress.json")

	p, err := store.NewProgressFile(path)
	if err != nil {
		t.Fatalf("NewProgressFile failed: %v", err)
	}
	exerciseStore(t, p)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected progress file on disk: %v", err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("progress file is not JSON: %v", err)
	}
	if onDisk["greeting"] != "Salut" {
		t.Errorf("unexpected file content %s", data)
	}

	reopened, err := store.NewProgressFile(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if ok, _ := reopened.HasTranslation(context.Background(), "greeting"); !ok {
		t.Error("expected translation to survive reopen")
	}
}

func TestProgressFileKeepsUnicode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	p, err := store.NewProgressFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Save(context.Background(), "k", "日本語 <b>"); err != nil {
		t.Fatal(err)
	}

	reopened, err := store.NewProgressFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Entries()["k"]; got != "日本語 <b>" {
		t.Errorf("unexpected round-trip %q", got)
	}
}

func TestProgressFileRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.NewProgressFile(path); err == nil {
		t.Error("expected corrupt progress file to be rejected")
	}
}

func TestProgressFileSaveFailureRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "de")
	p, err := store.NewProgressFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	if err := p.Save(context.Background(), "k", "v"); err == nil {
		t.Fatal("expected save into a missing directory to fail")
	}
	if ok, _ := p.HasTranslation(context.Background(), "k"); ok {
		t.Error("failed save must not be reported as translated")
	}
}

func TestSQLite(t *testing.T) {
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "translations.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fr := db.Language("fr")
	exerciseStore(t, fr)

	if ok, _ := db.Language("de").HasTranslation(context.Background(), "greeting"); ok {
		t.Error("languages must not share translations")
	}

	got, err := db.Translations(context.Background(), "fr")
	if err != nil {
		t.Fatalf("Translations failed: %v", err)
	}
	if len(got) != 1 || got["greeting"] != "Salut" {
		t.Errorf("unexpected translations %v", got)
	}
}

func TestWithExisting(t *testing.T) {
	inner := store.NewMemory(map[string]string{"b": "B"})
	s := store.WithExisting(inner, map[string]string{"a": "A", "empty": ""})
	ctx := context.Background()

	for key, want := range map[string]bool{"a": true, "b": true, "empty": false, "c": false} {
		got, err := s.HasTranslation(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("HasTranslation(%q) = %v, want %v", key, got, want)
		}
	}

	if err := s.Save(ctx, "c", "C"); err != nil {
		t.Fatal(err)
	}
	if inner.Entries()["c"] != "C" {
		t.Error("expected saves to reach the inner store")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strings.csv")

	if err := store.WriteFileAtomic(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteFileAtomic(path, []byte("new")); err != nil {
		t.Fatalf("expected overwrite to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("expected new content, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temporary files to be cleaned up, found %d entries", len(entries))
	}
}
