package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ownlingo/phrasebatch/project"
	"github.com/ownlingo/phrasebatch/translator"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreate(t *testing.T) {
	csvPath := writeCSV(t, "key,en,fr,context\ngreeting,Hello,,\n")
	dir := filepath.Join(t.TempDir(), "demo")

	p, existed, err := project.Create(project.CreateOptions{
		Dir:          dir,
		CSV:          csvPath,
		BaseLanguage: "en",
		KeyColumn:    "key",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if existed {
		t.Error("expected a new project")
	}

	if p.Config.Name != "demo" || p.Config.SourceFile != "app.csv" {
		t.Errorf("unexpected config %+v", p.Config)
	}
	if !reflect.DeepEqual(p.Config.Languages, []string{"en", "fr"}) {
		t.Errorf("unexpected languages %v", p.Config.Languages)
	}
	for _, lang := range []string{"en", "fr"} {
		if info, err := os.Stat(filepath.Join(dir, lang)); err != nil || !info.IsDir() {
			t.Errorf("expected language dir %s", lang)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "app.csv")); err != nil {
		t.Errorf("expected csv copied into project: %v", err)
	}

	_, existed, err = project.Create(project.CreateOptions{Dir: dir, CSV: csvPath, BaseLanguage: "en", KeyColumn: "key"})
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if !existed {
		t.Error("expected second create to report an existing project")
	}
}

func TestCreateErrors(t *testing.T) {
	csvPath := writeCSV(t, "key,en,fr\ngreeting,Hello,\n")

	tests := []struct {
		name string
		opts project.CreateOptions
	}{
		{name: "missing key column", opts: project.CreateOptions{CSV: csvPath, BaseLanguage: "en", KeyColumn: "id"}},
		{name: "missing base language", opts: project.CreateOptions{CSV: csvPath, BaseLanguage: "es", KeyColumn: "key"}},
		{name: "missing options", opts: project.CreateOptions{CSV: csvPath}},
		{name: "empty csv", opts: project.CreateOptions{CSV: writeCSV(t, "key,en\n"), BaseLanguage: "en", KeyColumn: "key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Dir = t.TempDir()

			_, _, err := project.Create(tt.opts)

			var cfgErr *translator.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestDetectLanguages(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		key    string
		base   string
		want   []string
	}{
		{name: "separate key", header: []string{"key", "en", "fr", "context"}, key: "key", base: "en", want: []string{"en", "fr"}},
		{name: "base is key", header: []string{"en", "fr", "de"}, key: "en", base: "en", want: []string{"en", "fr", "de"}},
		{name: "blank header", header: []string{"key", "", "en"}, key: "key", base: "en", want: []string{"en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := project.DetectLanguages(tt.header, tt.key, tt.base, []string{"context"})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectLanguages() = %v, want %v", got, tt.want)
			}
		})
	}
}
