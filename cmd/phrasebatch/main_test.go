package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ownlingo/phrasebatch/project"
	"github.com/ownlingo/phrasebatch/translator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newProject(t *testing.T) string {
	t.Helper()
	csvPath := filepath.Join(t.TempDir(), "strings.csv")
	content := "key,en,fr,de\nhello,Hello,Bonjour,\nbye,Goodbye,,\nthanks,Thanks,,\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "app")
	out, err := execute(t, "create", "-p", dir, "--csv", csvPath, "--base-lang", "en", "--key", "key")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.Contains(out, "Languages detected: en, fr, de") {
		t.Errorf("unexpected create output:\n%s", out)
	}
	return dir
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "models")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"gpt-4o", "claude-sonnet-4-5", "gemini-1.5-flash", "grok-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in model list", want)
		}
	}
}

func TestTranslateDryRun(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "translate", "-p", dir, "--dry-run", "--batch-size", "1", "--lang", "fr")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "fr: 2 of 3 phrases to translate in 2 batches") {
		t.Errorf("unexpected plan:\n%s", out)
	}
	if strings.Contains(out, "de:") {
		t.Error("expected only the requested language to be planned")
	}
}

func TestTranslateRejectsUnknownModel(t *testing.T) {
	dir := newProject(t)

	_, err := execute(t, "translate", "-p", dir, "--model", "llama-3", "--dry-run")

	var cfgErr *translator.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestTranslateMissingKey(t *testing.T) {
	dir := newProject(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := execute(t, "translate", "-p", dir, "--model", "gpt-4o", "--lang", "fr")

	var cfgErr *translator.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for missing API key, got %v", err)
	}
}

func TestTargetLanguages(t *testing.T) {
	p := &project.Project{Config: project.Config{
		Name:         "app",
		Languages:    []string{"en", "fr", "de"},
		BaseLanguage: "en",
	}}

	tests := []struct {
		name      string
		requested []string
		want      []string
		wantErr   bool
	}{
		{name: "default", want: []string{"fr", "de"}},
		{name: "subset", requested: []string{"de"}, want: []string{"de"}},
		{name: "duplicates", requested: []string{"fr", "fr"}, want: []string{"fr"}},
		{name: "base language", requested: []string{"en"}, wantErr: true},
		{name: "unknown", requested: []string{"it"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := targetLanguages(p, tt.requested)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("targetLanguages() = %v, want %v", got, tt.want)
			}
		})
	}
}
