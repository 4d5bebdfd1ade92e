package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ownlingo/phrasebatch/store"
	"github.com/ownlingo/phrasebatch/translator"
)

// CreateOptions describes a project to create from an existing CSV
type CreateOptions struct {
	Dir          string
	CSV          string
	BaseLanguage string
	KeyColumn    string
	// IgnoreColumns are never treated as languages. Defaults to the context column.
	IgnoreColumns []string
}

// Create sets up a project in opts.Dir: it detects the languages from the CSV
// header, copies the CSV next to a config.yaml and creates one directory per
// language. Running it on an existing project updates the config and keeps
// its translate settings.
func Create(opts CreateOptions) (*Project, bool, error) {
	if opts.Dir == "" || opts.CSV == "" || opts.BaseLanguage == "" || opts.KeyColumn == "" {
		return nil, false, &translator.ConfigError{Err: errors.New("project dir, csv, base language and key column are required")}
	}
	if opts.IgnoreColumns == nil {
		opts.IgnoreColumns = []string{DefaultContext}
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(opts.CSV)
	if err != nil {
		return nil, false, fmt.Errorf("read csv: %w", err)
	}
	table, err := readTable(strings.NewReader(string(data)))
	if err != nil {
		return nil, false, err
	}
	if len(table.Rows) == 0 {
		return nil, false, &translator.ConfigError{Err: errors.New("csv file is empty")}
	}
	if table.Column(opts.KeyColumn) < 0 {
		return nil, false, &translator.ConfigError{Err: fmt.Errorf("key column %q not found, available columns: %s",
			opts.KeyColumn, strings.Join(table.Header, ", "))}
	}

	languages := DetectLanguages(table.Header, opts.KeyColumn, opts.BaseLanguage, opts.IgnoreColumns)
	if !slices.Contains(languages, opts.BaseLanguage) {
		return nil, false, &translator.ConfigError{Err: fmt.Errorf("base language %q not found, available languages: %s",
			opts.BaseLanguage, strings.Join(languages, ", "))}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create project dir: %w", err)
	}

	cfg := Config{}
	existed := false
	if path, err := FindConfig(dir); err == nil {
		existed = true
		if prev, err := LoadConfig(path); err == nil {
			cfg.Translate = prev.Translate
		}
	}

	cfg.Name = filepath.Base(dir)
	cfg.SourceFile = filepath.Base(opts.CSV)
	cfg.Languages = languages
	cfg.BaseLanguage = opts.BaseLanguage
	cfg.KeyColumn = opts.KeyColumn
	if slices.Contains(table.Header, DefaultContext) {
		cfg.ContextColumn = DefaultContext
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, false, err
	}
	if err := store.WriteFileAtomic(filepath.Join(dir, ConfigFiles[0]), out); err != nil {
		return nil, false, err
	}

	for _, lang := range languages {
		if err := os.MkdirAll(filepath.Join(dir, lang), 0o755); err != nil {
			return nil, false, fmt.Errorf("create language dir: %w", err)
		}
	}

	dst := filepath.Join(dir, cfg.SourceFile)
	if src, _ := filepath.Abs(opts.CSV); src != dst {
		if err := store.WriteFileAtomic(dst, data); err != nil {
			return nil, false, err
		}
	}

	p, err := Load(dir)
	if err != nil {
		return nil, false, err
	}
	return p, existed, nil
}

// DetectLanguages returns the header columns that hold languages: all of them
// except the key column and ignored columns. The key column counts as a
// language when it is the base language itself.
func DetectLanguages(header []string, keyColumn, baseLanguage string, ignore []string) []string {
	var languages []string
	for _, col := range header {
		switch {
		case col == keyColumn && keyColumn == baseLanguage:
			languages = append(languages, col)
		case col == keyColumn, col == "", slices.Contains(ignore, col):
		default:
			languages = append(languages, col)
		}
	}
	return languages
}
