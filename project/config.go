// Package project loads translation projects: a config file next to a CSV
// source with one key column and one column per language.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ownlingo/phrasebatch/translator"
)

// ConfigFiles are the config file names looked up in a project directory, in order
var ConfigFiles = []string{"config.yaml", "config.yml", "config.json"}

// Config is the project configuration. JSON configs are read with the same
// field names, JSON being valid YAML.
type Config struct {
	Name          string   `yaml:"name"`
	SourceFile    string   `yaml:"sourceFile"`
	Languages     []string `yaml:"languages"`
	BaseLanguage  string   `yaml:"baseLanguage"`
	KeyColumn     string   `yaml:"keyColumn"`
	ContextColumn string   `yaml:"contextColumn,omitempty"`

	Translate TranslateConfig `yaml:"translate,omitempty"`
}

// TranslateConfig tunes translation runs
type TranslateConfig struct {
	Model          string        `yaml:"model,omitempty"`
	FallbackModels []string      `yaml:"fallbackModels,omitempty"`
	Method         string        `yaml:"method,omitempty"`
	BatchSize      int           `yaml:"batchSize,omitempty"`
	BatchMaxBytes  int           `yaml:"batchMaxBytes,omitempty"`
	BatchMaxTokens int           `yaml:"batchMaxTokens,omitempty"`
	Delay          time.Duration `yaml:"delay,omitempty"`
	Retries        *int          `yaml:"retries,omitempty"`
	Concurrency    int           `yaml:"concurrency,omitempty"`
	PromptFile     string        `yaml:"promptFile,omitempty"`
	// Store is "progress" (JSON file per language) or "sqlite"
	Store string `yaml:"store,omitempty"`
}

// Defaults
const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultBatchSize   = 50
	DefaultDelay       = time.Second
	DefaultRetries     = 3
	DefaultConcurrency = 1
	DefaultContext     = "context"

	StoreProgress = "progress"
	StoreSQLite   = "sqlite"
)

// LoadConfig reads the config at path, applies PHRASEBATCH_* environment
// overrides and defaults, then validates it
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &translator.ConfigError{Err: fmt.Errorf("read project config: %w", err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &translator.ConfigError{Err: fmt.Errorf("parse %s: %w", path, err)}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, &translator.ConfigError{Err: err}
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Env vars override file values
func (c *Config) applyEnv() error {
	t := &c.Translate
	envOverride(&t.Model, "PHRASEBATCH_MODEL")
	envOverride(&t.Method, "PHRASEBATCH_METHOD")
	envOverride(&t.PromptFile, "PHRASEBATCH_PROMPT_FILE")
	envOverride(&t.Store, "PHRASEBATCH_STORE")

	if v := os.Getenv("PHRASEBATCH_FALLBACK_MODELS"); v != "" {
		t.FallbackModels = splitList(v)
	}

	var errs []error
	errs = append(errs, envOverrideInt(&t.BatchSize, "PHRASEBATCH_BATCH_SIZE"))
	errs = append(errs, envOverrideInt(&t.BatchMaxBytes, "PHRASEBATCH_BATCH_MAX_BYTES"))
	errs = append(errs, envOverrideInt(&t.BatchMaxTokens, "PHRASEBATCH_BATCH_MAX_TOKENS"))
	errs = append(errs, envOverrideInt(&t.Concurrency, "PHRASEBATCH_CONCURRENCY"))

	if v := os.Getenv("PHRASEBATCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHRASEBATCH_RETRIES: %w", err))
		} else {
			t.Retries = &n
		}
	}
	if v := os.Getenv("PHRASEBATCH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHRASEBATCH_DELAY: %w", err))
		} else {
			t.Delay = d
		}
	}

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	t := &c.Translate
	if c.KeyColumn == "" {
		c.KeyColumn = c.BaseLanguage
	}
	if c.ContextColumn == "" {
		c.ContextColumn = DefaultContext
	}
	if t.Model == "" {
		t.Model = DefaultModel
	}
	if t.Method == "" {
		t.Method = "auto"
	}
	if t.BatchSize == 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.Delay == 0 {
		t.Delay = DefaultDelay
	}
	if t.Retries == nil {
		n := DefaultRetries
		t.Retries = &n
	}
	if t.Concurrency == 0 {
		t.Concurrency = DefaultConcurrency
	}
	if t.Store == "" {
		t.Store = StoreProgress
	}
}

// Validate checks required fields and bounds
func (c *Config) Validate() error {
	var problems []string

	if c.SourceFile == "" {
		problems = append(problems, "sourceFile is required")
	}
	if c.BaseLanguage == "" {
		problems = append(problems, "baseLanguage is required")
	}
	if len(c.Languages) == 0 {
		problems = append(problems, "languages must not be empty")
	}
	if c.Translate.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("batchSize must be >= 1, got %d", c.Translate.BatchSize))
	}
	if c.Translate.BatchMaxBytes < 0 || c.Translate.BatchMaxTokens < 0 {
		problems = append(problems, "batch size bounds must not be negative")
	}
	if c.Translate.BatchMaxBytes > 0 && c.Translate.BatchMaxTokens > 0 {
		problems = append(problems, "set batchMaxBytes or batchMaxTokens, not both")
	}
	if c.Translate.Retries != nil && *c.Translate.Retries < 0 {
		problems = append(problems, "retries must not be negative")
	}
	if c.Translate.Delay < 0 {
		problems = append(problems, "delay must not be negative")
	}
	if c.Translate.Concurrency < 1 {
		problems = append(problems, "concurrency must be >= 1")
	}
	switch c.Translate.Store {
	case StoreProgress, StoreSQLite:
	default:
		problems = append(problems, fmt.Sprintf("store must be %q or %q, got %q", StoreProgress, StoreSQLite, c.Translate.Store))
	}

	if len(problems) > 0 {
		return &translator.ConfigError{Err: errors.New(strings.Join(problems, "; "))}
	}
	return nil
}

// RetryCount returns the configured retry count
func (t TranslateConfig) RetryCount() int {
	if t.Retries == nil {
		return DefaultRetries
	}
	return *t.Retries
}

// HasLanguage reports whether lang is one of the project languages
func (c *Config) HasLanguage(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// TargetLanguages returns the project languages except the base language
func (c *Config) TargetLanguages() []string {
	var out []string
	for _, l := range c.Languages {
		if l != c.BaseLanguage {
			out = append(out, l)
		}
	}
	return out
}

// FindConfig returns the path of the first config file present in dir
func FindConfig(dir string) (string, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &translator.ConfigError{Err: fmt.Errorf("no %s found in %s", strings.Join(ConfigFiles, " or "), dir)}
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %w", envKey, err)
		}
		*field = parsed
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
