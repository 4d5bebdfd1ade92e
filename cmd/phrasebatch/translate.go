package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ownlingo/phrasebatch/project"
	"github.com/ownlingo/phrasebatch/store"
	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/batch"
	"github.com/ownlingo/phrasebatch/translator/pipeline"
	"github.com/ownlingo/phrasebatch/translator/prompt"
	"github.com/ownlingo/phrasebatch/translator/providers"
	"github.com/ownlingo/phrasebatch/translator/strategy"
)

type translateArgs struct {
	languages      []string
	model          string
	fallbackModels []string
	method         string
	batchSize      int
	batchMaxBytes  int
	batchMaxTokens int
	delay          time.Duration
	retries        int
	concurrency    int
	promptFile     string
	contextText    string
	contextFile    string
	dryRun         bool
}

func newTranslateCmd() *cobra.Command {
	var args translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate the missing phrases of a project",
		Long: `Translate every phrase whose destination cell is empty and that has no
saved translation yet. Phrases are sent in batches; a batch that keeps
failing is split until the offending phrase is isolated.

Flags override the translate section of the project config.

Examples:
  # Translate all target languages with the configured model
  phrasebatch translate -p projects/app

  # French and German with GPT-4o, falling back to Claude
  phrasebatch translate -p projects/app --lang fr --lang de \
    --model gpt-4o --fallback claude-3-5-haiku-latest

  # Force JSON-schema output and smaller batches
  phrasebatch translate -p projects/app --method structured --batch-size 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := project.Load(projectDir)
			if err != nil {
				return err
			}
			applyFlags(cmd, &p.Config.Translate, args)
			if err := p.Config.Validate(); err != nil {
				return err
			}
			return runTranslate(cmd.Context(), cmd.OutOrStdout(), p, args, newLogger(cmd.ErrOrStderr()))
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&args.languages, "lang", "l", nil, "Destination languages (default: every target language of the project)")
	f.StringVarP(&args.model, "model", "m", "", "Model to translate with (see the models command)")
	f.StringSliceVar(&args.fallbackModels, "fallback", nil, "Models tried in order when the primary model fails")
	f.StringVar(&args.method, "method", "", "Output method: auto, standard, structured or function")
	f.IntVarP(&args.batchSize, "batch-size", "b", 0, "Maximum phrases per request")
	f.IntVar(&args.batchMaxBytes, "batch-max-bytes", 0, "Maximum encoded payload bytes per request")
	f.IntVar(&args.batchMaxTokens, "batch-max-tokens", 0, "Maximum estimated payload tokens per request")
	f.DurationVarP(&args.delay, "delay", "d", 0, "Minimum delay between requests, also the retry backoff base")
	f.IntVarP(&args.retries, "retries", "r", 0, "Retries per request on transient errors")
	f.IntVar(&args.concurrency, "concurrency", 0, "Languages translated at the same time")
	f.StringVar(&args.promptFile, "prompt", "", "Custom translation prompt file")
	f.StringVar(&args.contextText, "context", "", "Global translation context")
	f.StringVar(&args.contextFile, "context-file", "", "File holding global translation context")
	f.BoolVar(&args.dryRun, "dry-run", false, "Plan batches without calling any model")

	return cmd
}

// applyFlags copies explicitly set flags over the project config
func applyFlags(cmd *cobra.Command, t *project.TranslateConfig, args translateArgs) {
	changed := cmd.Flags().Changed
	if changed("model") {
		t.Model = args.model
	}
	if changed("fallback") {
		t.FallbackModels = args.fallbackModels
	}
	if changed("method") {
		t.Method = args.method
	}
	if changed("batch-size") {
		t.BatchSize = args.batchSize
	}
	if changed("batch-max-bytes") {
		t.BatchMaxBytes = args.batchMaxBytes
	}
	if changed("batch-max-tokens") {
		t.BatchMaxTokens = args.batchMaxTokens
	}
	if changed("delay") {
		t.Delay = args.delay
	}
	if changed("retries") {
		retries := args.retries
		t.Retries = &retries
	}
	if changed("concurrency") {
		t.Concurrency = args.concurrency
	}
}

func runTranslate(ctx context.Context, out io.Writer, p *project.Project, args translateArgs, logger *slog.Logger) error {
	t := p.Config.Translate

	languages, err := targetLanguages(p, args.languages)
	if err != nil {
		return err
	}

	method, err := strategy.ParseMethod(t.Method)
	if err != nil {
		return err
	}

	models := append([]string{t.Model}, t.FallbackModels...)
	for _, model := range models {
		if _, err := providers.ProviderFor(model); err != nil {
			return err
		}
	}

	template, err := loadTemplate(p, args.promptFile, logger)
	if err != nil {
		return err
	}

	limits := batch.Limits{MaxItems: t.BatchSize, MaxSize: t.BatchMaxBytes, Unit: batch.Bytes}
	if t.BatchMaxTokens > 0 {
		limits = batch.Limits{MaxItems: t.BatchSize, MaxSize: t.BatchMaxTokens, Unit: batch.Tokens}
	}

	globalContext := p.Context(project.ContextOptions{File: args.contextFile, Text: args.contextText}, logger)

	stores, err := p.OpenStores()
	if err != nil {
		return err
	}
	defer stores.Close()

	if args.dryRun {
		return planOnly(ctx, out, p, stores, languages, globalContext, limits)
	}

	backend, err := providers.NewChain(ctx, models, providers.KeysFromEnv())
	if err != nil {
		return err
	}
	defer backend.Close()

	var phrases []translator.Phrase
	configs := make([]pipeline.Config, 0, len(languages))
	for _, lang := range languages {
		src, err := p.Phrases(lang)
		if err != nil {
			return err
		}
		phrases = src.Phrases

		s, err := stores.For(lang)
		if err != nil {
			return err
		}

		configs = append(configs, pipeline.Config{
			Backend:      backend,
			Store:        store.WithExisting(s, src.Existing),
			Method:       method,
			BaseLanguage: p.Config.BaseLanguage,
			Language:     lang,
			Context:      globalContext,
			Template:     template,
			Limits:       limits,
			Delay:        t.Delay,
			MaxRetries:   t.RetryCount(),
			Logger:       logger,
		})
	}

	logger.Info("starting translation",
		"project", p.Config.Name,
		"languages", strings.Join(languages, ","),
		"model", backend.Name(),
		"phrases", len(phrases))

	reports, runErr := pipeline.RunLanguages(ctx, configs, phrases, t.Concurrency)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for i, report := range reports {
		if report == nil {
			continue
		}
		lang := languages[i]

		if err := writeBack(p, stores, lang, report, logger); err != nil {
			errs = append(errs, fmt.Errorf("language %s: %w", lang, err))
		}
		printReport(out, report)
	}

	return errors.Join(errs...)
}

// writeBack fills the CSV with every stored translation of lang, including
// the ones a failed store write left in the report only
func writeBack(p *project.Project, stores *project.Stores, lang string, report *pipeline.Report, logger *slog.Logger) error {
	// the run may have been cancelled; the CSV is still brought up to date
	translations, err := stores.Translations(context.Background(), lang)
	if err != nil {
		return err
	}
	for _, tr := range report.Unsaved {
		translations[tr.Key] = tr.Text
	}

	filled, err := p.WriteBack(lang, translations)
	if err != nil {
		return err
	}
	if filled > 0 {
		logger.Info("source file updated", "language", lang, "cells", filled)
	}
	return nil
}

func targetLanguages(p *project.Project, requested []string) ([]string, error) {
	if len(requested) == 0 {
		languages := p.Config.TargetLanguages()
		if len(languages) == 0 {
			return nil, &translator.ConfigError{Err: errors.New("project has no target language")}
		}
		return languages, nil
	}

	var languages []string
	for _, lang := range requested {
		switch {
		case lang == p.Config.BaseLanguage:
			return nil, &translator.ConfigError{Err: fmt.Errorf("%s is the base language", lang)}
		case !p.Config.HasLanguage(lang):
			return nil, &translator.ConfigError{Err: fmt.Errorf("language %s is not configured for project %s (languages: %s)",
				lang, p.Config.Name, strings.Join(p.Config.Languages, ", "))}
		case !slices.Contains(languages, lang):
			languages = append(languages, lang)
		}
	}
	return languages, nil
}

// loadTemplate loads the --prompt file strictly, else the config's promptFile
// leniently, else returns nil for the embedded template
func loadTemplate(p *project.Project, flagPath string, logger *slog.Logger) (*prompt.Template, error) {
	if flagPath != "" {
		return prompt.LoadTranslation(flagPath, true, logger)
	}
	path := p.Config.Translate.PromptFile
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.Dir, path)
	}
	return prompt.LoadTranslation(path, false, logger)
}

// planOnly prints the batches a run would send, without calling any model
func planOnly(ctx context.Context, out io.Writer, p *project.Project, stores *project.Stores, languages []string, globalContext string, limits batch.Limits) error {
	for _, lang := range languages {
		src, err := p.Phrases(lang)
		if err != nil {
			return err
		}
		s, err := stores.For(lang)
		if err != nil {
			return err
		}
		done := store.WithExisting(s, src.Existing)

		var pending []translator.Phrase
		for _, phrase := range src.Phrases {
			ok, err := done.HasTranslation(ctx, phrase.Key)
			if err != nil {
				return err
			}
			if !ok {
				pending = append(pending, phrase)
			}
		}

		batches := batch.Plan(pending, globalContext, limits)
		fmt.Fprintf(out, "%s: %d of %d phrases to translate in %d batches\n",
			lang, len(pending), len(src.Phrases), len(batches))
		for i, b := range batches {
			fmt.Fprintf(out, "  batch %d: %d phrases, %d %s\n", i+1, b.Len(), batch.EstimateBatch(b, limits.Unit), limits.Unit)
		}
	}
	return nil
}

func printReport(out io.Writer, r *pipeline.Report) {
	fmt.Fprintf(out, "\n%s (%s, run %s)\n", r.Language, r.Method, r.RunID)
	fmt.Fprintf(out, "  translated: %d\n", len(r.Translated))
	fmt.Fprintf(out, "  already translated: %d\n", r.Existing)
	if r.Duplicates > 0 {
		fmt.Fprintf(out, "  duplicate keys skipped: %d\n", r.Duplicates)
	}
	fmt.Fprintf(out, "  failed: %d\n", len(r.Failed))
	if len(r.Unsaved) > 0 {
		fmt.Fprintf(out, "  not saved: %d\n", len(r.Unsaved))
	}
	fmt.Fprintf(out, "  requests: %d in %d batches\n", r.Calls, r.Batches)
	fmt.Fprintf(out, "  tokens: %d in, %d out\n", r.Usage.InputTokens, r.Usage.OutputTokens)
	if r.Cost.Amount > 0 {
		fmt.Fprintf(out, "  cost: %.4f %s\n", r.Cost.Amount, r.Cost.Currency)
	}
	fmt.Fprintf(out, "  duration: %s\n", r.Duration.Round(time.Millisecond))

	for _, f := range r.Failed {
		fmt.Fprintf(out, "  ! %s: %v\n", f.Key, f.Err)
	}
}
