// Package pipeline drives batches of phrases through a backend for one
// destination language, recovering from transport failures, malformed output
// and oversized batches before reporting a phrase as failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/batch"
	"github.com/ownlingo/phrasebatch/translator/prompt"
	"github.com/ownlingo/phrasebatch/translator/ratelimit"
	"github.com/ownlingo/phrasebatch/translator/response"
	"github.com/ownlingo/phrasebatch/translator/retry"
	"github.com/ownlingo/phrasebatch/translator/strategy"
)

// Config configures an Orchestrator for one destination language
type Config struct {
	Backend translator.Backend
	Store   translator.Store
	Method  strategy.Method

	BaseLanguage string
	Language     string
	// Context is the global translation context shared by every batch
	Context string

	// Template defaults to the embedded translation template
	Template *prompt.Template
	// Fix defaults to the embedded JSON-fix template
	Fix *prompt.FixBuilder

	Limits batch.Limits

	// Delay is the minimum spacing between backend calls and the base of the retry backoff
	Delay      time.Duration
	MaxRetries int
	// Retry overrides the backoff derived from Delay and MaxRetries
	Retry *retry.Config

	RunID  string
	Logger *slog.Logger
}

// Orchestrator translates phrases for one destination language. Batches are
// processed one at a time; an Orchestrator must not be shared between
// concurrent runs.
type Orchestrator struct {
	cfg      Config
	strategy strategy.Strategy
	builder  *prompt.Builder
	repairer *response.Repairer
	pacer    *ratelimit.Pacer
	retry    *retry.Config
	logger   *slog.Logger
}

// New validates cfg and resolves the output strategy. Any error is a
// *translator.ConfigError and nothing has been sent to the backend.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, &translator.ConfigError{Err: errors.New("backend is required")}
	}
	if cfg.Store == nil {
		return nil, &translator.ConfigError{Err: errors.New("store is required")}
	}
	if cfg.Language == "" {
		return nil, &translator.ConfigError{Err: errors.New("destination language is required")}
	}

	strat, err := strategy.Select(cfg.Method, cfg.Backend)
	if err != nil {
		return nil, err
	}

	tmpl := cfg.Template
	if tmpl == nil {
		tmpl, err = prompt.LoadTranslation("", false, cfg.Logger)
		if err != nil {
			return nil, &translator.ConfigError{Err: err}
		}
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", cfg.RunID, "lang", cfg.Language)

	o := &Orchestrator{
		cfg:      cfg,
		strategy: strat,
		builder:  prompt.NewBuilder(tmpl),
		repairer: response.NewRepairer(cfg.Fix, logger),
		pacer:    ratelimit.NewPacer(cfg.Delay),
		retry:    cfg.Retry,
		logger:   logger,
	}

	if o.retry == nil {
		o.retry = retry.WithBaseDelay(cfg.MaxRetries, cfg.Delay)
	} else {
		copied := *o.retry
		o.retry = &copied
	}
	o.retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		o.logger.Warn("backend call failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	}

	return o, nil
}

// Method returns the resolved output method
func (o *Orchestrator) Method() strategy.Method {
	return o.strategy.Method()
}

// Run translates every phrase the store does not already have. Each phrase
// ends up translated, existing or failed in the returned Report.
//
// A non-nil error means the run stopped early: a save failed
// (*translator.PersistenceError), the backend rejected the credentials, or
// ctx was cancelled. The Report is returned in every case. When the backend
// rejected the credentials or the model, every phrase not yet translated is
// in Report.Failed.
func (o *Orchestrator) Run(ctx context.Context, phrases []translator.Phrase) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:    o.cfg.RunID,
		Language: o.cfg.Language,
		Method:   string(o.strategy.Method()),
	}
	defer func() { report.Duration = time.Since(start) }()

	pending, err := o.pending(ctx, phrases, report)
	if err != nil {
		return report, err
	}

	batches := batch.Plan(pending, o.cfg.Context, o.cfg.Limits)
	report.Batches = len(batches)

	o.logger.Info("starting translation",
		"method", report.Method,
		"phrases", len(pending),
		"existing", report.Existing,
		"batches", len(batches))

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("run cancelled", "batch", i+1, "remaining", len(batches)-i)
			return report, fmt.Errorf("run cancelled before batch %d: %w", i+1, err)
		}

		if err := o.process(ctx, b, fmt.Sprint(i+1), report); err != nil {
			if fatal(err) {
				for _, rest := range batches[i+1:] {
					o.fail(rest, err, report)
				}
			}
			return report, err
		}
	}

	o.logger.Info("translation finished",
		"translated", len(report.Translated),
		"existing", report.Existing,
		"failed", len(report.Failed),
		"tokens", report.Usage.TotalTokens,
		"cost", report.Cost.Amount)

	return report, nil
}

// pending returns the phrases the store does not have yet. A key repeated in
// phrases keeps its first occurrence.
func (o *Orchestrator) pending(ctx context.Context, phrases []translator.Phrase, report *Report) ([]translator.Phrase, error) {
	var out []translator.Phrase
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		if seen[p.Key] {
			report.Duplicates++
			o.logger.Warn("duplicate phrase key skipped", "key", p.Key)
			continue
		}
		seen[p.Key] = true

		ok, err := o.cfg.Store.HasTranslation(ctx, p.Key)
		if err != nil {
			return nil, &translator.PersistenceError{Key: p.Key, Err: err}
		}
		if ok {
			report.Existing++
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// process translates b, splitting it in halves on failure until single
// phrases are reached. id names the batch in logs, e.g. "3" or "3.1.2".
func (o *Orchestrator) process(ctx context.Context, b translator.Batch, id string, report *Report) error {
	log := o.logger.With("batch", id, "size", b.Len())

	translations, err := o.translate(ctx, b, log, report)
	if err == nil {
		return o.persist(ctx, b, translations, report)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("batch %s: %w", id, ctx.Err())
	}
	if fatal(err) {
		o.fail(b, err, report)
		return fmt.Errorf("batch %s: %w", id, err)
	}

	if b.Len() == 1 {
		p := b.Phrases[0]
		log.Error("phrase not translated", "key", p.Key, "err", err)
		report.Failed = append(report.Failed, Failure{Key: p.Key, Err: err})
		return nil
	}

	log.Warn("batch failed, splitting", "err", err)

	mid := b.Len() / 2
	if err := o.process(ctx, b.Slice(0, mid), id+".1", report); err != nil {
		if fatal(err) {
			o.fail(b.Slice(mid, b.Len()), err, report)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch %s: %w", id, err)
	}
	return o.process(ctx, b.Slice(mid, b.Len()), id+".2", report)
}

// translate runs one batch through Pending, Sent, and optionally RepairSent
// until it is Accepted or Failed
func (o *Orchestrator) translate(ctx context.Context, b translator.Batch, log *slog.Logger, report *Report) ([]string, error) {
	state := Pending
	log.Debug("batch state", "state", state)

	text, err := o.builder.Render(o.cfg.BaseLanguage, o.cfg.Language, b)
	if err != nil {
		return nil, &translator.ConfigError{Err: err}
	}

	var resp *translator.Response
	err = retry.Do(ctx, o.retry, func() error {
		if err := o.pacer.Wait(ctx); err != nil {
			return err
		}
		r, err := o.strategy.Execute(context.WithoutCancel(ctx), o.cfg.Backend, text)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	state = Sent
	if err != nil {
		log.Warn("batch state", "state", Failed, "err", err)
		return nil, err
	}
	report.account(resp)
	log.Debug("batch state", "state", state, "tokens", resp.TokensUsed.TotalTokens)

	translations, err := response.Parse(resp.Raw, b.Len())
	if err == nil {
		log.Debug("batch state", "state", Parsed)
		log.Info("batch state", "state", Accepted)
		return translations, nil
	}

	var parseErr *response.ParseError
	if !errors.As(err, &parseErr) || !parseErr.Repairable() {
		log.Warn("batch state", "state", Failed, "err", err)
		return nil, err
	}

	state = RepairSent
	log.Info("batch state", "state", state, "err", err)

	err = retry.Do(ctx, o.retry, func() error {
		if err := o.pacer.Wait(ctx); err != nil {
			return err
		}
		out, r, err := o.repairer.Repair(context.WithoutCancel(ctx), o.cfg.Backend, resp.Raw, b.Len())
		report.account(r)
		translations = out
		return err
	})
	if err != nil {
		log.Warn("batch state", "state", Failed, "err", err)
		return nil, err
	}

	log.Info("batch state", "state", Accepted)
	return translations, nil
}

// persist saves accepted translations in batch order. On the first failure
// the remaining translations are recorded as unsaved.
func (o *Orchestrator) persist(ctx context.Context, b translator.Batch, translations []string, report *Report) error {
	saveCtx := context.WithoutCancel(ctx)
	for i, p := range b.Phrases {
		if err := o.cfg.Store.Save(saveCtx, p.Key, translations[i]); err != nil {
			for j := i; j < len(b.Phrases); j++ {
				report.Unsaved = append(report.Unsaved, Translation{Key: b.Phrases[j].Key, Text: translations[j]})
			}
			o.logger.Error("save failed, stopping run", "key", p.Key, "err", err)
			return &translator.PersistenceError{Key: p.Key, Err: err}
		}
		report.Translated = append(report.Translated, Translation{Key: p.Key, Text: translations[i]})
	}
	return nil
}

// fail records every phrase of b as failed with err
func (o *Orchestrator) fail(b translator.Batch, err error, report *Report) {
	for _, p := range b.Phrases {
		report.Failed = append(report.Failed, Failure{Key: p.Key, Err: err})
	}
}

// fatal reports errors no smaller batch can recover from
func fatal(err error) bool {
	var cfgErr *translator.ConfigError
	if errors.As(err, &cfgErr) {
		return true
	}
	var backendErr *translator.BackendError
	if errors.As(err, &backendErr) && backendErr.Kind == translator.Rejected {
		switch backendErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}
