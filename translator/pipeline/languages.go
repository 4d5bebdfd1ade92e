package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ownlingo/phrasebatch/translator"
)

// RunLanguages runs one Orchestrator per config over the same phrases, at
// most concurrency at a time (0 runs all at once). Every config is validated
// before any language starts. Reports are returned in config order; a
// language that stopped early still has its partial report, and the errors of
// all languages are joined.
func RunLanguages(ctx context.Context, configs []Config, phrases []translator.Phrase, concurrency int) ([]*Report, error) {
	runID := uuid.NewString()

	orchestrators := make([]*Orchestrator, len(configs))
	for i, cfg := range configs {
		if cfg.RunID == "" {
			cfg.RunID = runID
		}
		o, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("language %s: %w", cfg.Language, err)
		}
		orchestrators[i] = o
	}

	reports := make([]*Report, len(configs))
	errs := make([]error, len(configs))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, o := range orchestrators {
		g.Go(func() error {
			report, err := o.Run(ctx, phrases)
			reports[i] = report
			if err != nil {
				errs[i] = fmt.Errorf("language %s: %w", o.cfg.Language, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return reports, errors.Join(errs...)
}
