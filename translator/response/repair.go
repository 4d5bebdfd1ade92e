package response

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/prompt"
)

// RepairSystemPrompt is the system instruction of every repair request
const RepairSystemPrompt = "You repair malformed JSON. Reply with valid JSON only."

// Repairer asks the backend to fix malformed output it produced
type Repairer struct {
	fix    *prompt.FixBuilder
	logger *slog.Logger
}

// NewRepairer creates a repairer. A nil fix builder uses the embedded template.
func NewRepairer(fix *prompt.FixBuilder, logger *slog.Logger) *Repairer {
	if fix == nil {
		fix = prompt.NewFixBuilder(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{fix: fix, logger: logger}
}

// Repair sends one free-text fix-up request embedding invalid and parses the
// reply. Its failures are terminal: the reply is never repaired again.
func (r *Repairer) Repair(ctx context.Context, backend translator.Backend, invalid string, expected int) ([]string, *translator.Response, error) {
	req := &translator.Request{
		Prompt: r.fix.Render(invalid, expected),
		System: RepairSystemPrompt,
		Shape:  translator.ShapeText,
	}

	r.logger.Debug("sending json repair request", "backend", backend.Name(), "expected", expected)

	resp, err := backend.Invoke(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("repair request: %w", err)
	}

	translations, err := Parse(resp.Raw, expected)
	if err != nil {
		return nil, resp, fmt.Errorf("repaired reply: %w", err)
	}

	return translations, resp, nil
}
