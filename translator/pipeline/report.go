package pipeline

import (
	"time"

	"github.com/ownlingo/phrasebatch/translator"
)

// Translation is an accepted translation of one phrase
type Translation struct {
	Key  string
	Text string
}

// Failure names a phrase left untranslated after every recovery path
type Failure struct {
	Key string
	Err error
}

// Report summarizes one run for one destination language
type Report struct {
	RunID    string
	Language string
	Method   string

	// Translated holds saved translations in persistence order
	Translated []Translation
	// Existing counts phrases the store already had
	Existing int
	// Duplicates counts phrases skipped because an earlier phrase had the same key
	Duplicates int
	Failed     []Failure
	// Unsaved holds translations computed but not persisted after a save failure
	Unsaved []Translation

	Batches int
	// Calls counts answered backend calls, repairs included
	Calls    int
	Usage    translator.TokenUsage
	Cost     translator.Cost
	Duration time.Duration
}

// FailedKeys returns the keys of failed phrases in input order
func (r *Report) FailedKeys() []string {
	keys := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		keys[i] = f.Key
	}
	return keys
}

// Translations returns accepted translations by key
func (r *Report) Translations() map[string]string {
	m := make(map[string]string, len(r.Translated))
	for _, t := range r.Translated {
		m[t.Key] = t.Text
	}
	return m
}

func (r *Report) account(resp *translator.Response) {
	if resp == nil {
		return
	}
	r.Calls++
	r.Usage.Add(resp.TokensUsed)
	r.Cost.Add(resp.Cost)
}
