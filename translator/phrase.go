package translator

import "context"

// Phrase is one key/text pair of the base language set
type Phrase struct {
	Key     string
	Text    string
	Context string
}

// Batch is an ordered group of phrases sent to the backend in one call
type Batch struct {
	Phrases []Phrase
	// Context is the global translation context shared by every batch of a run
	Context string
}

// PhraseContext is a per-phrase context referenced by position in its batch
type PhraseContext struct {
	Index   int    `json:"index"`
	Phrase  string `json:"phrase"`
	Context string `json:"context"`
}

// Len returns the number of phrases in the batch
func (b *Batch) Len() int {
	return len(b.Phrases)
}

// Texts returns the phrase texts in batch order
func (b *Batch) Texts() []string {
	texts := make([]string, len(b.Phrases))
	for i, p := range b.Phrases {
		texts[i] = p.Text
	}
	return texts
}

// Keys returns the phrase keys in batch order
func (b *Batch) Keys() []string {
	keys := make([]string, len(b.Phrases))
	for i, p := range b.Phrases {
		keys[i] = p.Key
	}
	return keys
}

// PhraseContexts returns the contexts of phrases that carry one, in batch order
func (b *Batch) PhraseContexts() []PhraseContext {
	var out []PhraseContext
	for i, p := range b.Phrases {
		if p.Context == "" {
			continue
		}
		out = append(out, PhraseContext{Index: i, Phrase: p.Text, Context: p.Context})
	}
	return out
}

// Slice returns a batch holding phrases [from, to) with the same global context
func (b *Batch) Slice(from, to int) Batch {
	return Batch{Phrases: b.Phrases[from:to], Context: b.Context}
}

// Store persists accepted translations for one destination language.
// Save is called once per accepted phrase and must be durable on return.
type Store interface {
	HasTranslation(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key, text string) error
}
