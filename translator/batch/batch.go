// Package batch splits untranslated phrases into batches bounded by item
// count and by the estimated size of the payload the backend will see.
package batch

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ownlingo/phrasebatch/translator"
)

// Unit is the measure used for the size bound
type Unit int

const (
	Bytes Unit = iota
	Tokens
)

func (u Unit) String() string {
	if u == Tokens {
		return "tokens"
	}
	return "bytes"
}

// Limits bounds every batch produced by Plan. Zero or negative values disable a bound.
// MaxSize covers the compact JSON phrase array, the phrase-context array and
// the global context text. The prompt template around them and the indentation
// used when rendering the JSON are not counted.
type Limits struct {
	MaxItems int
	MaxSize  int
	Unit     Unit
}

// Plan greedily groups phrases into batches in input order. A phrase is added
// to the current batch while the batch stays within both bounds; otherwise the
// batch is closed and a new one starts with that phrase. A phrase that exceeds
// MaxSize on its own becomes a singleton batch.
func Plan(phrases []translator.Phrase, globalContext string, limits Limits) []translator.Batch {
	if len(phrases) == 0 {
		return nil
	}

	var batches []translator.Batch
	var current []translator.Phrase
	base := sizer{global: len(strings.TrimSpace(globalContext))}
	size := base

	for _, p := range phrases {
		if len(current) > 0 && !fits(&size, len(current), p, limits) {
			batches = append(batches, translator.Batch{Phrases: current, Context: globalContext})
			current = nil
			size = base
		}
		size.add(len(current), p)
		current = append(current, p)
	}

	if len(current) > 0 {
		batches = append(batches, translator.Batch{Phrases: current, Context: globalContext})
	}

	return batches
}

func fits(s *sizer, count int, p translator.Phrase, limits Limits) bool {
	if limits.MaxItems > 0 && count >= limits.MaxItems {
		return false
	}
	if limits.MaxSize <= 0 {
		return true
	}
	next := *s
	next.add(count, p)
	return next.measure(limits.Unit) <= limits.MaxSize
}

// EstimateSize returns the size of the compact JSON phrase payload of phrases
// plus their per-phrase context payload, in the given unit
func EstimateSize(phrases []translator.Phrase, unit Unit) int {
	var s sizer
	for i, p := range phrases {
		s.add(i, p)
	}
	return s.measure(unit)
}

// EstimateBatch returns the size Plan measured b against: its phrase payload
// plus the global context
func EstimateBatch(b translator.Batch, unit Unit) int {
	s := sizer{global: len(strings.TrimSpace(b.Context))}
	for i, p := range b.Phrases {
		s.add(i, p)
	}
	return s.measure(unit)
}

// sizer tracks the encoded size of a batch incrementally. It matches the
// length of json-encoding the texts array and the phrase-context array, plus
// the global context once the batch holds a phrase.
type sizer struct {
	global   int
	texts    int
	contexts int
	items    int
	ctxItems int
}

func (s *sizer) add(index int, p translator.Phrase) {
	s.texts += encodedLen(p.Text)
	s.items++
	if p.Context != "" {
		s.contexts += encodedLen(translator.PhraseContext{Index: index, Phrase: p.Text, Context: p.Context})
		s.ctxItems++
	}
}

func (s sizer) bytes() int {
	if s.items == 0 {
		return 0
	}
	n := s.global + 2 + s.texts + s.items - 1
	if s.ctxItems > 0 {
		n += 2 + s.contexts + s.ctxItems - 1
	}
	return n
}

func (s sizer) measure(unit Unit) int {
	n := s.bytes()
	if unit == Tokens {
		if n == 0 {
			return 0
		}
		if n/4 == 0 {
			return 1
		}
		return n / 4
	}
	return n
}

func encodedLen(v any) int {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return 0
	}
	// Encode appends a newline
	return buf.Len() - 1
}
