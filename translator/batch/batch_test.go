package batch_test

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ownlingo/phrasebatch/translator"
	"github.com/ownlingo/phrasebatch/translator/batch"
)

func phrases(texts ...string) []translator.Phrase {
	out := make([]translator.Phrase, len(texts))
	for i, text := range texts {
		out[i] = translator.Phrase{Key: fmt.Sprintf("k%d", i), Text: text}
	}
	return out
}

func concat(batches []translator.Batch) []translator.Phrase {
	var out []translator.Phrase
	for _, b := range batches {
		out = append(out, b.Phrases...)
	}
	return out
}

func TestPlanBatchSizeLimit(t *testing.T) {
	input := phrases("Phrase1", "Phrase2", "Phrase3", "Phrase4", "Phrase5", "Phrase6")

	batches := batch.Plan(input, "", batch.Limits{MaxItems: 2, MaxSize: 10000})

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	for i, b := range batches {
		if b.Len() != 2 {
			t.Errorf("batch %d: expected 2 phrases, got %d", i, b.Len())
		}
	}

	if got := batches[1].Texts(); !reflect.DeepEqual(got, []string{"Phrase3", "Phrase4"}) {
		t.Errorf("unexpected second batch %v", got)
	}
}

func TestPlanByteLimit(t *testing.T) {
	// Each phrase encodes to 6 bytes; a batch of k phrases is 7k+1 bytes
	input := phrases("aaaa", "bbbb", "cccc", "dddd", "eeee")

	batches := batch.Plan(input, "", batch.Limits{MaxItems: 10, MaxSize: 15})

	var sizes []int
	for _, b := range batches {
		sizes = append(sizes, b.Len())
		if got := batch.EstimateSize(b.Phrases, batch.Bytes); got > 15 {
			t.Errorf("batch %v exceeds size bound: %d", b.Texts(), got)
		}
	}

	if !reflect.DeepEqual(sizes, []int{2, 2, 1}) {
		t.Errorf("expected batch sizes [2 2 1], got %v", sizes)
	}
}

func TestPlanOversizedPhrase(t *testing.T) {
	long := strings.Repeat("x", 200)
	input := phrases("Short", long, "Another short one")

	batches := batch.Plan(input, "", batch.Limits{MaxItems: 10, MaxSize: 40})

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	if batches[1].Len() != 1 || batches[1].Phrases[0].Text != long {
		t.Errorf("expected oversized phrase alone in its own batch, got %v", batches[1].Texts())
	}

	if !reflect.DeepEqual(concat(batches), input) {
		t.Error("expected every phrase to be kept in order")
	}
}

func TestPlanIncludesPhraseContexts(t *testing.T) {
	input := []translator.Phrase{
		{Key: "a", Text: "Open"},
		{Key: "b", Text: "Open", Context: "verb used on a file menu entry"},
	}

	withoutContext := batch.EstimateSize(input[:1], batch.Bytes)
	if withoutContext != len(`["Open"]`) {
		t.Errorf("expected %d bytes, got %d", len(`["Open"]`), withoutContext)
	}

	texts, _ := json.Marshal([]string{"Open", "Open"})
	if both := batch.EstimateSize(input, batch.Bytes); both <= len(texts) {
		t.Errorf("expected context to add to size: %d <= %d", both, len(texts))
	}

	// The context pushes the pair over a bound that the texts alone satisfy
	batches := batch.Plan(input, "", batch.Limits{MaxItems: 10, MaxSize: len(texts) + 5})
	if len(batches) != 2 {
		t.Errorf("expected context to force a split, got %d batches", len(batches))
	}
}

func TestPlanGlobalContextAttached(t *testing.T) {
	batches := batch.Plan(phrases("a", "b", "c"), "mobile app", batch.Limits{MaxItems: 2})

	for i, b := range batches {
		if b.Context != "mobile app" {
			t.Errorf("batch %d: expected global context, got %q", i, b.Context)
		}
	}
}

func TestPlanCountsGlobalContext(t *testing.T) {
	input := phrases("aa", "bb", "cc")

	// ["aa","bb"] is 11 bytes and fits on its own
	if got := batch.Plan(input, "", batch.Limits{MaxSize: 12}); len(got) != 2 {
		t.Fatalf("expected 2 batches without context, got %d", len(got))
	}

	batches := batch.Plan(input, "  ctx\n", batch.Limits{MaxSize: 12})
	if len(batches) != 3 {
		t.Fatalf("expected global context to force singleton batches, got %d", len(batches))
	}
	for i, b := range batches {
		if got := batch.EstimateBatch(b, batch.Bytes); got != 9 {
			t.Errorf("batch %d: expected size 9, got %d", i, got)
		}
	}
	if !reflect.DeepEqual(concat(batches), input) {
		t.Errorf("expected phrases in input order, got %v", concat(batches))
	}
}

func TestPlanTokenUnit(t *testing.T) {
	// 40 chars encodes to 42 bytes, about 10 tokens per phrase
	text := strings.Repeat("y", 40)
	input := phrases(text, text, text, text)

	batches := batch.Plan(input, "", batch.Limits{MaxItems: 100, MaxSize: 25, Unit: batch.Tokens})

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	for _, b := range batches {
		if got := batch.EstimateSize(b.Phrases, batch.Tokens); got > 25 {
			t.Errorf("batch exceeds token bound: %d", got)
		}
	}
}

func TestPlanEmpty(t *testing.T) {
	if got := batch.Plan(nil, "", batch.Limits{MaxItems: 5}); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestPlanPreservesOrderProperty(t *testing.T) {
	var texts []string
	for i := 0; i < 57; i++ {
		texts = append(texts, strings.Repeat("w", i%13+1))
	}
	input := phrases(texts...)

	for _, limits := range []batch.Limits{
		{MaxItems: 1},
		{MaxItems: 7},
		{MaxItems: 50, MaxSize: 30},
		{MaxItems: 3, MaxSize: 12},
		{MaxSize: 64, Unit: batch.Tokens},
		{},
	} {
		t.Run(fmt.Sprintf("%+v", limits), func(t *testing.T) {
			batches := batch.Plan(input, "", limits)

			if !reflect.DeepEqual(concat(batches), input) {
				t.Fatal("concatenated batches differ from input")
			}

			for i, b := range batches {
				if b.Len() == 0 {
					t.Fatalf("batch %d is empty", i)
				}
				if limits.MaxItems > 0 && b.Len() > limits.MaxItems {
					t.Errorf("batch %d has %d items, bound %d", i, b.Len(), limits.MaxItems)
				}
				if limits.MaxSize > 0 && b.Len() > 1 {
					if size := batch.EstimateSize(b.Phrases, limits.Unit); size > limits.MaxSize {
						t.Errorf("batch %d has size %d, bound %d", i, size, limits.MaxSize)
					}
				}
			}
		})
	}
}
