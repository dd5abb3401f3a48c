package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

func newQueryEngine(t *testing.T, positions bool, s tokenizer.Settings, docs ...document.Document) *Engine {
	t.Helper()
	a, err := tokenizer.NewAnalyzer(s)
	require.NoError(t, err)
	b, err := indexer.NewEngine(indexer.Options{Analyzer: a, TrackPositions: positions})
	require.NoError(t, err)
	res, err := b.Build(context.Background(), docs)
	require.NoError(t, err)
	e, err := New(segment.NewSnapshot(res))
	require.NoError(t, err)
	return e
}

func TestContextSummaryScenario(t *testing.T) {
	e := newQueryEngine(t, true, tokenizer.Settings{}, document.Document{ID: 1, Body: "A B A"})

	w, err := e.ContextSummary(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, w.Words())
	assert.Equal(t, 1, w.Anchor)
	assert.Equal(t, "b [a]", w.String())

	w, err = e.ContextSummary(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, w.Words())

	_, err = e.ContextSummary(1, 7, 1)
	assert.ErrorIs(t, err, apperrors.ErrPositionNotFound)

	_, err = e.ContextSummary(9, 0, 1)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestSummaryAroundFirstOccurrence(t *testing.T) {
	body := "one two three four five six seven target eight nine ten eleven twelve thirteen target"
	e := newQueryEngine(t, true, tokenizer.Settings{}, document.Document{ID: 5, Title: "Count", Body: body})

	w, err := e.Summary("target", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four", "five", "six", "seven", "target", "eight", "nine", "ten", "eleven", "twelve"}, w.Words())
	assert.Equal(t, 7, w.Terms[w.Anchor].Position)
}

func TestSummarySkipsStopwordSlots(t *testing.T) {
	e := newQueryEngine(t, true, tokenizer.Settings{Stopwords: []string{"the"}},
		document.Document{ID: 1, Body: "the cat the dog"})

	w, err := e.Summary("dog", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []TermAt{{Term: "cat", Position: 1}, {Term: "dog", Position: 3}}, w.Terms)
}

func TestSummaryOverMergedDocument(t *testing.T) {
	e := newQueryEngine(t, true, tokenizer.Settings{},
		document.Document{ID: 1, Body: "A B"},
		document.Document{ID: 1, Body: "C A"},
	)

	w, err := e.Summary("c", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "b [c] a", w.String())

	entries, err := e.Reconstruct(1)
	require.NoError(t, err)
	assert.Equal(t, []TermAt{{"a", 0}, {"b", 1}, {"c", 2}, {"a", 3}}, entries)
}

func TestSearchAndLookup(t *testing.T) {
	e := newQueryEngine(t, true, tokenizer.Settings{Stemmer: "snowball", Stopwords: []string{"the"}},
		document.Document{ID: 2, Title: "Running", Body: "running dogs"},
		document.Document{ID: 1, Title: "Dog", Body: "the dog runs"},
	)

	res, err := e.Search("  Dogs ")
	require.NoError(t, err)
	assert.Equal(t, "dog", res.Term)
	assert.Equal(t, 2, res.DocumentFrequency)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, document.ID(1), res.Hits[0].DocID)
	assert.Equal(t, "Dog", res.Hits[0].Title)
	assert.Equal(t, []int{1}, res.Hits[0].Positions)

	_, err = e.Search("the")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)
	_, err = e.Search("zebra")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)
	_, err = e.Lookup("dogs")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)
}

func TestTermInDocumentAndDocumentTerms(t *testing.T) {
	e := newQueryEngine(t, true, tokenizer.Settings{},
		document.Document{ID: 1, Body: "A B A"},
		document.Document{ID: 2, Body: "c b"},
	)

	p, err := e.TermInDocument("a", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, []int{0, 2}, p.Positions)

	_, err = e.TermInDocument("a", 2)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	terms, err := e.DocumentTerms(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, terms)

	_, err = e.DocumentTerms(3)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestSummaryWithoutPositions(t *testing.T) {
	e := newQueryEngine(t, false, tokenizer.Settings{}, document.Document{ID: 1, Body: "A B A"})
	_, err := e.Summary("a", 1, 5)
	assert.ErrorIs(t, err, apperrors.ErrPositionNotFound)

	res, err := e.Search("a")
	require.NoError(t, err)
	assert.Nil(t, res.Hits[0].Positions)
	assert.Equal(t, 2, res.Hits[0].Frequency)
}

func BenchmarkContextSummary(b *testing.B) {
	docs := make([]document.Document, 200)
	for i := range docs {
		docs[i] = document.Document{ID: document.ID(i + 1), Body: "the quick brown fox jumps over the lazy dog again and again"}
	}
	a, _ := tokenizer.NewAnalyzer(tokenizer.Settings{})
	builder, _ := indexer.NewEngine(indexer.Options{Analyzer: a, TrackPositions: true})
	res, err := builder.Build(context.Background(), docs)
	if err != nil {
		b.Fatal(err)
	}
	e, _ := New(segment.NewSnapshot(res))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Summary("fox", document.ID(i%200+1), 5); err != nil {
			b.Fatal(err)
		}
	}
}
