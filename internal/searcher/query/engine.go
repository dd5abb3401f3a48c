// Package query answers point queries against a loaded snapshot: term
// lookup, the terms of one document, and context windows rebuilt purely from
// stored positions.
package query

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

// Engine is read-only and safe for concurrent use.
type Engine struct {
	snap     *segment.Snapshot
	analyzer *tokenizer.Analyzer
	logger   *slog.Logger
}

// New builds an engine over s, analyzing query input the way s was built.
func New(s *segment.Snapshot) (*Engine, error) {
	a, err := tokenizer.NewAnalyzer(s.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("restoring analyzer: %w", err)
	}
	return &Engine{
		snap:     s,
		analyzer: a,
		logger:   slog.Default().With("component", "query"),
	}, nil
}

// Snapshot returns the snapshot the engine serves.
func (e *Engine) Snapshot() *segment.Snapshot {
	return e.snap
}

// Lookup returns the entry for an already canonical term.
func (e *Engine) Lookup(term string) (*index.Term, error) {
	t, ok := e.snap.Index.Term(term)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrTermNotFound, term)
	}
	return t, nil
}

// Canonical maps raw user input to the first term it would have been
// indexed as. Input that analyzes to nothing, a stop-word for instance, is
// ErrTermNotFound.
func (e *Engine) Canonical(input string) (string, error) {
	for o := range e.analyzer.Occurrences(input) {
		return o.Term, nil
	}
	return "", fmt.Errorf("%w: %q is not an indexable term", apperrors.ErrTermNotFound, strings.TrimSpace(input))
}

// Hit is one document holding a term.
type Hit struct {
	DocID     document.ID `json:"doc_id"`
	Title     string      `json:"title"`
	Frequency int         `json:"term_frequency"`
	Positions []int       `json:"positions,omitempty"`
}

// TermResult is a term with every document that holds it.
type TermResult struct {
	Term              string `json:"term"`
	DocumentFrequency int    `json:"document_frequency"`
	Frequency         int    `json:"frequency"`
	Hits              []Hit  `json:"documents"`
}

// Search analyzes input, looks the term up and describes its postings.
func (e *Engine) Search(input string) (TermResult, error) {
	term, err := e.Canonical(input)
	if err != nil {
		return TermResult{}, err
	}
	t, err := e.Lookup(term)
	if err != nil {
		return TermResult{}, err
	}
	return e.Describe(t), nil
}

// Describe expands t into a TermResult with document titles.
func (e *Engine) Describe(t *index.Term) TermResult {
	res := TermResult{
		Term:              t.Text(),
		DocumentFrequency: t.DocumentFrequency(),
		Frequency:         t.Frequency(),
		Hits:              make([]Hit, 0, t.DocumentFrequency()),
	}
	for p := range t.Postings().All() {
		d, _ := e.snap.Collection.Get(p.DocID)
		res.Hits = append(res.Hits, Hit{
			DocID:     p.DocID,
			Title:     d.Title,
			Frequency: p.Frequency,
			Positions: p.Positions,
		})
	}
	return res
}

// Document returns the stored document with id.
func (e *Engine) Document(id document.ID) (document.Document, error) {
	d, ok := e.snap.Collection.Get(id)
	if !ok {
		return document.Document{}, fmt.Errorf("%w: document %d", apperrors.ErrDocumentNotFound, id)
	}
	return d, nil
}

// TermInDocument returns the posting of term in document id.
func (e *Engine) TermInDocument(term string, id document.ID) (index.Posting, error) {
	t, err := e.Lookup(term)
	if err != nil {
		return index.Posting{}, err
	}
	p, err := t.Postings().Lookup(id)
	if err != nil {
		return index.Posting{}, fmt.Errorf("term %q: %w", term, err)
	}
	return p, nil
}

// DocumentTerms returns every term present in document id, sorted. It scans
// the whole vocabulary.
func (e *Engine) DocumentTerms(id document.ID) ([]string, error) {
	if !e.snap.Collection.Contains(id) {
		return nil, fmt.Errorf("%w: document %d", apperrors.ErrDocumentNotFound, id)
	}
	var out []string
	for text, t := range e.snap.Index.All() {
		if t.Postings().Contains(id) {
			out = append(out, text)
		}
	}
	return out, nil
}

// TermAt is one term at one position of a document.
type TermAt struct {
	Term     string `json:"term"`
	Position int    `json:"position"`
}

// Window is a run of a document's terms in position order around an anchor.
type Window struct {
	Terms  []TermAt `json:"terms"`
	Anchor int      `json:"anchor"`
}

// Words returns the window's terms without positions.
func (w Window) Words() []string {
	out := make([]string, len(w.Terms))
	for i, t := range w.Terms {
		out[i] = t.Term
	}
	return out
}

// String joins the window's terms with the anchor in brackets.
func (w Window) String() string {
	var sb strings.Builder
	for i, t := range w.Terms {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == w.Anchor {
			sb.WriteString("[" + t.Term + "]")
		} else {
			sb.WriteString(t.Term)
		}
	}
	return sb.String()
}

// Reconstruct returns every (term, position) pair of document id sorted by
// position.
func (e *Engine) Reconstruct(id document.ID) ([]TermAt, error) {
	if !e.snap.TrackPositions {
		return nil, fmt.Errorf("%w: index was built without positions", apperrors.ErrPositionNotFound)
	}
	var out []TermAt
	for text, t := range e.snap.Index.All() {
		positions, err := t.Postings().PositionsOf(id)
		if err != nil {
			continue
		}
		for _, pos := range positions {
			out = append(out, TermAt{Term: text, Position: pos})
		}
	}
	if len(out) == 0 && !e.snap.Collection.Contains(id) {
		return nil, fmt.Errorf("%w: document %d", apperrors.ErrDocumentNotFound, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out, nil
}

// ContextSummary returns the terms of document id within radius entries of
// the first entry at anchor, clamped to the document.
func (e *Engine) ContextSummary(id document.ID, anchor, radius int) (Window, error) {
	if radius < 0 {
		return Window{}, fmt.Errorf("%w: negative radius %d", apperrors.ErrInvalidInput, radius)
	}
	entries, err := e.Reconstruct(id)
	if err != nil {
		return Window{}, err
	}
	at := -1
	for i, entry := range entries {
		if entry.Position == anchor {
			at = i
			break
		}
	}
	if at < 0 {
		return Window{}, fmt.Errorf("%w: document %d has no term at position %d", apperrors.ErrPositionNotFound, id, anchor)
	}
	lo := max(at-radius, 0)
	hi := min(at+radius, len(entries)-1)
	return Window{
		Terms:  append([]TermAt(nil), entries[lo:hi+1]...),
		Anchor: at - lo,
	}, nil
}

// Summary centres a window on the first occurrence of term in document id.
func (e *Engine) Summary(term string, id document.ID, radius int) (Window, error) {
	p, err := e.TermInDocument(term, id)
	if err != nil {
		return Window{}, err
	}
	if !p.Positional() {
		return Window{}, fmt.Errorf("%w: index was built without positions", apperrors.ErrPositionNotFound)
	}
	return e.ContextSummary(id, p.Positions[0], radius)
}
