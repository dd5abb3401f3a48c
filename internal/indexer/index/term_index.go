package index

import (
	"fmt"
	"iter"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

// Term is one canonical indexing unit with its aggregate frequency and its
// postings store.
type Term struct {
	text      string
	frequency int
	postings  *PostingsStore
}

func newTerm(text string) *Term {
	return &Term{text: text, postings: NewPostingsStore()}
}

func (t *Term) Text() string { return t.text }

// Frequency is the sum of the term's frequencies over all documents.
func (t *Term) Frequency() int { return t.frequency }

// DocumentFrequency is the number of distinct documents holding the term.
func (t *Term) DocumentFrequency() int { return t.postings.Len() }

func (t *Term) Postings() *PostingsStore { return t.postings }

func (t *Term) String() string {
	return fmt.Sprintf("Term(%s, Frequency: %d, Postings: %v)", t.text, t.frequency, t.postings.Postings())
}

// DictEntry pairs a term with its document frequency.
type DictEntry struct {
	Term    string `json:"t"`
	DocFreq int    `json:"d"`
}

// Dictionary is sorted by term, byte-wise, which for UTF-8 is code point
// order.
type Dictionary []DictEntry

// Lookup returns the document frequency of term.
func (d Dictionary) Lookup(term string) (int, bool) {
	i := sort.Search(len(d), func(i int) bool {
		return d[i].Term >= term
	})
	if i >= len(d) || d[i].Term != term {
		return 0, false
	}
	return d[i].DocFreq, true
}

// Terms returns the dictionary's terms in order.
func (d Dictionary) Terms() []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Term
	}
	return out
}

// TermIndex maps term strings to Terms. It accepts occurrences until
// Finalize seals it; afterwards it is read-only and safe for concurrent
// readers.
type TermIndex struct {
	terms  map[string]*Term
	dict   Dictionary
	sealed bool
}

// NewTermIndex returns an empty, unsealed index.
func NewTermIndex() *TermIndex {
	return &TermIndex{terms: make(map[string]*Term)}
}

// Record adds one positional occurrence of term in document id.
func (x *TermIndex) Record(term string, id document.ID, pos int) error {
	return x.add(term, id, pos, true)
}

// RecordCount adds one occurrence of term in document id without a position.
func (x *TermIndex) RecordCount(term string, id document.ID) error {
	return x.add(term, id, 0, false)
}

func (x *TermIndex) add(term string, id document.ID, pos int, tracked bool) error {
	if x.sealed {
		return fmt.Errorf("recording %q: %w", term, apperrors.ErrIndexSealed)
	}
	t, ok := x.terms[term]
	if !ok {
		t = newTerm(term)
		x.terms[term] = t
	}
	t.frequency++
	t.postings.record(id, pos, tracked)
	return nil
}

// Term returns the entry for text.
func (x *TermIndex) Term(text string) (*Term, bool) {
	t, ok := x.terms[text]
	return t, ok
}

// Len returns the vocabulary size.
func (x *TermIndex) Len() int {
	return len(x.terms)
}

// Terms returns every term sorted.
func (x *TermIndex) Terms() []string {
	out := make([]string, 0, len(x.terms))
	for term := range x.terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// All yields terms in dictionary order.
func (x *TermIndex) All() iter.Seq2[string, *Term] {
	return func(yield func(string, *Term) bool) {
		for _, term := range x.Terms() {
			if !yield(term, x.terms[term]) {
				return
			}
		}
	}
}

// Finalize seals the index and materializes the dictionary. Calling it again
// returns the same dictionary.
func (x *TermIndex) Finalize() Dictionary {
	if x.sealed {
		return x.dict
	}
	terms := x.Terms()
	dict := make(Dictionary, len(terms))
	for i, term := range terms {
		dict[i] = DictEntry{Term: term, DocFreq: x.terms[term].DocumentFrequency()}
	}
	x.dict = dict
	x.sealed = true
	return dict
}

// Dictionary returns the dictionary materialized by Finalize, or nil before.
func (x *TermIndex) Dictionary() Dictionary {
	return x.dict
}

// Sealed reports whether Finalize has run.
func (x *TermIndex) Sealed() bool {
	return x.sealed
}
