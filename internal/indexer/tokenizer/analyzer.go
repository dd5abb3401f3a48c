package tokenizer

import (
	"fmt"
	"iter"
)

// Settings is the serializable description of an Analyzer. A snapshot
// carries the settings it was built with so queries analyze input the same
// way.
type Settings struct {
	DigitPolicy string `json:"digit_policy"`
	// Stemmer names the stemmer; empty disables stemming.
	Stemmer string `json:"stemmer,omitempty"`
	// Stopwords lists normalized stop-words; empty disables filtering.
	Stopwords []string `json:"stopwords,omitempty"`
}

// Occurrence is one indexable term at its token-slot position.
type Occurrence struct {
	Term     string
	Position int
}

// Analyzer chains Tokenizer, Normalizer, the optional stop-word filter and
// the optional Stemmer.
type Analyzer struct {
	settings   Settings
	tokenizer  Tokenizer
	normalizer Normalizer
	stopwords  StopwordSet
	stemmer    Stemmer
}

// NewAnalyzer builds an Analyzer from s.
func NewAnalyzer(s Settings) (*Analyzer, error) {
	policy, err := ParseDigitPolicy(s.DigitPolicy)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{
		settings:   s,
		normalizer: Normalizer{Digits: policy},
	}
	a.settings.DigitPolicy = policy.String()
	if len(s.Stopwords) > 0 {
		a.stopwords = NewStopwordSet(a.normalizer, s.Stopwords...)
	}
	if s.Stemmer != "" {
		stemmer, err := NewStemmer(s.Stemmer)
		if err != nil {
			return nil, fmt.Errorf("configuring analyzer: %w", err)
		}
		a.stemmer = stemmer
	}
	return a, nil
}

// Settings returns the settings the analyzer was built from.
func (a *Analyzer) Settings() Settings {
	return a.settings
}

// Occurrences yields every indexable term of text with its position. Empty
// normalizations and stop-words are skipped but still consume a position.
func (a *Analyzer) Occurrences(text string) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		pos := 0
		for token := range a.tokenizer.Tokens(text) {
			term, ok := a.Term(token)
			if ok && !yield(Occurrence{Term: term, Position: pos}) {
				return
			}
			pos++
		}
	}
}

// Analyze collects Occurrences and also returns the number of token slots.
func (a *Analyzer) Analyze(text string) ([]Occurrence, int) {
	var (
		out   []Occurrence
		slots int
	)
	for token := range a.tokenizer.Tokens(text) {
		if term, ok := a.Term(token); ok {
			out = append(out, Occurrence{Term: term, Position: slots})
		}
		slots++
	}
	return out, slots
}

// Term maps one raw token to its index term. It reports false when the token
// normalizes to nothing or is a stop-word.
func (a *Analyzer) Term(token string) (string, bool) {
	term := a.normalizer.Normalize(token)
	if term == "" {
		return "", false
	}
	if a.stopwords != nil && a.stopwords.Contains(term) {
		return "", false
	}
	if a.stemmer != nil {
		term = a.stemmer.Stem(term)
	}
	return term, term != ""
}
