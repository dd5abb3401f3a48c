package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// StopwordSet is a membership test over normalized terms.
type StopwordSet map[string]struct{}

// Contains reports whether term is a stop-word.
func (s StopwordSet) Contains(term string) bool {
	_, ok := s[term]
	return ok
}

// Words returns the set's members sorted.
func (s StopwordSet) Words() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// NewStopwordSet normalizes words with n and collects the non-empty results.
func NewStopwordSet(n Normalizer, words ...string) StopwordSet {
	set := make(StopwordSet, len(words))
	for _, w := range words {
		if term := n.Normalize(strings.TrimSpace(w)); term != "" {
			set[term] = struct{}{}
		}
	}
	return set
}

// ReadStopwords reads one stop-word per line.
func ReadStopwords(r io.Reader, n Normalizer) (StopwordSet, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords: %w", err)
	}
	return NewStopwordSet(n, words...), nil
}

// LoadStopwords reads the stop-word file at path.
func LoadStopwords(path string, n Normalizer) (StopwordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()
	return ReadStopwords(f, n)
}

// DefaultStopwords is the built-in English list used when no stop-word file
// is available.
func DefaultStopwords(n Normalizer) StopwordSet {
	return NewStopwordSet(n,
		"a", "an", "and", "are", "as", "at",
		"be", "by", "for", "from", "has", "he",
		"in", "is", "it", "its", "of", "on",
		"or", "that", "the", "to", "was", "were",
		"will", "with", "this", "but", "they",
		"have", "had", "what", "when", "where",
		"who", "which", "their", "if", "each",
		"do", "not", "no", "so", "can",
	)
}
