package tokenizer

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer reduces a normalized term to a root form. Implementations must be
// deterministic and free of external state.
type Stemmer interface {
	Stem(term string) string
}

// StemmerFunc adapts a plain function to Stemmer.
type StemmerFunc func(string) string

func (f StemmerFunc) Stem(term string) string { return f(term) }

// NewStemmer returns the stemmer registered under name.
func NewStemmer(name string) (Stemmer, error) {
	switch name {
	case "", "snowball":
		return NewSnowballStemmer("english"), nil
	case "suffix":
		return StemmerFunc(suffixStem), nil
	}
	return nil, fmt.Errorf("unknown stemmer %q", name)
}

// SnowballStemmer stems with the Snowball algorithm for one language.
type SnowballStemmer struct {
	language string
}

func NewSnowballStemmer(language string) *SnowballStemmer {
	return &SnowballStemmer{language: language}
}

func (s *SnowballStemmer) Stem(term string) string {
	stemmed, err := snowball.Stem(term, s.language, true)
	if err != nil || stemmed == "" {
		return term
	}
	return stemmed
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// suffixStem strips the first matching suffix rule, a cheaper and cruder
// alternative to Snowball.
func suffixStem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
