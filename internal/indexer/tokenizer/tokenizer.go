// Package tokenizer provides text analysis for the index builder and the
// query side. It splits text into token slots, normalizes each token,
// optionally drops stop-words and optionally stems what remains. Positions
// always count token slots, so skipped tokens still advance them.
package tokenizer

import (
	"iter"
	"slices"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text on whitespace and punctuation. Runs of letters,
// digits and combining marks form one token; every other non-space rune is
// a token on its own. The sequence is deterministic and follows source order.
type Tokenizer struct{}

// Tokens returns a lazy sequence of raw tokens. Ranging over it again
// re-scans text from the start.
func (Tokenizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			switch {
			case isWordRune(r):
				if start < 0 {
					start = i
				}
				continue
			case start >= 0:
				if !yield(text[start:i]) {
					return
				}
				start = -1
			}
			if unicode.IsSpace(r) || r == utf8.RuneError {
				continue
			}
			if !yield(text[i : i+utf8.RuneLen(r)]) {
				return
			}
		}
		if start >= 0 {
			yield(text[start:])
		}
	}
}

// Tokenize collects Tokens into a slice.
func (t Tokenizer) Tokenize(text string) []string {
	return slices.Collect(t.Tokens(text))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
