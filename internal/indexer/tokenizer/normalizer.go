package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

// DigitPolicy decides what normalization does with digit runes.
type DigitPolicy int

const (
	// DigitsKeep leaves digits in place: "b2b" and "1984" are both terms.
	DigitsKeep DigitPolicy = iota
	// DigitsStrip removes every digit: "b2b" becomes "bb", "1984" becomes empty.
	DigitsStrip
	// DigitsDropNumeric empties purely numeric tokens and leaves mixed ones
	// intact: "b2b" stays, "1984" becomes empty.
	DigitsDropNumeric
)

// ParseDigitPolicy maps the configuration spelling to a DigitPolicy.
func ParseDigitPolicy(s string) (DigitPolicy, error) {
	switch s {
	case "", "keep":
		return DigitsKeep, nil
	case "strip":
		return DigitsStrip, nil
	case "drop-numeric":
		return DigitsDropNumeric, nil
	}
	return DigitsKeep, fmt.Errorf("unknown digit policy %q", s)
}

func (p DigitPolicy) String() string {
	switch p {
	case DigitsStrip:
		return "strip"
	case DigitsDropNumeric:
		return "drop-numeric"
	default:
		return "keep"
	}
}

// Normalizer reduces a raw token to its canonical surface form.
type Normalizer struct {
	Digits DigitPolicy
}

// Normalize lower-cases token and keeps only letters and digits, subject to
// the digit policy. It returns "" when nothing survives.
func (n Normalizer) Normalize(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	letters := 0
	for _, r := range token {
		switch {
		case unicode.IsLetter(r):
			letters++
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsDigit(r):
			if n.Digits != DigitsStrip {
				b.WriteRune(r)
			}
		}
	}
	if n.Digits == DigitsDropNumeric && letters == 0 {
		return ""
	}
	return b.String()
}
