package assemble

import (
	"strings"
	"unicode/utf8"
)

// Reason names the rule that decided a reconciliation.
type Reason string

const (
	ReasonLength  Reason = "length"
	ReasonHeaders Reason = "header_tokens"
	ReasonLexical Reason = "lexical"
	ReasonEqual   Reason = "identical"
)

// Reconcile picks between two candidate texts for the same unit key. The
// result does not depend on argument order: the longer text wins when it
// exceeds ratio times the other, then the text with fewer header-like
// tokens, then the lexicographically smaller text.
func Reconcile(a, b string, headerTokens []string, ratio float64) (winner, loser string, reason Reason) {
	if a == b {
		return a, b, ReasonEqual
	}

	la, lb := float64(utf8.RuneCountInString(a)), float64(utf8.RuneCountInString(b))
	switch {
	case la > lb*ratio:
		return a, b, ReasonLength
	case lb > la*ratio:
		return b, a, ReasonLength
	}

	ha, hb := HeaderScore(a, headerTokens), HeaderScore(b, headerTokens)
	switch {
	case ha < hb:
		return a, b, ReasonHeaders
	case hb < ha:
		return b, a, ReasonHeaders
	}

	if a < b {
		return a, b, ReasonLexical
	}
	return b, a, ReasonLexical
}

// HeaderScore counts occurrences of header-like tokens in text, compared
// upper-case.
func HeaderScore(text string, headerTokens []string) int {
	upper := strings.ToUpper(text)
	n := 0
	for _, tok := range headerTokens {
		if tok == "" {
			continue
		}
		n += strings.Count(upper, tok)
	}
	return n
}
