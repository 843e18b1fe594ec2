// Package textutil holds the text clean-up and chunking helpers shared by
// the assembler and the artifact writer.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	footnoteRef = regexp.MustCompile(`\[\d{1,4}\]`)
	hyphenBreak = regexp.MustCompile(`\b([A-Za-z]{2,})-\s+([a-z]{2,})\b`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalize cleans extracted text: NFC composition, bracketed page or
// footnote references removed, line-break hyphenation repaired and
// whitespace collapsed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = footnoteRef.ReplaceAllString(s, " ")
	s = CollapseSpace(s)
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	return CollapseSpace(s)
}

// CollapseSpace replaces every whitespace run with one space and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// SplitSentences splits text after '.', '!' or '?' when the following
// whitespace is followed by a capital, digit, quote or parenthesis.
func SplitSentences(s string) []string {
	s = CollapseSpace(s)
	if s == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != '.' && r != '!' && r != '?' {
			i += size
			continue
		}
		end := i + size
		if end >= len(s) || s[end] != ' ' {
			i = end
			continue
		}
		next, _ := utf8.DecodeRuneInString(s[end+1:])
		if unicode.IsUpper(next) || unicode.IsDigit(next) || strings.ContainsRune(`"'(`, next) {
			out = append(out, strings.TrimSpace(s[start:end]))
			start = end + 1
		}
		i = end
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Chunk packs sentences into segments of at most max characters. A single
// sentence longer than max is hard split. Output depends only on input.
func Chunk(s string, max int) []string {
	s = CollapseSpace(s)
	if s == "" {
		return nil
	}
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	for _, sentence := range SplitSentences(s) {
		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+1+n > max {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += n
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}

	var out []string
	for _, c := range chunks {
		out = append(out, hardSplit(c, max)...)
	}
	return out
}

func hardSplit(s string, max int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var out []string
	for i := 0; i < len(runes); i += max {
		end := min(i+max, len(runes))
		if part := strings.TrimSpace(string(runes[i:end])); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Slug lower-cases s and joins alphanumeric runs with '-'.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
