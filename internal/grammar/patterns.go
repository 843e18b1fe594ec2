package grammar

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	versePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d{1,3})\s+([A-Za-z].*)`),
		regexp.MustCompile(`^(\d{1,3})[:.]\s+([A-Za-z].*)`),
		regexp.MustCompile(`^\(?(\d{1,3})\)?\s+([A-Za-z].*)`),
	}
	standaloneNumber = regexp.MustCompile(`^\d{1,3}$`)
	referencePattern = regexp.MustCompile(`\d+:\d+`)
	// inlineMarker finds "<n> <Capitalised>" after sentence punctuation or a space.
	inlineMarker = regexp.MustCompile(`(?:^|[\s;:.,!?'"])(\d{1,3})\s+([A-Z][A-Za-z]*)`)

	headingDashPattern  = regexp.MustCompile(`^Chapter\s+(\d+|[IVXLCDM]+)\s*[—–\-:]\s*(.*)$`)
	headingUpperPattern = regexp.MustCompile(`^CHAPTER\s+(\d+|[IVXLCDM]+)\.?\s*$`)
)

// MatchVerse reports whether text starts with a unit marker in [min, max] and
// returns the number and the text after it.
func MatchVerse(text string, min, max int) (int, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}
	for _, re := range versePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < min || n > max {
			continue
		}
		return n, strings.TrimSpace(m[2]), true
	}
	return 0, "", false
}

// SplitInline looks for an embedded marker numbered want inside text. It
// returns the text before and after the marker. Only the exact successor
// number is accepted, which keeps numerals in prose from splitting units.
func SplitInline(text string, want int) (string, string, bool) {
	if want <= 1 {
		return "", "", false
	}
	for _, loc := range inlineMarker.FindAllStringSubmatchIndex(text, -1) {
		numStart, numEnd := loc[2], loc[3]
		if numStart == 0 {
			continue
		}
		n, err := strconv.Atoi(text[numStart:numEnd])
		if err != nil || n != want {
			continue
		}
		before := strings.TrimSpace(text[:numStart])
		after := strings.TrimSpace(text[numEnd:])
		if before == "" || after == "" {
			continue
		}
		return before, after, true
	}
	return "", "", false
}

// ParseRoman converts a roman numeral to an integer. It returns 0 for
// malformed input.
func ParseRoman(s string) int {
	values := map[rune]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	total, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := values[rune(s[i])]
		if !ok {
			return 0
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total
}

// parseNumber accepts arabic or roman numerals.
func parseNumber(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return ParseRoman(s)
}

var titleConnectors = map[string]bool{
	"of": true, "the": true, "and": true, "to": true, "a": true, "an": true,
	"by": true, "according": true, "called": true, "book": true, "gospel": true,
	"epistle": true, "letter": true, "first": true, "second": true, "third": true,
	"fourth": true, "saint": true, "st": true, "or": true, "commonly": true,
}

// titleLike reports whether every word is capitalised, numeric or a connector.
func titleLike(text string) bool {
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, `.,;:!?'"()[]`)
		if w == "" {
			continue
		}
		r := []rune(w)[0]
		if !unicode.IsLetter(r) || unicode.IsUpper(r) {
			continue
		}
		if !titleConnectors[strings.ToLower(w)] {
			return false
		}
	}
	return true
}
