package grammar

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

// ScriptureTokenizer implements the verse grammar. Precedence, highest first:
// verse marker, book header, chapter marker, plain text. Later rules assume the
// earlier ones already removed their candidates.
type ScriptureTokenizer struct {
	profile   *profile.Profile
	chapterRe *regexp.Regexp
	logger    *slog.Logger

	// bookSeen enables the standalone-number chapter rule.
	bookSeen bool
	// restrict, when set, limits book headers to one book.
	restrict *profile.Book
}

// NewScripture creates a tokenizer for the scripture grammar.
func NewScripture(p *profile.Profile, logger *slog.Logger) *ScriptureTokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	words := p.ChapterWords
	if len(words) == 0 {
		words = []string{"chapter"}
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return &ScriptureTokenizer{
		profile:   p,
		chapterRe: regexp.MustCompile(`(?i)^(?:` + strings.Join(quoted, "|") + `)\s+(\d{1,3}|[ivxlcdm]{1,8})\b`),
		logger:    logger.With("component", "tokenizer", "grammar", p.Kind),
	}
}

// Restrict limits book header detection to b. Headers naming any other book
// are tokenized as plain text. Used for TOC-bounded extraction where the
// page range already identifies the book.
func (t *ScriptureTokenizer) Restrict(b profile.Book) {
	t.restrict = &b
	t.bookSeen = true
}

// Tokenize classifies each line. Blank lines produce no token.
func (t *ScriptureTokenizer) Tokenize(lines []types.Line) []Token {
	tokens := make([]Token, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		tok := t.Classify(line)
		if tok.Kind == BookHeader {
			t.bookSeen = true
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Classify tags one line.
func (t *ScriptureTokenizer) Classify(line types.Line) Token {
	text := strings.TrimSpace(line.Text)
	tok := Token{Kind: PlainText, Text: text, Raw: line.Text, Page: line.Page, Line: line.Index}
	th := t.profile.Thresholds

	// An exact book name such as "1 John" is a header, not verse 1.
	_, exactBook := t.profile.Vocabulary.Lookup(text)

	// Rule 1: verse marker wins. Detection does not require book context so
	// that a header followed directly by verse 1 bootstraps.
	if !exactBook {
		if n, rest, ok := MatchVerse(text, th.MinNumber, th.MaxNumber); ok {
			tok.Kind = VerseMarker
			tok.Number = n
			tok.Text = rest
			return tok
		}
	}

	// Rule 2: book header.
	if b, ok := t.matchHeader(text); ok {
		if t.restrict == nil || t.restrict.Name == b.Name {
			tok.Kind = BookHeader
			tok.Book = b
			return tok
		}
		t.logger.Debug("header outside bounded range ignored", "book", b.Name, "range_book", t.restrict.Name, "page", line.Page)
	}

	// Rule 3: chapter marker.
	if n, ok := t.matchChapter(text); ok {
		tok.Kind = ChapterMarker
		tok.Number = n
		tok.Source = types.SourceMarker
		return tok
	}

	return tok
}

func (t *ScriptureTokenizer) matchHeader(text string) (profile.Book, bool) {
	vocab := t.profile.Vocabulary
	if b, ok := vocab.Lookup(text); ok {
		return b, true
	}
	if referencePattern.MatchString(text) {
		return profile.Book{}, false
	}
	if len(strings.Fields(text)) > t.profile.Thresholds.HeaderMaxWords || !titleLike(text) {
		return profile.Book{}, false
	}
	return vocab.Match(text)
}

func (t *ScriptureTokenizer) matchChapter(text string) (int, bool) {
	th := t.profile.Thresholds
	if m := t.chapterRe.FindStringSubmatch(text); m != nil {
		n := parseNumber(m[1])
		if n >= th.MinNumber && n <= th.MaxNumber {
			return n, true
		}
		return 0, false
	}
	if t.bookSeen && standaloneNumber.MatchString(text) {
		n := parseNumber(text)
		if n >= th.MinNumber && n <= th.MaxNumber {
			return n, true
		}
	}
	return 0, false
}

// New returns the grammar for a profile.
func New(p *profile.Profile, logger *slog.Logger) Grammar {
	if p.Kind == profile.KindParagraph {
		return NewParagraph(p, logger)
	}
	return NewScripture(p, logger)
}
