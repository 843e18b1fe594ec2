package grammar

import (
	"log/slog"
	"strings"

	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

// ParagraphTokenizer implements the grammar for general books: chapter
// headings plus paragraphs delimited by layout (vertical gap, indent, page
// turn after a finished sentence). Paragraphs are emitted as VerseMarker
// tokens numbered from 1 within each chapter.
type ParagraphTokenizer struct {
	profile *profile.Profile
	logger  *slog.Logger

	paragraph int
	current   int // characters in the open paragraph
	prev      *types.Line
}

// NewParagraph creates a paragraph tokenizer.
func NewParagraph(p *profile.Profile, logger *slog.Logger) *ParagraphTokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParagraphTokenizer{
		profile: p,
		logger:  logger.With("component", "tokenizer", "grammar", p.Kind),
	}
}

// Tokenize classifies each line.
func (t *ParagraphTokenizer) Tokenize(lines []types.Line) []Token {
	tokens := make([]Token, 0, len(lines))
	for i := range lines {
		line := lines[i]
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		tokens = append(tokens, t.classify(line, text))
		t.prev = &lines[i]
	}
	return tokens
}

func (t *ParagraphTokenizer) classify(line types.Line, text string) Token {
	tok := Token{Kind: PlainText, Text: text, Raw: line.Text, Page: line.Page, Line: line.Index}

	if n, title, ok := MatchHeading(text); ok {
		t.paragraph, t.current = 0, 0
		t.prev = nil
		tok.Kind = ChapterMarker
		tok.Number = n
		tok.Text = title
		tok.Source = types.SourceHeading
		return tok
	}

	if b, ok := t.profile.Vocabulary.Lookup(text); ok {
		t.paragraph, t.current = 0, 0
		tok.Kind = BookHeader
		tok.Book = b
		return tok
	}

	if t.paragraph == 0 || t.isBreak(line, text) {
		t.paragraph++
		t.current = len(text)
		tok.Kind = VerseMarker
		tok.Number = t.paragraph
		return tok
	}

	t.current += len(text)
	return tok
}

// isBreak decides whether line opens a new paragraph.
func (t *ParagraphTokenizer) isBreak(line types.Line, text string) bool {
	prev := t.prev
	if prev == nil {
		return true
	}
	th := t.profile.Thresholds
	if t.current < th.MinParagraphChars {
		return false
	}

	if line.Page != prev.Page {
		return endsSentence(prev.Text) && startsSentence(text)
	}

	height := prev.Height()
	if height <= 0 {
		height = prev.FontSize
	}
	if height > 0 && line.Top-prev.Bottom > th.ParagraphGapRatio*height {
		return true
	}
	if line.Left-prev.Left > th.ParagraphIndent && endsSentence(prev.Text) {
		return true
	}
	return false
}

// MatchHeading recognises "Chapter 3—Title" and "CHAPTER IV" headings.
// It returns the chapter number and the heading title, if any.
func MatchHeading(text string) (int, string, bool) {
	if m := headingDashPattern.FindStringSubmatch(text); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return n, strings.TrimSpace(m[2]), true
		}
	}
	if m := headingUpperPattern.FindStringSubmatch(text); m != nil {
		if n := parseNumber(m[1]); n > 0 {
			return n, "", true
		}
	}
	return 0, "", false
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `"'”’)`)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}

func startsSentence(s string) bool {
	s = strings.TrimLeft(s, `"'“‘(`)
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
