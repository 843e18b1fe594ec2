// Package grammar classifies assembled lines into structural tokens.
package grammar

import (
	"fmt"

	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

// Kind is the grammar tag of a token.
type Kind int

const (
	PlainText Kind = iota
	BookHeader
	ChapterMarker
	VerseMarker
)

// String returns the tag name.
func (k Kind) String() string {
	switch k {
	case BookHeader:
		return "book_header"
	case ChapterMarker:
		return "chapter_marker"
	case VerseMarker:
		return "verse_marker"
	default:
		return "text"
	}
}

// Token is the Pass 1 output for one line.
type Token struct {
	Kind Kind
	// Book is set for BookHeader tokens.
	Book profile.Book
	// Number is the chapter or unit number for markers.
	Number int
	// Text is the unit text after the marker for VerseMarker, the heading
	// title for ChapterMarker and the full line otherwise.
	Text string
	// Raw is the original line text.
	Raw    string
	Page   int
	Line   int
	Source types.DetectionSource
}

// String renders the token for logs and test failures.
func (t Token) String() string {
	switch t.Kind {
	case BookHeader:
		return fmt.Sprintf("%s(%s)@%d:%d", t.Kind, t.Book.Name, t.Page, t.Line)
	case ChapterMarker:
		return fmt.Sprintf("%s(%d)@%d:%d", t.Kind, t.Number, t.Page, t.Line)
	case VerseMarker:
		return fmt.Sprintf("%s(%d,%q)@%d:%d", t.Kind, t.Number, t.Text, t.Page, t.Line)
	default:
		return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Page, t.Line)
	}
}

// Header returns a synthetic BookHeader token, used when a book's extent is
// already known from the table of contents.
func Header(b profile.Book, page int) Token {
	return Token{Kind: BookHeader, Book: b, Text: b.Name, Raw: b.Name, Page: page, Line: -1}
}

// Grammar turns ordered lines into ordered tokens.
type Grammar interface {
	Tokenize(lines []types.Line) []Token
}
