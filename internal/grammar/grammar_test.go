package grammar

import (
	"testing"

	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

func testbookProfile(t *testing.T) *profile.Profile {
	t.Helper()
	vocab, err := profile.NewVocabulary([]profile.Book{
		{Name: "TESTBOOK", ShortCode: "TST", Testament: "test", Order: 1, Genre: "test"},
		{Name: "1 John", ShortCode: "1JN", Testament: "test", Order: 2, Genre: "epistle"},
		{Name: "John", ShortCode: "JOH", Testament: "test", Order: 3, Genre: "gospel"},
		{Name: "Job", ShortCode: "JOB", Testament: "test", Order: 4, Genre: "poetry"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return profile.Scripture(vocab, profile.Thresholds{})
}

func line(page, idx int, text string) types.Line {
	return types.Line{Text: text, Page: page, Index: idx, Zone: types.ZoneBody}
}

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestScriptureTokenizeTestbook(t *testing.T) {
	tk := NewScripture(testbookProfile(t), nil)
	tokens := tk.Tokenize([]types.Line{
		line(1, 0, "TESTBOOK"),
		line(1, 1, "1 First sentence."),
		line(1, 2, "2 Second sentence."),
		line(2, 0, "2"),
		line(2, 1, "1 New chapter first verse."),
	})

	want := []Kind{BookHeader, VerseMarker, VerseMarker, ChapterMarker, VerseMarker}
	got := kinds(tokens)
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if tokens[1].Number != 1 || tokens[1].Text != "First sentence." {
		t.Errorf("unexpected verse token %v", tokens[1])
	}
	if tokens[3].Number != 2 || tokens[3].Source != types.SourceMarker {
		t.Errorf("unexpected chapter token %v", tokens[3])
	}
}

func TestScripturePrecedence(t *testing.T) {
	p := testbookProfile(t)

	tests := []struct {
		name     string
		text     string
		bookSeen bool
		kind     Kind
		number   int
	}{
		{"verse wins over header", "1 TESTBOOK begins here", false, VerseMarker, 1},
		{"numbered book name is a header", "1 John", false, BookHeader, 0},
		{"longest book wins", "THE FIRST EPISTLE OF 1 JOHN", false, BookHeader, 0},
		{"reference is not a header", "John 3:16", false, PlainText, 0},
		{"prose mentioning a book is text", "Then Job answered and said", false, PlainText, 0},
		{"chapter phrase", "Chapter 12", false, ChapterMarker, 12},
		{"roman chapter phrase", "CHAPTER IV", false, ChapterMarker, 4},
		{"psalm heading", "PSALM 23", false, ChapterMarker, 23},
		{"standalone number needs book", "3", false, PlainText, 0},
		{"standalone number with book", "3", true, ChapterMarker, 3},
		{"standalone number out of range", "450", true, PlainText, 0},
		{"verse out of range", "250 And it came to pass", true, PlainText, 0},
		{"colon verse form", "7: And God said", true, VerseMarker, 7},
		{"parenthesised verse", "(9) And he said", true, VerseMarker, 9},
		{"verse needs a letter", "12 34 56", true, PlainText, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := NewScripture(p, nil)
			tk.bookSeen = tt.bookSeen
			tok := tk.Classify(line(1, 0, tt.text))
			if tok.Kind != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, tok)
			}
			if tt.number != 0 && tok.Number != tt.number {
				t.Errorf("expected number %d, got %d", tt.number, tok.Number)
			}
		})
	}
}

func TestScriptureHeaderBook(t *testing.T) {
	tk := NewScripture(testbookProfile(t), nil)
	tok := tk.Classify(line(1, 0, "THE FIRST EPISTLE OF 1 JOHN"))
	if tok.Book.Name != "1 John" {
		t.Errorf("expected 1 John, got %q", tok.Book.Name)
	}
}

func TestScriptureRestrict(t *testing.T) {
	p := testbookProfile(t)
	tk := NewScripture(p, nil)
	b, _ := p.Vocabulary.Lookup("TESTBOOK")
	tk.Restrict(b)

	if tok := tk.Classify(line(1, 0, "John")); tok.Kind != PlainText {
		t.Errorf("expected other book header to be text, got %s", tok)
	}
	if tok := tk.Classify(line(1, 1, "TESTBOOK")); tok.Kind != BookHeader {
		t.Errorf("expected range book header, got %s", tok)
	}
	if tok := tk.Classify(line(1, 2, "4")); tok.Kind != ChapterMarker {
		t.Errorf("restricted tokenizer should have book context, got %s", tok)
	}
}

func TestTokenizeSkipsBlankLines(t *testing.T) {
	tk := NewScripture(testbookProfile(t), nil)
	tokens := tk.Tokenize([]types.Line{line(1, 0, "   "), line(1, 1, "text")})
	if len(tokens) != 1 {
		t.Errorf("expected 1 token, got %d", len(tokens))
	}
}

func TestMatchVerse(t *testing.T) {
	n, rest, ok := MatchVerse("  31 And God saw every thing", 1, 200)
	if !ok || n != 31 || rest != "And God saw every thing" {
		t.Errorf("unexpected match %d %q %v", n, rest, ok)
	}
	if _, _, ok := MatchVerse("0 Nothing", 1, 200); ok {
		t.Error("verse 0 should not match")
	}
}

func TestSplitInline(t *testing.T) {
	before, after, ok := SplitInline("and the earth. 2 And the earth was void", 2)
	if !ok || before != "and the earth." || after != "And the earth was void" {
		t.Errorf("unexpected split %q | %q (%v)", before, after, ok)
	}
	if _, _, ok := SplitInline("he was 30 Years old", 2); ok {
		t.Error("non-successor number must not split")
	}
	if _, _, ok := SplitInline("2 And leading marker", 2); ok {
		t.Error("leading marker is not inline")
	}
}

func TestParseRoman(t *testing.T) {
	tests := map[string]int{"I": 1, "iv": 4, "IX": 9, "XL": 40, "XCIX": 99, "CL": 150, "": 0, "ABC": 0}
	for in, want := range tests {
		if got := ParseRoman(in); got != want {
			t.Errorf("ParseRoman(%q) = %d, want %d", in, got, want)
		}
	}
}

func paragraphProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Paragraph("Steps to Peace", "STP", profile.Thresholds{})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func pline(page int, top, left float64, text string) types.Line {
	return types.Line{Text: text, Page: page, Top: top, Bottom: top + 12, Left: left, FontSize: 12, Zone: types.ZoneBody}
}

func TestParagraphTokenize(t *testing.T) {
	tk := NewParagraph(paragraphProfile(t), nil)
	tokens := tk.Tokenize([]types.Line{
		pline(1, 80, 72, "Steps to Peace"),
		pline(1, 120, 72, "Chapter 1—God's Love for Man"),
		pline(1, 160, 90, "Nature and revelation alike testify of God's love."),
		pline(1, 174, 72, "Our Father in heaven is the source of life."),
		pline(1, 210, 90, "God is love is written upon every opening bud."),
		pline(1, 224, 72, "continued on the next line"),
		pline(2, 80, 72, "CHAPTER II"),
		pline(2, 120, 90, "Man was originally endowed with noble powers."),
	})

	want := []struct {
		kind Kind
		num  int
	}{
		{BookHeader, 0},
		{ChapterMarker, 1},
		{VerseMarker, 1},
		{PlainText, 0},
		{VerseMarker, 2},
		{PlainText, 0},
		{ChapterMarker, 2},
		{VerseMarker, 1},
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, w := range want {
		if tokens[i].Kind != w.kind || (w.num != 0 && tokens[i].Number != w.num) {
			t.Errorf("token %d: expected %s(%d), got %s", i, w.kind, w.num, tokens[i])
		}
	}
	if tokens[1].Text != "God's Love for Man" {
		t.Errorf("expected heading title, got %q", tokens[1].Text)
	}
}

func TestMatchHeading(t *testing.T) {
	tests := []struct {
		text  string
		num   int
		title string
		ok    bool
	}{
		{"Chapter 3—The Test of Discipleship", 3, "The Test of Discipleship", true},
		{"Chapter XII - Growing Up", 12, "Growing Up", true},
		{"CHAPTER 7.", 7, "", true},
		{"Chapter 3 was long", 0, "", false},
		{"chapter 3—lowercase", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			n, title, ok := MatchHeading(tt.text)
			if ok != tt.ok || n != tt.num || title != tt.title {
				t.Errorf("got (%d, %q, %v)", n, title, ok)
			}
		})
	}
}
