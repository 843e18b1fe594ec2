package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/source"
	"github.com/jackzampolin/scroll/internal/types"
)

// pagesReader serves pages laid out from blocks.
type pagesReader struct {
	pages []types.Page
	meta  source.Metadata
}

func newPagesReader(blocks []source.Block) *pagesReader {
	return &pagesReader{pages: source.Layout(blocks), meta: source.Metadata{Format: "test"}}
}

func (r *pagesReader) PageCount() int            { return len(r.pages) }
func (r *pagesReader) Metadata() source.Metadata { return r.meta }
func (r *pagesReader) Close() error              { return nil }
func (r *pagesReader) Page(_ context.Context, n int) (types.Page, error) {
	return r.pages[n-1], nil
}

func lines(text ...string) []source.Block {
	out := make([]source.Block, len(text))
	for i, t := range text {
		out[i] = source.Block{Lines: []string{t}}
	}
	return out
}

func newPage(level int, text string) source.Block {
	return source.Block{Level: level, Lines: []string{text}, PageBreak: true}
}

func vocab(t *testing.T, names ...string) *profile.Vocabulary {
	t.Helper()
	var books []profile.Book
	for i, n := range names {
		books = append(books, profile.Book{Name: n, ShortCode: n[:3], Testament: "test", Order: i + 1, Genre: "test"})
	}
	v, err := profile.NewVocabulary(books)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func testCanon(t *testing.T, refs ...canon.Reference) *canon.Canon {
	t.Helper()
	c, err := canon.NewCanon(refs)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testbookDocument() *pagesReader {
	var blocks []source.Block
	blocks = append(blocks, newPage(1, "TESTBOOK"))
	blocks = append(blocks, lines("1 First sentence.", "2 Second sentence.")...)
	blocks = append(blocks, newPage(1, "2"))
	blocks = append(blocks, lines("1 New chapter first verse.")...)
	return newPagesReader(blocks)
}

func TestRunTestbook(t *testing.T) {
	p := profile.Scripture(vocab(t, "TESTBOOK"), profile.Thresholds{})
	c := testCanon(t, canon.Reference{
		Name: "TESTBOOK", ShortCode: "TES", Chapters: 2, Units: 3,
		Last: canon.Position{Chapter: 2, Unit: 1}, Sentinel: true, ChapterUnits: []int{2, 1},
	})

	for _, mode := range []canon.Mode{canon.ModeSentinel, canon.ModeFull} {
		t.Run(string(mode), func(t *testing.T) {
			res, err := Run(context.Background(), testbookDocument(), Options{Profile: p, Canon: c, Mode: mode, Workers: 2})
			if err != nil {
				t.Fatalf("expected pass, got %v", err)
			}
			if res.Bounded {
				t.Error("expected whole-document extraction without a TOC")
			}
			if len(res.Works) != 1 || res.Works[0].TotalChapters != 2 || res.Works[0].TotalUnits != 3 {
				t.Fatalf("unexpected works %+v", res.Works)
			}
			want := []string{"First sentence.", "Second sentence.", "New chapter first verse."}
			for i, w := range want {
				if res.Units[i].Text != w {
					t.Errorf("unit %d: expected %q, got %q", i, w, res.Units[i].Text)
				}
			}
			if !res.Report.Passed || res.Report.Mode != mode {
				t.Errorf("unexpected report %+v", res.Report)
			}
			if res.PageCount != 2 {
				t.Errorf("expected 2 pages, got %d", res.PageCount)
			}
		})
	}
}

func TestRunValidationFailure(t *testing.T) {
	p := profile.Scripture(vocab(t, "TESTBOOK"), profile.Thresholds{})
	c := testCanon(t, canon.Reference{
		Name: "TESTBOOK", ShortCode: "TES", Chapters: 5, Units: 15,
		Last: canon.Position{Chapter: 5, Unit: 3}, Sentinel: true,
	})

	res, err := Run(context.Background(), testbookDocument(), Options{Profile: p, Canon: c})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if res == nil || res.Report == nil || res.Report.Passed {
		t.Fatal("expected failed report returned with result")
	}
	if len(res.Units) != 3 {
		t.Errorf("expected extracted units kept for inspection, got %d", len(res.Units))
	}
}

func tocDocument() *pagesReader {
	names := []string{"ALPHA", "BETA", "GAMMA", "DELTA", "EPSILON"}
	var blocks []source.Block
	blocks = append(blocks, newPage(1, "CONTENTS"))
	for i, n := range names {
		blocks = append(blocks, lines(fmt.Sprintf("%s %s %d", n, strings.Repeat(". ", 12), i+2))...)
	}
	for _, n := range names {
		blocks = append(blocks, newPage(1, n))
		title := strings.ToLower(n)
		blocks = append(blocks, lines(
			fmt.Sprintf("1 The first verse of %s.", title),
			fmt.Sprintf("2 The second verse of %s.", title),
		)...)
		if n == "ALPHA" {
			// a cross reference that must not open another book
			blocks = append(blocks, lines("BETA")...)
		}
	}
	return newPagesReader(blocks)
}

func TestRunTOCBounded(t *testing.T) {
	p := profile.Scripture(vocab(t, "ALPHA", "BETA", "GAMMA", "DELTA", "EPSILON"), profile.Thresholds{})
	c := testCanon(t, canon.Reference{
		Name: "ALPHA", ShortCode: "ALP", Chapters: 1, Units: 2,
		Last: canon.Position{Chapter: 1, Unit: 2}, Sentinel: true, ChapterUnits: []int{2},
	})

	t.Run("all books", func(t *testing.T) {
		res, err := Run(context.Background(), tocDocument(), Options{Profile: p, Canon: c})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Bounded || !res.TOC.Found() {
			t.Fatal("expected TOC-bounded extraction")
		}
		if len(res.Works) != 5 || len(res.Units) != 10 {
			t.Fatalf("expected 5 works and 10 units, got %d and %d", len(res.Works), len(res.Units))
		}
		if got := res.Units[1].Text; got != "The second verse of alpha. BETA" {
			t.Errorf("expected in-range book mention kept as text, got %q", got)
		}
		for _, u := range res.Units {
			if u.PageStart == nil {
				t.Fatalf("expected page range on %s", u.UnitID)
			}
		}
		if len(res.Report.Books) != 1 || res.Report.Books[0].Book != "ALPHA" {
			t.Errorf("expected ALPHA as the only sentinel book, got %+v", res.Report.Books)
		}
	})

	t.Run("book filter", func(t *testing.T) {
		res, err := Run(context.Background(), tocDocument(), Options{Profile: p, Canon: c, Books: []string{"gamma"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Works) != 1 || res.Works[0].CanonicalName != "GAMMA" {
			t.Fatalf("expected only GAMMA, got %+v", res.Works)
		}
		if len(res.Units) != 2 {
			t.Errorf("expected 2 units, got %d", len(res.Units))
		}
	})

	t.Run("filter without toc", func(t *testing.T) {
		res, err := Run(context.Background(), tocDocument(), Options{Profile: p, Canon: c, Books: []string{"DELTA"}, NoTOC: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Bounded {
			t.Error("expected whole-document extraction")
		}
		if len(res.Works) != 1 || res.Works[0].CanonicalName != "DELTA" {
			t.Fatalf("expected only DELTA, got %+v", res.Works)
		}
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := Run(context.Background(), tocDocument(), Options{Profile: p, Canon: c, Books: []string{"Zeta"}})
		if !errors.Is(err, canon.ErrUnknownBook) {
			t.Errorf("expected ErrUnknownBook, got %v", err)
		}
	})
}

// sharedPageDocument starts ALPHA and BETA on the same page.
func sharedPageDocument() *pagesReader {
	starts := []struct {
		name string
		page int
	}{{"ALPHA", 2}, {"BETA", 2}, {"GAMMA", 3}, {"DELTA", 4}, {"EPSILON", 5}}

	var blocks []source.Block
	blocks = append(blocks, newPage(1, "CONTENTS"))
	for _, s := range starts {
		blocks = append(blocks, lines(fmt.Sprintf("%s %s %d", s.name, strings.Repeat(". ", 12), s.page))...)
	}
	for i, s := range starts {
		if i > 0 && starts[i-1].page == s.page {
			blocks = append(blocks, source.Block{Level: 1, Lines: []string{s.name}})
		} else {
			blocks = append(blocks, newPage(1, s.name))
		}
		title := strings.ToLower(s.name)
		blocks = append(blocks, lines(
			fmt.Sprintf("1 The first verse of %s.", title),
			fmt.Sprintf("2 The second verse of %s.", title),
		)...)
	}
	return newPagesReader(blocks)
}

func TestRunTOCSharedStartPage(t *testing.T) {
	p := profile.Scripture(vocab(t, "ALPHA", "BETA", "GAMMA", "DELTA", "EPSILON"), profile.Thresholds{})
	c := testCanon(t,
		canon.Reference{
			Name: "ALPHA", ShortCode: "ALP", Chapters: 1, Units: 2,
			Last: canon.Position{Chapter: 1, Unit: 2}, Sentinel: true, ChapterUnits: []int{2},
		},
		canon.Reference{
			Name: "BETA", ShortCode: "BET", Chapters: 1, Units: 2,
			Last: canon.Position{Chapter: 1, Unit: 2}, Sentinel: true, ChapterUnits: []int{2},
		},
	)

	res, err := Run(context.Background(), sharedPageDocument(), Options{Profile: p, Canon: c, Mode: canon.ModeFull, Books: []string{"ALPHA", "BETA"}})
	if err != nil {
		t.Fatalf("expected pass, got %v (report %+v)", err, res)
	}
	if !res.Bounded {
		t.Fatal("expected TOC-bounded extraction")
	}

	want := map[string]string{
		"yah-alp-001-001": "The first verse of alpha.",
		"yah-alp-001-002": "The second verse of alpha.",
		"yah-bet-001-001": "The first verse of beta.",
		"yah-bet-001-002": "The second verse of beta.",
	}
	if len(res.Units) != len(want) {
		t.Fatalf("expected %d units, got %d: %+v", len(want), len(res.Units), res.Units)
	}
	for _, u := range res.Units {
		if want[u.UnitID] != u.Text {
			t.Errorf("expected %s to be %q, got %q", u.UnitID, want[u.UnitID], u.Text)
		}
	}
	for _, d := range res.Decisions {
		if d.UnitID != "" {
			t.Errorf("expected no reconciliation between books, got %+v", d)
		}
	}

	t.Run("all books", func(t *testing.T) {
		res, err := Run(context.Background(), sharedPageDocument(), Options{Profile: p, Canon: c})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Works) != 5 || len(res.Units) != 10 {
			t.Fatalf("expected 5 works and 10 units, got %d and %d", len(res.Works), len(res.Units))
		}
	})
}

func TestRunParagraphProfile(t *testing.T) {
	p, err := profile.Paragraph("Steps to Peace", "", profile.Thresholds{})
	if err != nil {
		t.Fatal(err)
	}
	r := newPagesReader([]source.Block{
		{Level: 1, Lines: []string{"Steps to Peace"}},
		{Level: 2, Lines: []string{"Chapter 1—God's Love for Man"}},
		{Lines: []string{"Nature and revelation alike testify of God's love.", "Our Father in heaven is the source of life."}},
		{Lines: []string{"God is love is written upon every opening bud."}},
	})

	res, err := Run(context.Background(), r, Options{Profile: p})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Mode != canon.ModeStructural {
		t.Errorf("expected structural validation, got %s", res.Report.Mode)
	}
	if len(res.Units) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %+v", len(res.Units), res.Units)
	}
	if res.Units[0].Heading != "God's Love for Man" || res.Units[0].WorkID != "doc-stp" {
		t.Errorf("unexpected first paragraph %+v", res.Units[0])
	}
	if res.Units[1].Text != "God is love is written upon every opening bud." {
		t.Errorf("unexpected second paragraph %q", res.Units[1].Text)
	}
}

func TestRunParagraphWithoutTitleLine(t *testing.T) {
	p, err := profile.Paragraph("Steps to Peace", "", profile.Thresholds{})
	if err != nil {
		t.Fatal(err)
	}
	r := newPagesReader([]source.Block{
		{Level: 2, Lines: []string{"Chapter 1—God's Love for Man"}},
		{Lines: []string{"Nature and revelation alike testify of God's love.", "Our Father in heaven is the source of life."}},
		{Lines: []string{"God is love is written upon every opening bud."}},
	})

	res, err := Run(context.Background(), r, Options{Profile: p})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Works) != 1 || res.Works[0].WorkID != "doc-stp" || res.Works[0].CanonicalName != "Steps to Peace" {
		t.Fatalf("expected the titled work, got %+v", res.Works)
	}
	if len(res.Units) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %+v", len(res.Units), res.Units)
	}
	if res.Units[0].Heading != "God's Love for Man" {
		t.Errorf("unexpected first paragraph %+v", res.Units[0])
	}
}

func TestRunRequiresProfile(t *testing.T) {
	if _, err := Run(context.Background(), testbookDocument(), Options{}); err == nil {
		t.Error("expected error without profile")
	}
}
