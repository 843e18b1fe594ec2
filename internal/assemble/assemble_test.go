package assemble

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/jackzampolin/scroll/internal/grammar"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	vocab, err := profile.NewVocabulary([]profile.Book{
		{Name: "TESTBOOK", ShortCode: "TST", Testament: "test", Order: 1, Genre: "test"},
		{Name: "OTHERBOOK", ShortCode: "OTH", Testament: "test", Order: 2, Genre: "test"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return profile.Scripture(vocab, profile.Thresholds{})
}

func book(t *testing.T, p *profile.Profile, name string) profile.Book {
	t.Helper()
	b, ok := p.Vocabulary.Lookup(name)
	if !ok {
		t.Fatalf("book %s not in vocabulary", name)
	}
	return b
}

func header(b profile.Book, page int) grammar.Token {
	return grammar.Header(b, page)
}

func chapter(n, page int) grammar.Token {
	return grammar.Token{Kind: grammar.ChapterMarker, Number: n, Page: page, Source: types.SourceMarker}
}

func verse(n int, text string, page int) grammar.Token {
	return grammar.Token{Kind: grammar.VerseMarker, Number: n, Text: text, Page: page}
}

func plain(text string, page int) grammar.Token {
	return grammar.Token{Kind: grammar.PlainText, Text: text, Raw: text, Page: page}
}

func TestTestbookScenario(t *testing.T) {
	p := testProfile(t)
	tokens := grammar.NewScripture(p, nil).Tokenize([]types.Line{
		{Text: "TESTBOOK", Page: 1, Index: 0},
		{Text: "1 First sentence.", Page: 1, Index: 1},
		{Text: "2 Second sentence.", Page: 1, Index: 2},
		{Text: "2", Page: 2, Index: 0, FontSize: 24},
		{Text: "1 New chapter first verse.", Page: 2, Index: 1},
	})

	res := Run(tokens, Config{Profile: p})

	if len(res.Works) != 1 {
		t.Fatalf("expected 1 work, got %d", len(res.Works))
	}
	w := res.Works[0]
	if w.WorkID != "yah-tst" {
		t.Errorf("expected work id yah-tst, got %s", w.WorkID)
	}
	if w.TotalChapters != 2 || w.TotalUnits != 3 {
		t.Errorf("expected 2 chapters and 3 units, got %d and %d", w.TotalChapters, w.TotalUnits)
	}

	want := []struct {
		chapter, unit int
		text          string
	}{
		{1, 1, "First sentence."},
		{1, 2, "Second sentence."},
		{2, 1, "New chapter first verse."},
	}
	if len(res.Units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(res.Units))
	}
	for i, wu := range want {
		u := res.Units[i]
		if u.Chapter != wu.chapter || u.Unit != wu.unit || u.Text != wu.text {
			t.Errorf("unit %d: expected (%d,%d,%q), got (%d,%d,%q)", i, wu.chapter, wu.unit, wu.text, u.Chapter, u.Unit, u.Text)
		}
	}
	if res.Units[0].UnitID != "yah-tst-001-001" {
		t.Errorf("expected unit id yah-tst-001-001, got %s", res.Units[0].UnitID)
	}
	if res.Units[0].ChapterSource != types.SourceFirstUnit {
		t.Errorf("expected chapter 1 inferred from first unit, got %s", res.Units[0].ChapterSource)
	}
	if res.Units[2].ChapterSource != types.SourceMarker {
		t.Errorf("expected chapter 2 from marker, got %s", res.Units[2].ChapterSource)
	}
	if *res.Units[2].PageStart != 2 || *res.Units[2].PageEnd != 2 {
		t.Errorf("expected page range 2-2, got %d-%d", *res.Units[2].PageStart, *res.Units[2].PageEnd)
	}
	if !slices.Equal(w.UnitIDs, []string{"yah-tst-001-001", "yah-tst-001-002", "yah-tst-002-001"}) {
		t.Errorf("unexpected unit ids %v", w.UnitIDs)
	}
}

func TestStepTransitions(t *testing.T) {
	p := testProfile(t)
	r := RulesFrom(p)
	tb := book(t, p, "TESTBOOK")

	t.Run("markers without book are skipped", func(t *testing.T) {
		s, effects := Step(State{}, chapter(3, 1), r)
		if s.HasBook || s.Chapter != 0 {
			t.Errorf("expected NoBook state, got %+v", s)
		}
		if len(effects) != 1 || effects[0].Kind != EffectSkip {
			t.Errorf("expected skip effect, got %+v", effects)
		}
		s, _ = Step(s, verse(1, "text", 1), r)
		if s.Open() {
			t.Error("expected no open unit without book")
		}
	})

	t.Run("header resets chapter", func(t *testing.T) {
		s := State{Book: tb, HasBook: true, Chapter: 4, Unit: 2, Buffer: []string{"pending"}}
		s, effects := Step(s, header(tb, 3), r)
		if s.Chapter != 0 || s.Unit != 0 || len(s.Buffer) != 0 {
			t.Errorf("expected reset state, got %+v", s)
		}
		if len(effects) != 2 || effects[0].Kind != EffectFlush || effects[1].Kind != EffectRegister {
			t.Errorf("expected flush then register, got %+v", effects)
		}
	})

	t.Run("plain text before first unit is dropped", func(t *testing.T) {
		s := State{Book: tb, HasBook: true, Chapter: 1}
		s, effects := Step(s, plain("A title line", 1), r)
		if len(s.Buffer) != 0 || len(effects) != 0 {
			t.Errorf("expected plain text ignored, got %+v %+v", s, effects)
		}
	})

	t.Run("plain text appends and counts", func(t *testing.T) {
		s := State{Book: tb, HasBook: true, Chapter: 1}
		s, _ = Step(s, verse(1, "In the beginning", 1), r)
		s, _ = Step(s, plain("God created", 2), r)
		if !slices.Equal(s.Buffer, []string{"In the beginning", "God created"}) {
			t.Errorf("unexpected buffer %v", s.Buffer)
		}
		if s.LinesSinceChapter != 1 {
			t.Errorf("expected 1 line since chapter, got %d", s.LinesSinceChapter)
		}
		if s.PageStart != 1 || s.PageEnd != 2 {
			t.Errorf("expected pages 1-2, got %d-%d", s.PageStart, s.PageEnd)
		}
	})

	t.Run("unit without chapter is not emitted", func(t *testing.T) {
		s := State{Book: tb, HasBook: true}
		s, _ = Step(s, verse(5, "orphan", 1), r)
		_, effects := Finish(s)
		if len(effects) != 0 {
			t.Errorf("expected no flush for chapter 0, got %+v", effects)
		}
	})

	t.Run("step does not alias buffers", func(t *testing.T) {
		s := State{Book: tb, HasBook: true, Chapter: 1}
		s, _ = Step(s, verse(1, "one", 1), r)
		a, _ := Step(s, plain("two", 1), r)
		b, _ := Step(s, plain("three", 1), r)
		if a.Buffer[1] != "two" || b.Buffer[1] != "three" {
			t.Errorf("expected independent buffers, got %v and %v", a.Buffer, b.Buffer)
		}
	})
}

func TestChapterInference(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")

	build := func(prevUnits, plainLines int) []grammar.Token {
		tokens := []grammar.Token{header(tb, 1), chapter(1, 1)}
		for v := 1; v <= prevUnits; v++ {
			tokens = append(tokens, verse(v, fmt.Sprintf("verse %d", v), 1))
		}
		for i := 0; i < plainLines; i++ {
			tokens = append(tokens, plain("continued", 1))
		}
		return append(tokens, verse(1, "after reset", 2))
	}

	t.Run("reset after long chapter infers next chapter", func(t *testing.T) {
		res := Run(build(25, 60), Config{Profile: p})
		last := res.Units[len(res.Units)-1]
		if last.Chapter != 2 || last.Unit != 1 {
			t.Fatalf("expected inferred 2:1, got %d:%d", last.Chapter, last.Unit)
		}
		if last.ChapterSource != types.SourceUnitReset {
			t.Errorf("expected unit reset source, got %s", last.ChapterSource)
		}
		if last.Confidence >= res.Units[0].Confidence {
			t.Errorf("expected inferred chapter to carry lower confidence")
		}
		found := false
		for _, d := range res.Decisions {
			if d.Action == ActionChapterInferred && d.Chapter == 2 {
				found = true
			}
		}
		if !found {
			t.Error("expected chapter_inferred decision")
		}
	})

	t.Run("too few previous units", func(t *testing.T) {
		res := Run(build(10, 60), Config{Profile: p})
		for _, u := range res.Units {
			if u.Chapter != 1 {
				t.Fatalf("expected no inferred chapter, got unit %s", u.UnitID)
			}
		}
		last := res.Decisions[len(res.Decisions)-1]
		if last.Action != ActionDuplicateReplaced && last.Action != ActionDuplicateRejected {
			t.Errorf("expected reset to be reconciled as duplicate 1:1, got %+v", last)
		}
	})

	t.Run("line count must exceed the threshold", func(t *testing.T) {
		res := Run(build(25, 50), Config{Profile: p})
		for _, u := range res.Units {
			if u.Chapter != 1 {
				t.Fatalf("expected no inferred chapter at exactly 50 lines, got unit %s", u.UnitID)
			}
		}
		res = Run(build(25, 51), Config{Profile: p})
		if last := res.Units[len(res.Units)-1]; last.Chapter != 2 || last.Unit != 1 {
			t.Errorf("expected inferred 2:1 after 51 lines, got %d:%d", last.Chapter, last.Unit)
		}
	})

	t.Run("too few plain lines", func(t *testing.T) {
		res := Run(build(25, 10), Config{Profile: p})
		for _, u := range res.Units {
			if u.Chapter != 1 {
				t.Fatalf("expected no inferred chapter, got unit %s", u.UnitID)
			}
		}
	})

	t.Run("explicit chapter marker resets line count", func(t *testing.T) {
		tokens := build(25, 60)
		last := tokens[len(tokens)-1]
		tokens = append(tokens[:len(tokens)-1], chapter(2, 2), verse(1, "c2", 2))
		for v := 2; v <= 25; v++ {
			tokens = append(tokens, verse(v, "x", 2))
		}
		tokens = append(tokens, last)
		res := Run(tokens, Config{Profile: p})
		w := res.Works[0]
		if w.TotalChapters != 2 {
			t.Errorf("expected 2 chapters, got %d", w.TotalChapters)
		}
	})
}

func TestTotalChaptersCountsDistinct(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	res := Run([]grammar.Token{
		header(tb, 1),
		chapter(1, 1), verse(1, "first", 1), verse(2, "second", 1),
		chapter(5, 2), verse(1, "fifth", 2),
	}, Config{Profile: p})

	if len(res.Works) != 1 {
		t.Fatalf("expected 1 work, got %d", len(res.Works))
	}
	if w := res.Works[0]; w.TotalChapters != 2 || w.TotalUnits != 3 {
		t.Errorf("expected 2 chapters and 3 units, got %d and %d", w.TotalChapters, w.TotalUnits)
	}
}

func TestInlineSplit(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	res := Run([]grammar.Token{
		header(tb, 1),
		chapter(1, 1),
		verse(1, "In the beginning God created the heaven and the earth. 2 And the earth was", 1),
		plain("without form. 3 And God said, Let there be light", 1),
		plain("he was 30 Years old", 1),
	}, Config{Profile: p})

	want := []string{
		"In the beginning God created the heaven and the earth.",
		"And the earth was without form.",
		"And God said, Let there be light he was 30 Years old",
	}
	if len(res.Units) != len(want) {
		t.Fatalf("expected %d units, got %d: %+v", len(want), len(res.Units), res.Units)
	}
	for i, w := range want {
		if res.Units[i].Unit != i+1 || res.Units[i].Text != w {
			t.Errorf("unit %d: expected %q, got %d %q", i+1, w, res.Units[i].Unit, res.Units[i].Text)
		}
	}
}

func TestReconcileLongerWins(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	long := strings.Repeat("a", 200)
	short := strings.Repeat("b", 40)

	res := Run([]grammar.Token{
		header(tb, 1), chapter(1, 1),
		verse(1, short, 1),
		verse(1, long, 2),
	}, Config{Profile: p})

	if len(res.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(res.Units))
	}
	u := res.Units[0]
	if u.Text != long {
		t.Errorf("expected 200-character text to win")
	}
	if !slices.Equal(u.Alternatives, []string{short}) {
		t.Errorf("expected short text as alternative, got %v", u.Alternatives)
	}
	d := res.Decisions[len(res.Decisions)-1]
	if d.Action != ActionDuplicateReplaced || d.Reason != string(ReasonLength) {
		t.Errorf("expected duplicate_replaced by length, got %+v", d)
	}
	if res.Works[0].TotalUnits != 1 {
		t.Errorf("expected reconciliation to keep one unit id, got %d", res.Works[0].TotalUnits)
	}
}

func TestReconcile(t *testing.T) {
	headers := []string{"CHAPTER", "TESTBOOK"}
	tests := []struct {
		name   string
		a, b   string
		winner string
		reason Reason
	}{
		{"length", strings.Repeat("x", 200), strings.Repeat("y", 40), strings.Repeat("x", 200), ReasonLength},
		{"headers", "TESTBOOK CHAPTER 3 and so on", "and God said unto them", "and God said unto them", ReasonHeaders},
		{"lexical", "bravo text", "alpha text", "alpha text", ReasonLexical},
		{"identical", "same", "same", "same", ReasonEqual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w1, l1, r1 := Reconcile(tt.a, tt.b, headers, 1.5)
			w2, l2, r2 := Reconcile(tt.b, tt.a, headers, 1.5)
			if w1 != tt.winner || r1 != tt.reason {
				t.Errorf("expected %q by %s, got %q by %s", tt.winner, tt.reason, w1, r1)
			}
			if w1 != w2 || l1 != l2 || r1 != r2 {
				t.Errorf("expected order independence, got (%q,%q,%s) vs (%q,%q,%s)", w1, l1, r1, w2, l2, r2)
			}
		})
	}
}

func TestReconcileOrderIndependentAssembly(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	texts := []string{"And it was so.", "TESTBOOK And it was so", "And it was so, even so."}

	var first []types.Unit
	for perm := 0; perm < 6; perm++ {
		order := slices.Clone(texts)
		rng := rand.New(rand.NewSource(int64(perm)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		tokens := []grammar.Token{header(tb, 1), chapter(1, 1)}
		for _, txt := range order {
			tokens = append(tokens, verse(1, txt, 1))
		}
		res := Run(tokens, Config{Profile: p})
		if len(res.Units) != 1 {
			t.Fatalf("expected 1 unit, got %d", len(res.Units))
		}
		if first == nil {
			first = res.Units
			continue
		}
		if res.Units[0].Text != first[0].Text {
			t.Errorf("order %v: expected %q, got %q", order, first[0].Text, res.Units[0].Text)
		}
		if !slices.Equal(res.Units[0].Alternatives, first[0].Alternatives) {
			t.Errorf("order %v: expected alternatives %v, got %v", order, first[0].Alternatives, res.Units[0].Alternatives)
		}
	}
}

func TestNoDuplicateKeysSurvive(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	ob := book(t, p, "OTHERBOOK")
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		var tokens []grammar.Token
		for i := 0; i < 200; i++ {
			switch rng.Intn(10) {
			case 0:
				if rng.Intn(2) == 0 {
					tokens = append(tokens, header(tb, i))
				} else {
					tokens = append(tokens, header(ob, i))
				}
			case 1:
				tokens = append(tokens, chapter(1+rng.Intn(5), i))
			case 2, 3:
				tokens = append(tokens, plain(fmt.Sprintf("text %d", rng.Intn(100)), i))
			default:
				tokens = append(tokens, verse(1+rng.Intn(8), fmt.Sprintf("verse text %d", rng.Intn(1000)), i))
			}
		}

		res := Run(tokens, Config{Profile: p})
		seen := make(map[types.Key]bool)
		for _, u := range res.Units {
			if seen[u.Key()] {
				t.Fatalf("trial %d: duplicate key %s %s", trial, u.WorkID, u.Key())
			}
			seen[u.Key()] = true
			if strings.TrimSpace(u.Text) == "" {
				t.Fatalf("trial %d: empty text for %s", trial, u.UnitID)
			}
			if u.Chapter < 1 || u.Unit < 1 {
				t.Fatalf("trial %d: invalid position %s", trial, u.UnitID)
			}
		}
		total := 0
		for _, w := range res.Works {
			total += w.TotalUnits
		}
		if total != len(res.Units) {
			t.Fatalf("trial %d: work totals %d disagree with %d units", trial, total, len(res.Units))
		}
	}
}

func TestCleanDocumentIsContiguous(t *testing.T) {
	p := testProfile(t)
	tb := book(t, p, "TESTBOOK")
	tokens := []grammar.Token{header(tb, 1)}
	for c := 1; c <= 3; c++ {
		tokens = append(tokens, chapter(c, c))
		for v := 1; v <= 12; v++ {
			tokens = append(tokens, verse(v, fmt.Sprintf("chapter %d verse %d", c, v), c))
		}
	}

	res := Run(tokens, Config{Profile: p})
	for c := 1; c <= 3; c++ {
		n := 0
		for _, u := range res.Units {
			if u.Chapter != c {
				continue
			}
			n++
			if u.Unit != n {
				t.Fatalf("chapter %d: expected unit %d, got %d", c, n, u.Unit)
			}
		}
		if n != 12 {
			t.Errorf("chapter %d: expected 12 units, got %d", c, n)
		}
	}
	if len(res.Decisions) != 1 || res.Decisions[0].Action != ActionBookDetected {
		t.Errorf("expected only book detection in decision log, got %+v", res.Decisions)
	}
}

func TestUnknownBook(t *testing.T) {
	p := testProfile(t)
	unknown := profile.Book{Name: "MYSTERY", ShortCode: "MYS"}
	res := Run([]grammar.Token{
		header(unknown, 1), chapter(1, 1), verse(1, "lost", 1),
	}, Config{Profile: p})

	if len(res.Works) != 0 || len(res.Units) != 0 {
		t.Errorf("expected nothing saved under unknown book, got %d works %d units", len(res.Works), len(res.Units))
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "MYSTERY") {
		t.Errorf("expected unknown book warning, got %v", res.Warnings)
	}
}

func TestHeadingCarriedToUnits(t *testing.T) {
	p, err := profile.Paragraph("Steps to Peace", "", profile.Thresholds{})
	if err != nil {
		t.Fatal(err)
	}
	b := book(t, p, "Steps to Peace")
	res := Run([]grammar.Token{
		header(b, 1),
		{Kind: grammar.ChapterMarker, Number: 1, Text: "God's Love for Man", Source: types.SourceHeading, Page: 1},
		verse(1, "Nature and revelation alike testify of God's love.", 1),
		plain("Our Father in heaven is the source of life.", 1),
	}, Config{Profile: p})

	if len(res.Units) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(res.Units))
	}
	u := res.Units[0]
	if u.WorkID != "doc-stp" {
		t.Errorf("expected work id doc-stp, got %s", u.WorkID)
	}
	if u.Heading != "God's Love for Man" {
		t.Errorf("expected heading carried, got %q", u.Heading)
	}
	if u.Text != "Nature and revelation alike testify of God's love. Our Father in heaven is the source of life." {
		t.Errorf("unexpected text %q", u.Text)
	}
}
