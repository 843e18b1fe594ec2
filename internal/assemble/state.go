// Package assemble folds the Pass 1 token stream into works and units.
//
// The transition function Step is pure: it takes the current State and one
// token and returns the next State plus the effects the token produced
// (work registration, completed unit candidates, inferred chapters). The
// Assembler applies those effects and owns reconciliation.
package assemble

import (
	"strings"

	"github.com/jackzampolin/scroll/internal/grammar"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

// Rules are the thresholds the transition function depends on.
type Rules struct {
	MaxNumber        int
	InferMinPrevUnit int
	InferMinLines    int
	// SplitInline enables detection of the next unit number inside a line.
	SplitInline bool
}

// RulesFrom derives Rules from profile thresholds.
func RulesFrom(p *profile.Profile) Rules {
	t := p.Thresholds.WithDefaults()
	return Rules{
		MaxNumber:        t.MaxNumber,
		InferMinPrevUnit: t.InferMinPrevUnit,
		InferMinLines:    t.InferMinLines,
		SplitInline:      p.Kind == profile.KindScripture,
	}
}

// State is the assembler position between tokens. The zero value is the
// NoBook state.
type State struct {
	Book          profile.Book
	HasBook       bool
	Chapter       int
	ChapterSource types.DetectionSource
	Heading       string
	Unit          int
	Buffer        []string
	PageStart     int
	PageEnd       int
	// LinesSinceChapter counts plain-text lines appended since the last
	// chapter marker, book header or inferred chapter.
	LinesSinceChapter int
}

// Open reports whether a unit is accumulating text.
func (s State) Open() bool {
	return s.HasBook && s.Unit > 0
}

// EffectKind tags an Effect.
type EffectKind int

const (
	// EffectRegister asks for the current book to be registered as a work.
	EffectRegister EffectKind = iota
	// EffectFlush carries a completed unit candidate.
	EffectFlush
	// EffectInfer records a chapter inferred from unit numbering.
	EffectInfer
	// EffectSkip records a marker ignored because no book is open.
	EffectSkip
)

// Effect is an output of one transition.
type Effect struct {
	Kind      EffectKind
	Book      profile.Book
	Candidate Candidate
	Chapter   int
	Source    types.DetectionSource
	Token     grammar.Token
}

// Candidate is a flushed unit before reconciliation.
type Candidate struct {
	Book          profile.Book
	Chapter       int
	Unit          int
	Text          string
	PageStart     int
	PageEnd       int
	Heading       string
	ChapterSource types.DetectionSource
}

// Step applies one token to s.
func Step(s State, tok grammar.Token, r Rules) (State, []Effect) {
	var effects []Effect

	switch tok.Kind {
	case grammar.BookHeader:
		s, effects = flush(s, effects)
		s = State{Book: tok.Book, HasBook: true}
		effects = append(effects, Effect{Kind: EffectRegister, Book: tok.Book, Token: tok})

	case grammar.ChapterMarker:
		if !s.HasBook {
			return s, append(effects, Effect{Kind: EffectSkip, Token: tok})
		}
		s, effects = flush(s, effects)
		source := tok.Source
		if source == "" {
			source = types.SourceMarker
		}
		s = State{
			Book:          s.Book,
			HasBook:       true,
			Chapter:       tok.Number,
			ChapterSource: source,
			Heading:       tok.Text,
		}

	case grammar.VerseMarker:
		if !s.HasBook {
			return s, append(effects, Effect{Kind: EffectSkip, Token: tok})
		}
		s, effects = flush(s, effects)
		switch {
		case s.Chapter == 0 && tok.Number == 1:
			s = inferChapter(s, 1, types.SourceFirstUnit)
			effects = append(effects, Effect{Kind: EffectInfer, Book: s.Book, Chapter: 1, Source: types.SourceFirstUnit, Token: tok})
		case s.Chapter > 0 && tok.Number == 1 &&
			s.Unit >= r.InferMinPrevUnit &&
			s.LinesSinceChapter > r.InferMinLines &&
			s.Chapter+1 <= r.MaxNumber:
			next := s.Chapter + 1
			s = inferChapter(s, next, types.SourceUnitReset)
			effects = append(effects, Effect{Kind: EffectInfer, Book: s.Book, Chapter: next, Source: types.SourceUnitReset, Token: tok})
		}
		s = openUnit(s, tok.Number, tok.Page)
		s, effects = appendText(s, tok.Text, tok.Page, r, effects)

	default:
		if !s.Open() {
			return s, effects
		}
		s.LinesSinceChapter++
		s, effects = appendText(s, tok.Text, tok.Page, r, effects)
	}
	return s, effects
}

// Finish flushes any open unit at end of stream.
func Finish(s State) (State, []Effect) {
	return flush(s, nil)
}

func inferChapter(s State, chapter int, source types.DetectionSource) State {
	s.Chapter = chapter
	s.ChapterSource = source
	s.Heading = ""
	s.LinesSinceChapter = 0
	return s
}

func openUnit(s State, n, page int) State {
	s.Unit = n
	s.Buffer = nil
	s.PageStart = page
	s.PageEnd = page
	return s
}

// appendText adds text to the open unit, splitting off successor units whose
// markers appear mid-line.
func appendText(s State, text string, page int, r Rules, effects []Effect) (State, []Effect) {
	for r.SplitInline && s.Chapter > 0 && s.Unit+1 <= r.MaxNumber {
		before, after, ok := grammar.SplitInline(text, s.Unit+1)
		if !ok {
			break
		}
		s = addLine(s, before, page)
		next := s.Unit + 1
		s, effects = flush(s, effects)
		s = openUnit(s, next, page)
		text = after
	}
	return addLine(s, text, page), effects
}

func addLine(s State, text string, page int) State {
	text = strings.TrimSpace(text)
	if text == "" {
		return s
	}
	s.Buffer = append(append([]string(nil), s.Buffer...), text)
	if page > 0 {
		if s.PageStart == 0 || page < s.PageStart {
			s.PageStart = page
		}
		if page > s.PageEnd {
			s.PageEnd = page
		}
	}
	return s
}

// flush emits the open unit as a candidate and clears the buffer. Units with
// no chapter or no text are dropped.
func flush(s State, effects []Effect) (State, []Effect) {
	if !s.Open() {
		return s, effects
	}
	text := strings.TrimSpace(strings.Join(s.Buffer, " "))
	if text != "" && s.Chapter > 0 {
		effects = append(effects, Effect{
			Kind: EffectFlush,
			Book: s.Book,
			Candidate: Candidate{
				Book:          s.Book,
				Chapter:       s.Chapter,
				Unit:          s.Unit,
				Text:          text,
				PageStart:     s.PageStart,
				PageEnd:       s.PageEnd,
				Heading:       s.Heading,
				ChapterSource: s.ChapterSource,
			},
		})
	}
	s.Buffer = nil
	return s, effects
}
