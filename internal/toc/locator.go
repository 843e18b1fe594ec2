// Package toc finds a document's table of contents and turns it into
// per-book page ranges.
package toc

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/types"
)

// OpenEnd marks the last range, which runs to the end of the document.
const OpenEnd = -1

var (
	// dottedLeaderPattern matches ". . . . ." runs followed by a page number or roman numeral.
	dottedLeaderPattern = regexp.MustCompile(`(?:\.\s?){10,}\s*(?:\d{1,4}|[ivxlcdmIVXLCDM]{1,7})\s*$`)
	leaderRun           = regexp.MustCompile(`(?:\.\s*){3,}`)
	trailingPage        = regexp.MustCompile(`\s+(\d{1,4})\s*$`)
)

// Entry is one book discovered in the table of contents.
type Entry struct {
	Book      profile.Book `json:"book"`
	StartPage int          `json:"start_page"`
	TOCPage   int          `json:"toc_page"`
}

// Range is a book's page span. End is OpenEnd for the last book. A book
// that starts on the same page as the next one has End = Start-1: it owns
// no whole page and is cut from the shared page by its header line.
type Range struct {
	Book  profile.Book `json:"book"`
	Start int          `json:"start"`
	End   int          `json:"end"`
}

// Contains reports whether page falls inside the range.
func (r Range) Contains(page int) bool {
	return page >= r.Start && (r.End == OpenEnd || page <= r.End)
}

// Empty reports whether the range owns no whole page.
func (r Range) Empty() bool {
	return r.End != OpenEnd && r.End < r.Start
}

// Result is the outcome of TOC location.
type Result struct {
	TOCPages []int   `json:"toc_pages"`
	Entries  []Entry `json:"entries"`
}

// Found reports whether any book was discovered.
func (r *Result) Found() bool {
	return r != nil && len(r.Entries) > 0
}

// StartPages returns the book name to start page mapping.
func (r *Result) StartPages() map[string]int {
	m := make(map[string]int, len(r.Entries))
	for _, e := range r.Entries {
		m[e.Book.Name] = e.StartPage
	}
	return m
}

// Config configures a Locator.
type Config struct {
	Vocabulary *profile.Vocabulary
	ScanPages  int // pages scanned from the start of the document (default 30)
	MinLines   int // TOC-like lines needed for a page to qualify (default 5)
	// PageOffset is added to printed page numbers to get document page numbers.
	PageOffset int
	Logger     *slog.Logger
}

// Locator detects TOC pages and parses book entries.
type Locator struct {
	vocab      *profile.Vocabulary
	scanPages  int
	minLines   int
	pageOffset int
	logger     *slog.Logger
}

// NewLocator creates a Locator.
func NewLocator(cfg Config) *Locator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vocab := cfg.Vocabulary
	if vocab == nil {
		vocab = profile.DefaultVocabulary()
	}
	scan := cfg.ScanPages
	if scan <= 0 {
		scan = 30
	}
	minLines := cfg.MinLines
	if minLines <= 0 {
		minLines = 5
	}
	return &Locator{
		vocab:      vocab,
		scanPages:  scan,
		minLines:   minLines,
		pageOffset: cfg.PageOffset,
		logger:     logger.With("component", "toc"),
	}
}

// Locate scans the leading pages for TOC density and parses entries from
// qualifying pages. pages[i] holds the lines of document page i+1. An empty
// result means no TOC was found; it is not an error.
func (l *Locator) Locate(pages [][]types.Line) *Result {
	res := &Result{}
	seen := make(map[string]bool)

	limit := len(pages)
	if limit > l.scanPages {
		limit = l.scanPages
	}

	for i := 0; i < limit; i++ {
		lines := pages[i]
		pageNum := i + 1
		if len(lines) > 0 && lines[0].Page > 0 {
			pageNum = lines[0].Page
		}

		dotted, mentions := l.density(lines)
		if dotted < l.minLines && mentions < l.minLines {
			continue
		}
		res.TOCPages = append(res.TOCPages, pageNum)
		l.logger.Debug("toc page detected", "page", pageNum, "dotted_lines", dotted, "book_lines", mentions)

		for _, line := range lines {
			book, start, ok := l.ParseLine(line.Text)
			if !ok || seen[book.Name] {
				continue
			}
			seen[book.Name] = true
			res.Entries = append(res.Entries, Entry{Book: book, StartPage: start, TOCPage: pageNum})
		}
	}

	if len(res.TOCPages) == 0 {
		l.logger.Info("no toc pages detected, falling back to whole-document scan")
	} else {
		l.logger.Info("toc located", "pages", res.TOCPages, "books", len(res.Entries))
	}
	return res
}

// density counts dotted-leader lines and lines naming a known book.
func (l *Locator) density(lines []types.Line) (dotted, mentions int) {
	for _, line := range lines {
		if LooksLikeTOCLine(line.Text) {
			dotted++
		}
		if _, ok := l.vocab.Match(line.Text); ok {
			mentions++
		}
	}
	return dotted, mentions
}

// ParseLine extracts (book, start page) from one TOC line. Lines containing a
// colon are rejected so that references like "Genesis 1:1" are not entries.
func (l *Locator) ParseLine(text string) (profile.Book, int, bool) {
	if strings.Contains(text, ":") {
		return profile.Book{}, 0, false
	}

	cleaned := leaderRun.ReplaceAllString(text, " ")
	cleaned = strings.TrimRight(cleaned, " \t")
	m := trailingPage.FindStringSubmatch(cleaned)
	if m == nil {
		return profile.Book{}, 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil || page <= 0 {
		return profile.Book{}, 0, false
	}

	name := strings.TrimSpace(cleaned[:len(cleaned)-len(m[0])])
	if name == "" {
		return profile.Book{}, 0, false
	}
	book, ok := l.vocab.Match(name)
	if !ok {
		return profile.Book{}, 0, false
	}
	return book, page + l.pageOffset, true
}

// Ranges converts entries into non-overlapping page ranges sorted by start
// page. Each range ends on the page before the next book starts, even when
// that leaves it empty; the last range ends at OpenEnd.
func (r *Result) Ranges() []Range {
	if r == nil || len(r.Entries) == 0 {
		return nil
	}
	entries := make([]Entry, len(r.Entries))
	copy(entries, r.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].StartPage != entries[j].StartPage {
			return entries[i].StartPage < entries[j].StartPage
		}
		return entries[i].Book.Order < entries[j].Book.Order
	})

	ranges := make([]Range, len(entries))
	for i, e := range entries {
		end := OpenEnd
		if i+1 < len(entries) {
			end = entries[i+1].StartPage - 1
		}
		ranges[i] = Range{Book: e.Book, Start: e.StartPage, End: end}
	}
	return ranges
}

// RangeMap returns ranges keyed by book name.
func (r *Result) RangeMap() map[string]Range {
	m := make(map[string]Range)
	for _, rg := range r.Ranges() {
		m[rg.Book.Name] = rg
	}
	return m
}

// LooksLikeTOCLine reports whether text has a dotted leader ending in a page
// number or roman numeral.
func LooksLikeTOCLine(text string) bool {
	return dottedLeaderPattern.MatchString(strings.TrimSpace(text))
}
