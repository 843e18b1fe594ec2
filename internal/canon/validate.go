package canon

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jackzampolin/scroll/internal/types"
)

// Mode selects how much of the reference is compared.
type Mode string

const (
	// ModeSentinel spot-checks signature units and totals of sentinel books.
	ModeSentinel Mode = "sentinel"
	// ModeFull compares every chapter of the named books.
	ModeFull Mode = "full"
	// ModeStructural checks internal consistency only, for documents with
	// no canonical reference.
	ModeStructural Mode = "structural"
)

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSentinel, ModeFull, ModeStructural:
		return m, nil
	case "":
		return ModeSentinel, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q (want sentinel, full or structural)", s)
	}
}

// DefaultMinFraction is the share of expected chapters and units below
// which a book fails.
const DefaultMinFraction = 0.8

// Options configures Validate.
type Options struct {
	Mode Mode
	// Books names the books in scope. In sentinel mode, sentinel books among
	// Books and the extracted works are checked. In full mode every named
	// book must have a per-chapter reference; with no names, every extracted
	// work that has one is checked.
	Books       []string
	MinFraction float64
	// UnitTerm names units in messages. Defaults to "verse".
	UnitTerm string
}

// Stats summarizes counts for one book or a whole report.
type Stats struct {
	ChaptersFound    int `json:"chaptersFound"`
	UnitsFound       int `json:"unitsFound"`
	Duplicates       int `json:"duplicates"`
	ExpectedChapters int `json:"expectedChapters"`
	ExpectedUnits    int `json:"expectedUnits"`
}

func (s *Stats) add(o Stats) {
	s.ChaptersFound += o.ChaptersFound
	s.UnitsFound += o.UnitsFound
	s.Duplicates += o.Duplicates
	s.ExpectedChapters += o.ExpectedChapters
	s.ExpectedUnits += o.ExpectedUnits
}

// BookReport is the verdict for one book.
type BookReport struct {
	Book     string   `json:"book"`
	WorkID   string   `json:"workId,omitempty"`
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// Report is the validation verdict for one extraction.
type Report struct {
	Passed   bool         `json:"passed"`
	Mode     Mode         `json:"mode"`
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings"`
	Stats    Stats        `json:"stats"`
	Books    []BookReport `json:"books,omitempty"`
}

// QualityScore returns max(0, 100 - 10*errors - 2*warnings).
func (r *Report) QualityScore() int {
	return max(0, 100-10*len(r.Errors)-2*len(r.Warnings))
}

// Grade maps a quality score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func (r *Report) addBook(b BookReport) {
	b.Passed = len(b.Errors) == 0
	r.Books = append(r.Books, b)
	r.Errors = append(r.Errors, b.Errors...)
	r.Warnings = append(r.Warnings, b.Warnings...)
	r.Stats.add(b.Stats)
}

func (r *Report) finish() *Report {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	r.Passed = len(r.Errors) == 0
	return r
}

// Validate compares works and units against the canon. It does not modify
// its inputs.
func Validate(works []types.Work, units []types.Unit, c *Canon, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSentinel
	}
	if opts.MinFraction <= 0 || opts.MinFraction > 1 {
		opts.MinFraction = DefaultMinFraction
	}
	if opts.UnitTerm == "" {
		opts.UnitTerm = "verse"
	}

	if opts.Mode == ModeStructural {
		return Structural(works, units, opts.UnitTerm), nil
	}

	refs, warnings, err := scope(works, c, opts)
	if err != nil {
		return nil, err
	}

	r := &Report{Mode: opts.Mode, Warnings: warnings}
	if len(works) == 0 {
		r.Errors = append(r.Errors, "no works extracted")
	}
	for _, ref := range refs {
		r.addBook(checkBook(ref, works, units, opts))
	}
	return r.finish(), nil
}

// scope resolves the references to check.
func scope(works []types.Work, c *Canon, opts Options) ([]Reference, []string, error) {
	var refs []Reference
	var warnings []string
	seen := make(map[string]bool)
	add := func(ref Reference) {
		if !seen[ref.ShortCode] {
			seen[ref.ShortCode] = true
			refs = append(refs, ref)
		}
	}

	if opts.Mode == ModeFull {
		if len(opts.Books) == 0 {
			for _, w := range works {
				if ref, ok := c.Lookup(w.ShortCode); ok && ref.HasChapterUnits() {
					add(ref)
				}
			}
			if len(refs) == 0 {
				return nil, nil, fmt.Errorf("%w: no extracted work has a per-chapter reference", ErrUnknownBook)
			}
			return refs, nil, nil
		}
		for _, name := range opts.Books {
			ref, ok := c.Lookup(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s", ErrUnknownBook, name)
			}
			if !ref.HasChapterUnits() {
				return nil, nil, fmt.Errorf("%w: %s has no per-chapter reference", ErrUnknownBook, name)
			}
			add(ref)
		}
		return refs, nil, nil
	}

	names := slices.Clone(opts.Books)
	for _, w := range works {
		names = append(names, w.ShortCode)
	}
	for _, name := range names {
		if ref, ok := c.Lookup(name); ok && ref.Sentinel {
			add(ref)
		}
	}
	if len(refs) == 0 && len(works) > 0 {
		warnings = append(warnings, "no sentinel books in scope; only structural checks applied")
	}
	slices.SortStableFunc(refs, func(a, b Reference) int {
		return canonIndex(c, a) - canonIndex(c, b)
	})
	return refs, warnings, nil
}

func canonIndex(c *Canon, r Reference) int {
	return c.index[strings.ToLower(r.ShortCode)]
}

func findWork(ref Reference, works []types.Work) (types.Work, bool) {
	for _, w := range works {
		if strings.EqualFold(w.ShortCode, ref.ShortCode) || strings.EqualFold(w.CanonicalName, ref.Name) {
			return w, true
		}
	}
	return types.Work{}, false
}

type chapterSet map[int]map[int]int

func collect(workID string, units []types.Unit) (chapterSet, int, []string) {
	chapters := make(chapterSet)
	duplicates := 0
	var invalid []string
	for _, u := range units {
		if u.WorkID != workID {
			continue
		}
		if u.Chapter < 1 || u.Unit < 1 {
			invalid = append(invalid, fmt.Sprintf("%d:%d", u.Chapter, u.Unit))
			continue
		}
		if chapters[u.Chapter] == nil {
			chapters[u.Chapter] = make(map[int]int)
		}
		chapters[u.Chapter][u.Unit]++
		if chapters[u.Chapter][u.Unit] == 2 {
			duplicates++
		}
	}
	return chapters, duplicates, invalid
}

func (cs chapterSet) has(chapter, unit int) bool {
	return cs[chapter][unit] > 0
}

func (cs chapterSet) units() int {
	n := 0
	for _, us := range cs {
		n += len(us)
	}
	return n
}

func checkBook(ref Reference, works []types.Work, units []types.Unit, opts Options) BookReport {
	br := BookReport{
		Book: ref.Name,
		Stats: Stats{
			ExpectedChapters: ref.Chapters,
			ExpectedUnits:    ref.Units,
		},
	}
	term := opts.UnitTerm

	work, ok := findWork(ref, works)
	if !ok {
		br.Errors = append(br.Errors, fmt.Sprintf("%s: not extracted", ref.Name))
		return br
	}
	br.WorkID = work.WorkID

	chapters, duplicates, invalid := collect(work.WorkID, units)
	br.Stats.ChaptersFound = len(chapters)
	br.Stats.UnitsFound = chapters.units()
	br.Stats.Duplicates = duplicates

	if !chapters.has(1, 1) {
		br.Errors = append(br.Errors, fmt.Sprintf("%s: missing signature %s 1:1", ref.Name, term))
	}
	if !chapters.has(ref.Last.Chapter, ref.Last.Unit) {
		br.Errors = append(br.Errors, fmt.Sprintf("%s: missing signature %s %s", ref.Name, term, ref.Last))
	}
	if duplicates > 0 {
		br.Errors = append(br.Errors, fmt.Sprintf("%s: %d duplicate %s keys survived reconciliation", ref.Name, duplicates, term))
	}
	if len(invalid) > 0 {
		br.Errors = append(br.Errors, fmt.Sprintf("%s: invalid positions %s", ref.Name, strings.Join(invalid, ", ")))
	}

	br.Errors, br.Warnings = checkTotal(ref.Name, "chapters", br.Stats.ChaptersFound, ref.Chapters, opts.MinFraction, br.Errors, br.Warnings)
	br.Errors, br.Warnings = checkTotal(ref.Name, term+"s", br.Stats.UnitsFound, ref.Units, opts.MinFraction, br.Errors, br.Warnings)

	if opts.Mode == ModeFull {
		br.Errors, br.Warnings = checkChapters(ref, chapters, term, br.Errors, br.Warnings)
	}
	return br
}

func checkTotal(book, what string, found, expected int, minFraction float64, errs, warns []string) ([]string, []string) {
	ratio := float64(found) / float64(expected)
	switch {
	case ratio < minFraction:
		errs = append(errs, fmt.Sprintf("%s: found %d of %d %s (%.1f%%)", book, found, expected, what, ratio*100))
	case found < expected:
		warns = append(warns, fmt.Sprintf("%s: found %d of %d %s (%.1f%%)", book, found, expected, what, ratio*100))
	case found > expected:
		warns = append(warns, fmt.Sprintf("%s: found %d %s, expected %d", book, found, what, expected))
	}
	return errs, warns
}

func checkChapters(ref Reference, chapters chapterSet, term string, errs, warns []string) ([]string, []string) {
	for c := 1; c <= ref.Chapters; c++ {
		expected := ref.ChapterUnits[c-1]
		got := chapters[c]
		if len(got) == 0 {
			errs = append(errs, fmt.Sprintf("%s %d: chapter missing", ref.Name, c))
			continue
		}

		var missing, extra []int
		for u := 1; u <= expected; u++ {
			if got[u] == 0 {
				missing = append(missing, u)
			}
		}
		for u := range got {
			if u > expected {
				extra = append(extra, u)
			}
		}
		switch {
		case len(missing) > 0:
			errs = append(errs, fmt.Sprintf("%s %d: found %d of %d %ss, missing %s",
				ref.Name, c, expected-len(missing), expected, term, joinInts(missing)))
		case len(got) != expected:
			errs = append(errs, fmt.Sprintf("%s %d: found %d %ss, expected %d", ref.Name, c, len(got), term, expected))
		}
		if len(extra) > 0 {
			slices.Sort(extra)
			warns = append(warns, fmt.Sprintf("%s %d: extra %ss %s beyond %d", ref.Name, c, term, joinInts(extra), expected))
		}
	}

	var extraChapters []int
	for c := range chapters {
		if c > ref.Chapters {
			extraChapters = append(extraChapters, c)
		}
	}
	if len(extraChapters) > 0 {
		slices.Sort(extraChapters)
		errs = append(errs, fmt.Sprintf("%s: extra chapters %s beyond %d", ref.Name, joinInts(extraChapters), ref.Chapters))
	}
	return errs, warns
}

// Structural checks a result with no canonical reference: every work has
// units, no key repeats and unit numbers run 1..N in each chapter.
func Structural(works []types.Work, units []types.Unit, term string) *Report {
	if term == "" {
		term = "unit"
	}
	r := &Report{Mode: ModeStructural}
	if len(works) == 0 {
		r.Errors = append(r.Errors, "no works extracted")
	}
	for _, w := range works {
		br := BookReport{Book: w.CanonicalName, WorkID: w.WorkID}
		chapters, duplicates, invalid := collect(w.WorkID, units)
		br.Stats.ChaptersFound = len(chapters)
		br.Stats.UnitsFound = chapters.units()
		br.Stats.Duplicates = duplicates

		if br.Stats.UnitsFound == 0 {
			br.Errors = append(br.Errors, fmt.Sprintf("%s: no %ss extracted", w.CanonicalName, term))
		}
		if duplicates > 0 {
			br.Errors = append(br.Errors, fmt.Sprintf("%s: %d duplicate %s keys survived reconciliation", w.CanonicalName, duplicates, term))
		}
		if len(invalid) > 0 {
			br.Errors = append(br.Errors, fmt.Sprintf("%s: invalid positions %s", w.CanonicalName, strings.Join(invalid, ", ")))
		}
		for _, c := range sortedKeys(chapters) {
			n := len(chapters[c])
			var gaps []int
			for u := 1; u <= maxKey(chapters[c]); u++ {
				if chapters[c][u] == 0 {
					gaps = append(gaps, u)
				}
			}
			if len(gaps) > 0 {
				br.Warnings = append(br.Warnings, fmt.Sprintf("%s %d: %d %ss with gaps at %s", w.CanonicalName, c, n, term, joinInts(gaps)))
			}
		}
		r.addBook(br)
	}
	return r.finish()
}

func sortedKeys(cs chapterSet) []int {
	keys := make([]int, 0, len(cs))
	for k := range cs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func maxKey(m map[int]int) int {
	n := 0
	for k := range m {
		n = max(n, k)
	}
	return n
}

// joinInts renders numbers compactly, collapsing runs: 1-3, 7, 9-10.
func joinInts(ns []int) string {
	var parts []string
	for i := 0; i < len(ns); {
		j := i
		for j+1 < len(ns) && ns[j+1] == ns[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", ns[i], ns[j]))
		} else {
			parts = append(parts, fmt.Sprintf("%d", ns[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
