// Package extract runs the full structure-recovery pipeline for one
// document: page reading, TOC location, tokenizing, assembly and canonical
// validation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackzampolin/scroll/internal/assemble"
	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/grammar"
	"github.com/jackzampolin/scroll/internal/ingest"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/source"
	"github.com/jackzampolin/scroll/internal/toc"
	"github.com/jackzampolin/scroll/internal/types"
)

// ErrValidationFailed is returned alongside a complete Result when the
// canonical validation gate fails.
var ErrValidationFailed = errors.New("validation failed")

// Options configures a run.
type Options struct {
	Profile *profile.Profile
	// Books restricts extraction to the named books.
	Books []string
	Mode  canon.Mode
	// MinFraction is the validation count threshold (default 0.8).
	MinFraction float64
	Canon       *canon.Canon
	// NoTOC disables TOC-bounded extraction.
	NoTOC      bool
	PageOffset int
	Workers    int
	Attempts   int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Result is everything one run produced.
type Result struct {
	Metadata  source.Metadata
	PageCount int
	TOC       *toc.Result
	// Bounded reports whether books were extracted from TOC page ranges.
	Bounded      bool
	Works        []types.Work
	Units        []types.Unit
	Decisions    []assemble.Decision
	Warnings     []string
	PageWarnings []string
	Report       *canon.Report
	Elapsed      time.Duration
}

// Run extracts structure from r. When validation fails the Result is still
// returned together with an error wrapping ErrValidationFailed.
func Run(ctx context.Context, r source.Reader, opts Options) (*Result, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("extract requires a profile")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "extract", "profile", opts.Profile.Name)
	if opts.Canon == nil {
		opts.Canon = canon.Default()
	}
	p := opts.Profile
	th := p.Thresholds.WithDefaults()

	filter, err := resolveBooks(p, opts.Books)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pages, err := ingest.Pages(ctx, r, ingest.Config{
		Workers:       opts.Workers,
		Attempts:      opts.Attempts,
		RetryDelay:    opts.RetryDelay,
		ZoneBand:      th.ZoneBand,
		LineTolerance: th.LineTolerance,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Metadata:     r.Metadata(),
		PageCount:    r.PageCount(),
		PageWarnings: pages.Warnings,
	}

	var tokens []grammar.Token
	if p.Kind == profile.KindScripture && !opts.NoTOC {
		res.TOC = toc.NewLocator(toc.Config{
			Vocabulary: p.Vocabulary,
			ScanPages:  th.TOCScanPages,
			MinLines:   th.TOCMinLines,
			PageOffset: opts.PageOffset,
			Logger:     opts.Logger,
		}).Locate(pages.AllLines())
	}

	if ranges := res.TOC.Ranges(); len(ranges) > 0 {
		res.Bounded = true
		headers := grammar.NewScripture(p, opts.Logger)
		for i, rg := range ranges {
			if len(filter) > 0 && !slices.Contains(filter, rg.Book.Name) {
				continue
			}
			tk := grammar.NewScripture(p, opts.Logger)
			tk.Restrict(rg.Book)
			lines := rangeLines(pages, ranges, i, headers)
			log.Info("extracting book", "book", rg.Book.Name, "start", rg.Start, "end", rg.End, "shared_page", rg.Empty(), "lines", len(lines))
			if len(lines) == 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no lines in TOC range starting page %d", rg.Book.Name, rg.Start))
			}
			tokens = append(tokens, grammar.Header(rg.Book, rg.Start))
			tokens = append(tokens, tk.Tokenize(lines)...)
		}
	} else {
		// A paragraph document is one work whether or not its title appears
		// in the body.
		if p.Kind == profile.KindParagraph {
			if books := p.Vocabulary.Books(); len(books) > 0 {
				tokens = append(tokens, grammar.Header(books[0], 1))
			}
		}
		tokens = append(tokens, grammar.New(p, opts.Logger).Tokenize(pages.Body())...)
	}

	asm := assemble.Run(tokens, assemble.Config{Profile: p, Logger: opts.Logger})
	res.Works, res.Units = asm.Works, asm.Units
	if len(filter) > 0 && !res.Bounded {
		res.Works, res.Units = filterWorks(asm.Works, asm.Units, filter)
	}
	res.Decisions = asm.Decisions
	res.Warnings = append(res.Warnings, asm.Warnings...)

	report, err := validate(res, p, filter, opts)
	if err != nil {
		return nil, err
	}
	report.Warnings = append(report.Warnings, pages.Warnings...)
	res.Report = report
	res.Elapsed = time.Since(start)

	log.Info("extraction complete",
		"works", len(res.Works),
		"units", len(res.Units),
		"bounded", res.Bounded,
		"passed", report.Passed,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
		"elapsed", res.Elapsed.Round(time.Millisecond))

	if !report.Passed {
		for _, e := range report.Errors {
			log.Warn("validation error", "error", e)
		}
		return res, fmt.Errorf("%w: %d errors", ErrValidationFailed, len(report.Errors))
	}
	return res, nil
}

// rangeLines returns the body lines of ranges[i]. They run from the book's
// start page through the next book's start page. On the first page the book
// begins at its own header line when one is found there; on the last page it
// stops before the next book's header. Without that header the next book's
// start page belongs to the next book entirely.
func rangeLines(pages *ingest.Result, ranges []toc.Range, i int, headers *grammar.ScriptureTokenizer) []types.Line {
	rg := ranges[i]
	isHeader := func(l types.Line, b profile.Book) bool {
		tok := headers.Classify(l)
		return tok.Kind == grammar.BookHeader && tok.Book.Name == b.Name
	}

	end := toc.OpenEnd
	if i+1 < len(ranges) {
		end = ranges[i+1].Start
	}
	lines := pages.BodyRange(rg.Start, end)

	from := 0
	for j, l := range lines {
		if l.Page != rg.Start {
			break
		}
		if isHeader(l, rg.Book) {
			from = j
			break
		}
	}
	if end == toc.OpenEnd {
		return lines[from:]
	}

	next := ranges[i+1]
	to := -1
	for j := from + 1; j < len(lines); j++ {
		if lines[j].Page == next.Start && isHeader(lines[j], next.Book) {
			to = j
			break
		}
	}
	if to < 0 {
		to = from
		for to < len(lines) && lines[to].Page < next.Start {
			to++
		}
	}
	return lines[from:to]
}

// resolveBooks maps user-supplied names to vocabulary names.
func resolveBooks(p *profile.Profile, names []string) ([]string, error) {
	var out []string
	for _, n := range names {
		b, ok := p.Vocabulary.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the %s vocabulary", canon.ErrUnknownBook, n, p.Name)
		}
		if !slices.Contains(out, b.Name) {
			out = append(out, b.Name)
		}
	}
	return out, nil
}

func filterWorks(works []types.Work, units []types.Unit, names []string) ([]types.Work, []types.Unit) {
	keep := make(map[string]bool)
	var outWorks []types.Work
	for _, w := range works {
		if slices.Contains(names, w.CanonicalName) {
			keep[w.WorkID] = true
			outWorks = append(outWorks, w)
		}
	}
	var outUnits []types.Unit
	for _, u := range units {
		if keep[u.WorkID] {
			outUnits = append(outUnits, u)
		}
	}
	return outWorks, outUnits
}

// Scope returns the books a sentinel validation should consider: the book
// filter when given, otherwise the books listed in the TOC. Extracted works
// are added by the validator.
func (r *Result) Scope(filter []string) []string {
	if len(filter) > 0 {
		return filter
	}
	var out []string
	if r.TOC != nil {
		for _, e := range r.TOC.Entries {
			out = append(out, e.Book.Name)
		}
	}
	return out
}

func validate(res *Result, p *profile.Profile, filter []string, opts Options) (*canon.Report, error) {
	mode := opts.Mode
	if p.Kind != profile.KindScripture {
		mode = canon.ModeStructural
	}
	books := res.Scope(filter)
	if mode == canon.ModeFull {
		books = filter
	}
	return canon.Validate(res.Works, res.Units, opts.Canon, canon.Options{
		Mode:        mode,
		Books:       books,
		MinFraction: opts.MinFraction,
		UnitTerm:    p.UnitTerm,
	})
}
