// Package ingest reads document pages concurrently and turns them into
// zone-tagged lines, delivered in page order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/scroll/internal/layout"
	"github.com/jackzampolin/scroll/internal/source"
	"github.com/jackzampolin/scroll/internal/types"
)

// Config controls the page pool.
type Config struct {
	// Workers bounds concurrent page reads. Defaults to runtime.NumCPU().
	Workers int
	// Attempts is the number of tries per page. Defaults to 3.
	Attempts   int
	RetryDelay time.Duration
	// ZoneBand and LineTolerance feed the zone and line stages.
	ZoneBand      float64
	LineTolerance float64
	Logger        *slog.Logger
}

// PageLines is the line output for one page.
type PageLines struct {
	Number int
	// All holds every line with its zone; the TOC locator scans these.
	All []types.Line
	// Body holds BODY-zone lines only.
	Body []types.Line
	Err  error
}

// Result holds pages in document order.
type Result struct {
	Pages []PageLines
	// Warnings describe pages that failed after retries.
	Warnings []string
}

// Body returns body lines of every page in order.
func (r *Result) Body() []types.Line {
	var out []types.Line
	for _, p := range r.Pages {
		out = append(out, p.Body...)
	}
	return out
}

// BodyRange returns body lines for pages start..end inclusive. An end below
// 1 means through the last page.
func (r *Result) BodyRange(start, end int) []types.Line {
	var out []types.Line
	for _, p := range r.Pages {
		if p.Number < start || (end > 0 && p.Number > end) {
			continue
		}
		out = append(out, p.Body...)
	}
	return out
}

// AllLines returns the zone-tagged lines of each page, indexed from page 1.
func (r *Result) AllLines() [][]types.Line {
	out := make([][]types.Line, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.All
	}
	return out
}

// Failed returns the numbers of pages that could not be read.
func (r *Result) Failed() []int {
	var out []int
	for _, p := range r.Pages {
		if p.Err != nil {
			out = append(out, p.Number)
		}
	}
	return out
}

// Pages reads every page of r through a bounded worker pool. Each page is
// read with retries, classified into zones and assembled into lines. A page
// that still fails becomes a warning. Only context cancellation aborts.
func Pages(ctx context.Context, r source.Reader, cfg Config) (*Result, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ingest")

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	band := cfg.ZoneBand
	if band <= 0 {
		band = layout.DefaultBand
	}
	tol := cfg.LineTolerance
	if tol <= 0 {
		tol = layout.DefaultLineTolerance
	}

	pageCount := r.PageCount()
	log.Info("reading pages", "pages", pageCount, "workers", workers)
	start := time.Now()

	// Each worker writes only its own slot.
	slots := make([]PageLines, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for n := 1; n <= pageCount; n++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			slots[n-1] = readPage(gctx, r, n, attempts, delay, band, tol, log)
			if errors.Is(slots[n-1].Err, context.Canceled) || errors.Is(slots[n-1].Err, context.DeadlineExceeded) {
				return slots[n-1].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("page reading stopped: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("page reading stopped: %w", err)
	}

	res := &Result{Pages: slots}
	lines := 0
	for _, p := range slots {
		lines += len(p.Body)
		if p.Err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d skipped: %v", p.Number, p.Err))
		}
	}
	log.Info("pages read",
		"pages", pageCount,
		"body_lines", lines,
		"failed", len(res.Warnings),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func readPage(ctx context.Context, r source.Reader, n, attempts int, delay time.Duration, band, tol float64, log *slog.Logger) PageLines {
	var page types.Page
	err := retry.Do(
		func() error {
			p, err := r.Page(ctx, n)
			if err != nil {
				return err
			}
			page = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			log.Debug("retrying page", "page", n, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("page failed", "page", n, "error", err)
		}
		return PageLines{Number: n, Err: err}
	}

	all := layout.AssemblePageLines(page, page.Tokens, tol, band)
	body := layout.FilterZone(all, types.ZoneBody)
	log.Debug("page read", "page", n, "tokens", len(page.Tokens), "lines", len(all), "body_lines", len(body))
	return PageLines{Number: n, All: all, Body: body}
}
