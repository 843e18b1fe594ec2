package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/tsawler/tabula/reader"

	"github.com/jackzampolin/scroll/internal/types"
)

// fragmentPDF reads text fragments with tabula.
type fragmentPDF struct {
	path    string
	pages   int
	meta    Metadata
	handles *handlePool[*reader.Reader]
	logger  *slog.Logger
}

func openFragmentPDF(path string, opts Options) (*fragmentPDF, error) {
	pages, err := preflight(path)
	if err != nil {
		return nil, err
	}

	first, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	if n, err := first.PageCount(); err != nil {
		first.Close()
		return nil, fmt.Errorf("failed to read page tree: %w", err)
	} else if n != pages {
		opts.Logger.Warn("page count mismatch", "pdfcpu", pages, "tabula", n)
		pages = min(pages, n)
	}

	p := &fragmentPDF{
		path:   path,
		pages:  pages,
		meta:   Metadata{Title: pdfTitle(first), Format: "pdf"},
		logger: opts.Logger,
		handles: newHandlePool(opts.Handles,
			func() (*reader.Reader, error) { return reader.Open(path) },
			func(r *reader.Reader) error { return r.Close() }),
	}
	p.handles.put(first)
	opts.Logger.Debug("opened PDF", "backend", BackendFragments, "pages", pages)
	return p, nil
}

// preflight returns the page count pdfcpu reads from the document
// structure. It rejects files that are not PDFs before any text work.
func preflight(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

func pdfTitle(r *reader.Reader) string {
	info, err := r.GetInfo()
	if err != nil || info == nil {
		return ""
	}
	title, ok := info.GetString("Title")
	if !ok {
		return ""
	}
	return strings.TrimSpace(string(title))
}

func (p *fragmentPDF) PageCount() int { return p.pages }

func (p *fragmentPDF) Metadata() Metadata { return p.meta }

func (p *fragmentPDF) Page(ctx context.Context, n int) (types.Page, error) {
	if err := ctx.Err(); err != nil {
		return types.Page{}, err
	}
	if n < 1 || n > p.pages {
		return types.Page{}, &PageError{Page: n, Err: fmt.Errorf("out of range 1..%d", p.pages)}
	}

	r, err := p.handles.get()
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}
	defer p.handles.put(r)

	pg, err := r.GetPage(n - 1)
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}
	width, err := pg.Width()
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}
	height, err := pg.Height()
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}

	frags, err := r.ExtractTextFragments(pg)
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}

	page := types.Page{Number: n, Width: width, Height: height}
	for _, f := range frags {
		txt := strings.TrimSpace(f.Text)
		if txt == "" {
			continue
		}
		h := f.Height
		if h <= 0 {
			h = f.FontSize
		}
		// Fragment Y is the baseline measured from the bottom of the page.
		bottom := height - f.Y
		page.Tokens = append(page.Tokens, types.PositionedToken{
			Text:     txt,
			Page:     n,
			Left:     f.X,
			Top:      bottom - h,
			Bottom:   bottom,
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}
	return page, nil
}

func (p *fragmentPDF) Close() error {
	return p.handles.drain()
}
