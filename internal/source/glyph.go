package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jackzampolin/scroll/internal/types"
)

const (
	letterWidth  = 612.0
	letterHeight = 792.0
)

// glyphPDF reads per-glyph content with ledongthuc/pdf.
type glyphPDF struct {
	pages   int
	handles *handlePool[*glyphHandle]
	logger  *slog.Logger
}

type glyphHandle struct {
	file   *os.File
	reader *pdf.Reader
}

func openGlyphHandle(path string) (*glyphHandle, error) {
	file, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &glyphHandle{file: file, reader: r}, nil
}

func openGlyphPDF(path string, opts Options) (*glyphPDF, error) {
	pages, err := preflight(path)
	if err != nil {
		return nil, err
	}
	first, err := openGlyphHandle(path)
	if err != nil {
		return nil, err
	}
	if n := first.reader.NumPage(); n != pages {
		opts.Logger.Warn("page count mismatch", "pdfcpu", pages, "glyph", n)
		pages = min(pages, n)
	}

	g := &glyphPDF{
		pages:  pages,
		logger: opts.Logger,
		handles: newHandlePool(opts.Handles,
			func() (*glyphHandle, error) { return openGlyphHandle(path) },
			func(h *glyphHandle) error { return h.file.Close() }),
	}
	g.handles.put(first)
	opts.Logger.Debug("opened PDF", "backend", BackendGlyph, "pages", pages)
	return g, nil
}

func (g *glyphPDF) PageCount() int { return g.pages }

func (g *glyphPDF) Metadata() Metadata { return Metadata{Format: "pdf"} }

func (g *glyphPDF) Close() error { return g.handles.drain() }

func (g *glyphPDF) Page(ctx context.Context, n int) (page types.Page, err error) {
	if err := ctx.Err(); err != nil {
		return types.Page{}, err
	}
	if n < 1 || n > g.pages {
		return types.Page{}, &PageError{Page: n, Err: fmt.Errorf("out of range 1..%d", g.pages)}
	}

	h, err := g.handles.get()
	if err != nil {
		return types.Page{}, &PageError{Page: n, Err: err}
	}
	defer g.handles.put(h)

	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			page, err = types.Page{}, &PageError{Page: n, Err: fmt.Errorf("malformed page: %v", r)}
		}
	}()

	p := h.reader.Page(n)
	page = types.Page{Number: n, Width: letterWidth, Height: letterHeight}
	if p.V.IsNull() {
		return page, nil
	}
	page.Width, page.Height = mediaBox(p.V)
	if p.V.Key("Contents").Kind() == pdf.Null {
		return page, nil
	}

	page.Tokens = GlyphWords(p.Content().Text, n, page.Height)
	return page, nil
}

// mediaBox returns page dimensions, following inherited attributes and
// falling back to US Letter.
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; depth < 16 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return letterWidth, letterHeight
}

// GlyphWords merges glyphs into word tokens. Glyphs join a word when they
// share a baseline and the horizontal gap is under a quarter of the font
// size; space glyphs always end a word. Y is converted to top-down.
func GlyphWords(glyphs []pdf.Text, page int, pageHeight float64) []types.PositionedToken {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]pdf.Text(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if d := sorted[i].Y - sorted[j].Y; d > 0.5 || d < -0.5 {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var out []types.PositionedToken
	var word strings.Builder
	var cur pdf.Text
	var right float64
	emit := func() {
		txt := strings.TrimSpace(word.String())
		word.Reset()
		if txt == "" {
			return
		}
		size := cur.FontSize
		if size <= 0 {
			size = 10
		}
		bottom := pageHeight - cur.Y
		out = append(out, types.PositionedToken{
			Text:     txt,
			Page:     page,
			Left:     cur.X,
			Top:      bottom - size,
			Bottom:   bottom,
			FontSize: size,
			FontName: cur.Font,
		})
	}

	for _, g := range sorted {
		if strings.TrimSpace(g.S) == "" {
			emit()
			continue
		}
		if word.Len() > 0 {
			sameLine := g.Y-cur.Y <= 0.5 && cur.Y-g.Y <= 0.5
			if !sameLine || g.X-right > cur.FontSize*0.25 {
				emit()
			}
		}
		if word.Len() == 0 {
			cur = g
		}
		word.WriteString(g.S)
		right = g.X + g.W
	}
	emit()
	return out
}
