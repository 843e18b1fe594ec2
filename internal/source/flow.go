package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/scroll/internal/types"
)

// Block is one paragraph or heading of a flow document.
type Block struct {
	// Level is the heading level 1-6, or 0 for body text.
	Level int
	// Lines are the source lines of the block. Body blocks usually hold one
	// paragraph per line.
	Lines []string
	// PageBreak starts the block on a new page.
	PageBreak bool
}

// Synthetic page geometry for flow documents.
const (
	flowLeft     = 72.0
	flowTop      = 72.0
	flowBottom   = 720.0
	bodyFontSize = 11.0
	lineSpacing  = 1.3
)

func headingSize(level int) float64 {
	if level <= 0 {
		return bodyFontSize
	}
	return float64(24 - 2*min(level, 6))
}

// Layout places blocks on synthetic pages. Lines within a block are single
// spaced; blocks are separated by a gap of two body lines, which the
// paragraph grammar reads as a paragraph break.
func Layout(blocks []Block) []types.Page {
	var pages []types.Page
	page := types.Page{Number: 1, Width: letterWidth, Height: letterHeight}
	y := flowTop
	newPage := func() {
		pages = append(pages, page)
		page = types.Page{Number: page.Number + 1, Width: letterWidth, Height: letterHeight}
		y = flowTop
	}

	for _, b := range blocks {
		var lines []string
		for _, l := range b.Lines {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}
		if b.PageBreak && len(page.Tokens) > 0 {
			newPage()
		}
		if y > flowTop {
			y += 2 * bodyFontSize
		}

		size := headingSize(b.Level)
		for _, l := range lines {
			if y+size > flowBottom && len(page.Tokens) > 0 {
				newPage()
			}
			page.Tokens = append(page.Tokens, types.PositionedToken{
				Text:     l,
				Page:     page.Number,
				Left:     flowLeft,
				Top:      y,
				Bottom:   y + size,
				FontSize: size,
			})
			y += size * lineSpacing
		}
	}
	if len(page.Tokens) > 0 || len(pages) == 0 {
		pages = append(pages, page)
	}
	return pages
}

// flowReader serves pre-laid-out pages.
type flowReader struct {
	pages []types.Page
	meta  Metadata
}

func newFlowReader(blocks []Block, meta Metadata) *flowReader {
	return &flowReader{pages: Layout(blocks), meta: meta}
}

func (f *flowReader) PageCount() int { return len(f.pages) }

func (f *flowReader) Metadata() Metadata { return f.meta }

func (f *flowReader) Close() error { return nil }

func (f *flowReader) Page(ctx context.Context, n int) (types.Page, error) {
	if err := ctx.Err(); err != nil {
		return types.Page{}, err
	}
	if n < 1 || n > len(f.pages) {
		return types.Page{}, &PageError{Page: n, Err: fmt.Errorf("out of range 1..%d", len(f.pages))}
	}
	p := f.pages[n-1]
	p.Tokens = append([]types.PositionedToken(nil), p.Tokens...)
	return p, nil
}
