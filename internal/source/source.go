// Package source opens documents and yields positioned tokens page by page.
//
// PDFs are read through tabula (fragment level) or ledongthuc/pdf (glyph
// level). Flow formats without fixed pages (Markdown, DOCX, EPUB) are laid
// out onto synthetic US Letter pages so the same zone and line stages apply.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/scroll/internal/types"
)

// ErrUnsupportedFormat is returned for file extensions with no reader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// PageError reports a failure reading one page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Metadata is document-level information used to name works.
type Metadata struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Format string `json:"format"`
}

// Reader yields the tokens of one document. Page is safe for concurrent use.
type Reader interface {
	// PageCount returns the number of pages.
	PageCount() int
	// Page returns tokens for the 1-based page n.
	Page(ctx context.Context, n int) (types.Page, error)
	Metadata() Metadata
	Close() error
}

// Backend selects the PDF reader.
type Backend string

const (
	// BackendFragments reads positioned text fragments with tabula.
	BackendFragments Backend = "fragments"
	// BackendGlyph reads individual glyphs with ledongthuc/pdf and groups
	// them into words.
	BackendGlyph Backend = "glyph"
)

// ParseBackend converts a string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendFragments, "":
		return BackendFragments, nil
	case BackendGlyph:
		return BackendGlyph, nil
	default:
		return "", fmt.Errorf("unknown reader backend %q (want fragments or glyph)", s)
	}
}

// Options configures Open.
type Options struct {
	Backend Backend
	// Handles bounds the open PDF handles shared by concurrent page reads.
	Handles int
	Logger  *slog.Logger
}

// Supported reports whether path has a readable extension.
func Supported(path string) bool {
	_, err := formatOf(path)
	return err == nil
}

func formatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return "pdf", nil
	case ".epub":
		return "epub", nil
	case ".docx":
		return "docx", nil
	case ".md", ".markdown", ".txt":
		return "markdown", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Open opens a document by extension.
func Open(path string, opts Options) (Reader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger.With("component", "source", "file", filepath.Base(path))

	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case "pdf":
		if opts.Backend == BackendGlyph {
			return openGlyphPDF(path, opts)
		}
		return openFragmentPDF(path, opts)
	case "epub":
		return openEPUB(path, opts)
	case "docx":
		return openDOCX(path, opts)
	default:
		return openMarkdown(path, opts)
	}
}
