package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackzampolin/scroll/internal/types"
)

var partSuffix = regexp.MustCompile(`-(\d+)\.[A-Za-z]+$`)

// OpenParts opens a document split across several files (book-1.pdf,
// book-2.pdf, ...) as one Reader. Parts are ordered by numeric suffix and
// pages are renumbered continuously.
func OpenParts(paths []string, opts Options) (Reader, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no source paths provided")
	}
	if len(paths) == 1 {
		return Open(paths[0], opts)
	}

	m := &multiReader{}
	for _, p := range SortParts(paths) {
		r, err := Open(p, opts)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		m.parts = append(m.parts, r)
		m.offsets = append(m.offsets, m.total)
		m.total += r.PageCount()
	}
	return m, nil
}

type multiReader struct {
	parts   []Reader
	offsets []int
	total   int
}

func (m *multiReader) PageCount() int { return m.total }

func (m *multiReader) Metadata() Metadata { return m.parts[0].Metadata() }

func (m *multiReader) Page(ctx context.Context, n int) (types.Page, error) {
	if n < 1 || n > m.total {
		return types.Page{}, &PageError{Page: n, Err: fmt.Errorf("out of range 1..%d", m.total)}
	}
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] >= n }) - 1
	page, err := m.parts[i].Page(ctx, n-m.offsets[i])
	if err != nil {
		var pe *PageError
		if errors.As(err, &pe) {
			return types.Page{}, &PageError{Page: n, Err: pe.Err}
		}
		return types.Page{}, err
	}
	page.Number = n
	for j := range page.Tokens {
		page.Tokens[j].Page = n
	}
	return page, nil
}

func (m *multiReader) Close() error {
	var errs []error
	for _, r := range m.parts {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SortParts sorts paths by their numeric suffix.
// e.g., ["book-2.pdf", "book-1.pdf", "book-10.pdf"] -> ["book-1.pdf", "book-2.pdf", "book-10.pdf"]
func SortParts(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := partSuffix.FindStringSubmatch(sorted[i])
		mj := partSuffix.FindStringSubmatch(sorted[j])

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}

var trailingPart = regexp.MustCompile(`-\d+$`)

// DeriveTitle extracts a title from a file name.
// e.g., "steps-to-peace.pdf" -> "Steps To Peace"
// e.g., "my-book-1.pdf" -> "My Book"
func DeriveTitle(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = trailingPart.ReplaceAllString(name, "")

	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
