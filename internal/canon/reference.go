// Package canon validates assembled output against a canonical reference
// structure of expected chapter and unit counts.
package canon

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed assets/canonical.yaml
var defaultCanonYAML []byte

// ErrUnknownBook is returned when a book has no canonical reference.
var ErrUnknownBook = errors.New("no canonical reference for book")

// Reference is the expected structure of one book.
type Reference struct {
	Name      string `yaml:"name"`
	ShortCode string `yaml:"short_code"`
	Testament string `yaml:"testament"`
	Chapters  int    `yaml:"chapters"`
	Units     int    `yaml:"units"`
	// Last is the signature final unit.
	Last     Position `yaml:"last"`
	Sentinel bool     `yaml:"sentinel"`
	// ChapterUnits holds the unit count of each chapter, when known.
	ChapterUnits []int `yaml:"chapter_units"`
}

// Position is a chapter and unit number.
type Position struct {
	Chapter int `yaml:"chapter"`
	Unit    int `yaml:"unit"`
}

// String renders the position as chapter:unit.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Chapter, p.Unit)
}

// HasChapterUnits reports whether full per-chapter validation is possible.
func (r Reference) HasChapterUnits() bool {
	return len(r.ChapterUnits) == r.Chapters && r.Chapters > 0
}

func (r Reference) validate() error {
	if r.Name == "" || r.ShortCode == "" {
		return fmt.Errorf("reference missing name or short code")
	}
	if r.Chapters <= 0 || r.Units <= 0 {
		return fmt.Errorf("%s: chapters and units must be positive", r.Name)
	}
	if r.Last.Chapter != r.Chapters || r.Last.Unit <= 0 {
		return fmt.Errorf("%s: last unit %s does not close chapter %d", r.Name, r.Last, r.Chapters)
	}
	if len(r.ChapterUnits) == 0 {
		return nil
	}
	if len(r.ChapterUnits) != r.Chapters {
		return fmt.Errorf("%s: %d chapter counts for %d chapters", r.Name, len(r.ChapterUnits), r.Chapters)
	}
	sum := 0
	for _, n := range r.ChapterUnits {
		sum += n
	}
	if sum != r.Units {
		return fmt.Errorf("%s: chapter counts sum to %d, expected %d", r.Name, sum, r.Units)
	}
	if r.ChapterUnits[r.Chapters-1] != r.Last.Unit {
		return fmt.Errorf("%s: last chapter has %d units, last unit is %d", r.Name, r.ChapterUnits[r.Chapters-1], r.Last.Unit)
	}
	return nil
}

// Canon is a set of book references.
type Canon struct {
	books []Reference
	index map[string]int
}

// NewCanon validates and indexes references by name and short code.
func NewCanon(refs []Reference) (*Canon, error) {
	c := &Canon{index: make(map[string]int)}
	for _, r := range refs {
		if err := r.validate(); err != nil {
			return nil, err
		}
		for _, key := range []string{r.Name, r.ShortCode} {
			k := strings.ToLower(key)
			if _, dup := c.index[k]; dup {
				return nil, fmt.Errorf("duplicate canonical reference %q", key)
			}
			c.index[k] = len(c.books)
		}
		c.books = append(c.books, r)
	}
	return c, nil
}

// Load reads a canon YAML document.
func Load(r io.Reader) (*Canon, error) {
	var doc struct {
		Books []Reference `yaml:"books"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode canon: %w", err)
	}
	return NewCanon(doc.Books)
}

// LoadFile reads a canon YAML file.
func LoadFile(path string) (*Canon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded canon.
func Default() *Canon {
	c, err := Load(strings.NewReader(string(defaultCanonYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded canon is invalid: %v", err))
	}
	return c
}

// Lookup finds a reference by name or short code, case-insensitively.
func (c *Canon) Lookup(book string) (Reference, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(book))]
	if !ok {
		return Reference{}, false
	}
	return c.books[i], true
}

// Sentinels returns the sentinel references in file order.
func (c *Canon) Sentinels() []Reference {
	var out []Reference
	for _, r := range c.books {
		if r.Sentinel {
			out = append(out, r)
		}
	}
	return out
}

// Books returns all references in file order.
func (c *Canon) Books() []Reference {
	return append([]Reference(nil), c.books...)
}
