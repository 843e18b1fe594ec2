package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed assets/books.yaml
var booksYAML []byte

// ErrEmptyVocabulary is returned when a vocabulary file defines no books.
var ErrEmptyVocabulary = errors.New("vocabulary defines no books")

// Book is one entry of the canonical vocabulary.
type Book struct {
	Name      string   `yaml:"name" json:"name"`
	ShortCode string   `yaml:"short_code" json:"short_code"`
	Testament string   `yaml:"testament" json:"testament"`
	Order     int      `yaml:"order" json:"order"`
	Genre     string   `yaml:"genre" json:"genre"`
	Aliases   []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

type vocabularyFile struct {
	Books []Book `yaml:"books"`
}

// name is one searchable spelling of a book.
type name struct {
	lower string
	book  int
}

// Vocabulary is the closed set of known book names.
// It is read-only after construction and safe for concurrent use.
type Vocabulary struct {
	books []Book
	exact map[string]int
	// names sorted longest first so the first hit is the longest match.
	names []name
}

// NewVocabulary builds a vocabulary from a list of books.
func NewVocabulary(books []Book) (*Vocabulary, error) {
	if len(books) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		books: make([]Book, len(books)),
		exact: make(map[string]int),
	}
	copy(v.books, books)

	for i, b := range v.books {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("book %d has no name", i)
		}
		if b.ShortCode == "" {
			return nil, fmt.Errorf("book %q has no short code", b.Name)
		}
		for _, spelling := range append([]string{b.Name}, b.Aliases...) {
			key := foldSpace(spelling)
			if prev, dup := v.exact[key]; dup && prev != i {
				return nil, fmt.Errorf("name %q defined for both %q and %q", spelling, v.books[prev].Name, b.Name)
			}
			v.exact[key] = i
			v.names = append(v.names, name{lower: key, book: i})
		}
	}

	sort.SliceStable(v.names, func(i, j int) bool {
		if len(v.names[i].lower) != len(v.names[j].lower) {
			return len(v.names[i].lower) > len(v.names[j].lower)
		}
		return v.names[i].lower < v.names[j].lower
	})
	return v, nil
}

// LoadVocabulary parses a books YAML document.
func LoadVocabulary(r io.Reader) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	return NewVocabulary(f.Books)
}

// LoadVocabularyFile reads a books YAML file from disk.
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary %s: %w", path, err)
	}
	defer f.Close()
	return LoadVocabulary(f)
}

// DefaultVocabulary returns the embedded canonical vocabulary.
func DefaultVocabulary() *Vocabulary {
	var f vocabularyFile
	if err := yaml.Unmarshal(booksYAML, &f); err != nil {
		panic(fmt.Sprintf("embedded books.yaml: %v", err))
	}
	v, err := NewVocabulary(f.Books)
	if err != nil {
		panic(fmt.Sprintf("embedded books.yaml: %v", err))
	}
	return v
}

// Books returns the books in canonical order.
func (v *Vocabulary) Books() []Book {
	out := make([]Book, len(v.books))
	copy(out, v.books)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Len returns the number of books.
func (v *Vocabulary) Len() int {
	return len(v.books)
}

// Lookup returns the book whose name or alias equals text, ignoring case and
// repeated whitespace.
func (v *Vocabulary) Lookup(text string) (Book, bool) {
	i, ok := v.exact[foldSpace(text)]
	if !ok {
		return Book{}, false
	}
	return v.books[i], true
}

// Match returns the longest book name contained in text at word boundaries.
// "1 John 3" matches "1 John", not "John"; "Remarks" matches nothing.
func (v *Vocabulary) Match(text string) (Book, bool) {
	lower := foldSpace(text)
	for _, n := range v.names {
		if containsWord(lower, n.lower) {
			return v.books[n.book], true
		}
	}
	return Book{}, false
}

// HeaderTokens returns the upper-cased strings whose presence marks text as
// header-like: "CHAPTER" plus every book name.
func (v *Vocabulary) HeaderTokens() []string {
	tokens := []string{"CHAPTER"}
	for _, b := range v.Books() {
		tokens = append(tokens, strings.ToUpper(b.Name))
	}
	return tokens
}

// containsWord reports whether word occurs in s delimited by non-alphanumerics.
func containsWord(s, word string) bool {
	for start := 0; start <= len(s)-len(word); {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundaryBefore(s, idx) && boundaryAfter(s, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// foldSpace lower-cases s and collapses runs of whitespace.
func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
