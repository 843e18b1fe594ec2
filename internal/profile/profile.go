// Package profile describes the structural grammar of a document family:
// the book vocabulary, unit terminology and the tuned numeric thresholds.
package profile

import (
	"fmt"
	"strings"
)

// Kind selects the grammar used by the tokenizer.
type Kind string

const (
	// KindScripture parses book headers, chapter markers and numbered verses.
	KindScripture Kind = "scripture"
	// KindParagraph parses chapter headings and layout-delimited paragraphs.
	KindParagraph Kind = "paragraph"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindScripture, "":
		return KindScripture, nil
	case KindParagraph:
		return KindParagraph, nil
	default:
		return "", fmt.Errorf("unknown profile kind %q (want scripture or paragraph)", s)
	}
}

// Thresholds holds every empirically tuned number used by the pipeline.
type Thresholds struct {
	// ZoneBand is the fraction of page height/width for header, footer and margin bands.
	ZoneBand float64 `mapstructure:"zone_band" yaml:"zone_band" json:"zone_band"`
	// LineTolerance is the vertical distance in points within which tokens share a line.
	LineTolerance float64 `mapstructure:"line_tolerance" yaml:"line_tolerance" json:"line_tolerance"`

	TOCScanPages int `mapstructure:"toc_scan_pages" yaml:"toc_scan_pages" json:"toc_scan_pages"`
	TOCMinLines  int `mapstructure:"toc_min_lines" yaml:"toc_min_lines" json:"toc_min_lines"`

	// MinNumber and MaxNumber bound chapter and unit candidates.
	MinNumber int `mapstructure:"min_number" yaml:"min_number" json:"min_number"`
	MaxNumber int `mapstructure:"max_number" yaml:"max_number" json:"max_number"`
	// HeaderMaxWords bounds superset book-header matches.
	HeaderMaxWords int `mapstructure:"header_max_words" yaml:"header_max_words" json:"header_max_words"`

	// InferMinPrevUnit and InferMinLines gate chapter inference from a unit reset.
	InferMinPrevUnit int `mapstructure:"infer_min_prev_unit" yaml:"infer_min_prev_unit" json:"infer_min_prev_unit"`
	InferMinLines    int `mapstructure:"infer_min_lines" yaml:"infer_min_lines" json:"infer_min_lines"`

	// ReconcileRatio is the length ratio above which the longer candidate wins outright.
	ReconcileRatio float64 `mapstructure:"reconcile_ratio" yaml:"reconcile_ratio" json:"reconcile_ratio"`

	// Paragraph profile layout rules.
	ParagraphGapRatio float64 `mapstructure:"paragraph_gap_ratio" yaml:"paragraph_gap_ratio" json:"paragraph_gap_ratio"`
	ParagraphIndent   float64 `mapstructure:"paragraph_indent" yaml:"paragraph_indent" json:"paragraph_indent"`
	MinParagraphChars int     `mapstructure:"min_paragraph_chars" yaml:"min_paragraph_chars" json:"min_paragraph_chars"`
}

// DefaultThresholds returns the values tuned against the scripture corpus.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZoneBand:          0.08,
		LineTolerance:     2.0,
		TOCScanPages:      30,
		TOCMinLines:       5,
		MinNumber:         1,
		MaxNumber:         200,
		HeaderMaxWords:    8,
		InferMinPrevUnit:  20,
		InferMinLines:     50,
		ReconcileRatio:    1.5,
		ParagraphGapRatio: 1.5,
		ParagraphIndent:   15,
		MinParagraphChars: 10,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.ZoneBand <= 0 {
		t.ZoneBand = d.ZoneBand
	}
	if t.LineTolerance <= 0 {
		t.LineTolerance = d.LineTolerance
	}
	if t.TOCScanPages <= 0 {
		t.TOCScanPages = d.TOCScanPages
	}
	if t.TOCMinLines <= 0 {
		t.TOCMinLines = d.TOCMinLines
	}
	if t.MinNumber <= 0 {
		t.MinNumber = d.MinNumber
	}
	if t.MaxNumber <= 0 {
		t.MaxNumber = d.MaxNumber
	}
	if t.HeaderMaxWords <= 0 {
		t.HeaderMaxWords = d.HeaderMaxWords
	}
	if t.InferMinPrevUnit <= 0 {
		t.InferMinPrevUnit = d.InferMinPrevUnit
	}
	if t.InferMinLines <= 0 {
		t.InferMinLines = d.InferMinLines
	}
	if t.ReconcileRatio <= 1 {
		t.ReconcileRatio = d.ReconcileRatio
	}
	if t.ParagraphGapRatio <= 0 {
		t.ParagraphGapRatio = d.ParagraphGapRatio
	}
	if t.ParagraphIndent <= 0 {
		t.ParagraphIndent = d.ParagraphIndent
	}
	if t.MinParagraphChars <= 0 {
		t.MinParagraphChars = d.MinParagraphChars
	}
	return t
}

// Validate rejects threshold combinations that cannot work.
func (t Thresholds) Validate() error {
	if t.ZoneBand >= 0.5 {
		return fmt.Errorf("zone_band %.2f must be below 0.5", t.ZoneBand)
	}
	if t.MinNumber > t.MaxNumber {
		return fmt.Errorf("min_number %d exceeds max_number %d", t.MinNumber, t.MaxNumber)
	}
	return nil
}

// Profile is the grammar configuration handed to the tokenizer and assembler.
type Profile struct {
	Name string
	Kind Kind
	// IDPrefix prefixes work ids: <prefix>-<short code lower>.
	IDPrefix string
	// UnitTerm names units in logs and reports ("verse", "paragraph").
	UnitTerm string
	// ChapterWords are words that introduce an explicit chapter number.
	ChapterWords []string
	Vocabulary   *Vocabulary
	Thresholds   Thresholds
}

// Scripture returns the profile for Bibles and scripture collections.
func Scripture(vocab *Vocabulary, t Thresholds) *Profile {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Profile{
		Name:         "scripture",
		Kind:         KindScripture,
		IDPrefix:     "yah",
		UnitTerm:     "verse",
		ChapterWords: []string{"chapter", "psalm"},
		Vocabulary:   vocab,
		Thresholds:   t.WithDefaults(),
	}
}

// Paragraph returns a profile for a single general book. The book's title is
// the only vocabulary entry.
func Paragraph(title, shortCode string, t Thresholds) (*Profile, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("paragraph profile requires a title")
	}
	if shortCode == "" {
		shortCode = ShortCodeFor(title)
	}
	vocab, err := NewVocabulary([]Book{{
		Name:      title,
		ShortCode: strings.ToUpper(shortCode),
		Testament: "general",
		Order:     1,
		Genre:     "book",
	}})
	if err != nil {
		return nil, err
	}

	t = t.WithDefaults()
	if t.LineTolerance == DefaultThresholds().LineTolerance {
		t.LineTolerance = 3.0
	}
	return &Profile{
		Name:         "paragraph",
		Kind:         KindParagraph,
		IDPrefix:     "doc",
		UnitTerm:     "paragraph",
		ChapterWords: []string{"chapter"},
		Vocabulary:   vocab,
		Thresholds:   t,
	}, nil
}

// WorkID derives the stable work identifier for a book.
func (p *Profile) WorkID(b Book) string {
	return p.IDPrefix + "-" + strings.ToLower(b.ShortCode)
}

// ShortCodeFor builds a short code from the initials of a title, e.g.
// "The Ministry of Healing" -> "TMOH".
func ShortCodeFor(title string) string {
	var b strings.Builder
	for _, w := range strings.Fields(title) {
		for _, r := range w {
			if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
				b.WriteRune(r)
				break
			}
		}
	}
	code := strings.ToUpper(b.String())
	if code == "" {
		return "DOC"
	}
	if len(code) > 8 {
		code = code[:8]
	}
	return code
}
