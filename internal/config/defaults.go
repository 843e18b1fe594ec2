package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries. They are the
// viper defaults and document every key.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	t := d.Extraction.Thresholds
	return []Entry{
		// ===================
		// Extraction
		// ===================
		{
			Key:         "extraction.profile",
			Value:       d.Extraction.Profile,
			Description: "Document profile: scripture (book/chapter/verse) or paragraph (chapter/paragraph)",
		},
		{
			Key:         "extraction.reader",
			Value:       d.Extraction.Reader,
			Description: "PDF backend: fragments (positioned text runs) or glyph (per-glyph positions)",
		},
		{
			Key:         "extraction.workers",
			Value:       d.Extraction.Workers,
			Description: "Concurrent page reads (0 = one per CPU)",
		},
		{
			Key:         "extraction.page_retries",
			Value:       d.Extraction.PageRetries,
			Description: "Attempts per page before it becomes a page warning",
		},
		{
			Key:         "extraction.retry_delay_ms",
			Value:       d.Extraction.RetryDelayMS,
			Description: "Delay between page read attempts in milliseconds",
		},
		{
			Key:         "extraction.id_prefix",
			Value:       d.Extraction.IDPrefix,
			Description: "Work id prefix override (empty = profile default)",
		},
		{
			Key:         "extraction.page_offset",
			Value:       d.Extraction.PageOffset,
			Description: "Added to printed TOC page numbers to get document pages",
		},
		{
			Key:         "extraction.vocabulary",
			Value:       d.Extraction.Vocabulary,
			Description: "Book vocabulary YAML replacing the embedded list",
		},

		// ===================
		// Thresholds
		// ===================
		{
			Key:         "extraction.thresholds.zone_band",
			Value:       t.ZoneBand,
			Description: "Fraction of page height/width treated as header, footer or margin",
		},
		{
			Key:         "extraction.thresholds.line_tolerance",
			Value:       t.LineTolerance,
			Description: "Vertical points within which tokens share a line",
		},
		{
			Key:         "extraction.thresholds.toc_scan_pages",
			Value:       t.TOCScanPages,
			Description: "Leading pages scanned for a table of contents",
		},
		{
			Key:         "extraction.thresholds.toc_min_lines",
			Value:       t.TOCMinLines,
			Description: "TOC-like lines needed for a page to count as TOC",
		},
		{
			Key:         "extraction.thresholds.min_number",
			Value:       t.MinNumber,
			Description: "Smallest accepted chapter or unit number",
		},
		{
			Key:         "extraction.thresholds.max_number",
			Value:       t.MaxNumber,
			Description: "Largest accepted chapter or unit number",
		},
		{
			Key:         "extraction.thresholds.header_max_words",
			Value:       t.HeaderMaxWords,
			Description: "Maximum words in a line recognised as a book header",
		},
		{
			Key:         "extraction.thresholds.infer_min_prev_unit",
			Value:       t.InferMinPrevUnit,
			Description: "Previous unit number required before a reset to 1 infers a new chapter",
		},
		{
			Key:         "extraction.thresholds.infer_min_lines",
			Value:       t.InferMinLines,
			Description: "Text lines since the last chapter required before inferring a new chapter",
		},
		{
			Key:         "extraction.thresholds.reconcile_ratio",
			Value:       t.ReconcileRatio,
			Description: "Length ratio at which the longer duplicate wins outright",
		},
		{
			Key:         "extraction.thresholds.paragraph_gap_ratio",
			Value:       t.ParagraphGapRatio,
			Description: "Vertical gap, in line heights, that starts a new paragraph",
		},
		{
			Key:         "extraction.thresholds.paragraph_indent",
			Value:       t.ParagraphIndent,
			Description: "First-line indent in points that starts a new paragraph",
		},
		{
			Key:         "extraction.thresholds.min_paragraph_chars",
			Value:       t.MinParagraphChars,
			Description: "Paragraphs shorter than this never break",
		},

		// ===================
		// Validation
		// ===================
		{
			Key:         "validation.mode",
			Value:       d.Validation.Mode,
			Description: "Canonical check: sentinel (spot checks) or full (every chapter)",
		},
		{
			Key:         "validation.min_fraction",
			Value:       d.Validation.MinFraction,
			Description: "Share of expected chapters and units below which a book fails",
		},
		{
			Key:         "validation.canonical",
			Value:       d.Validation.Canonical,
			Description: "Canonical reference YAML replacing the embedded counts",
		},

		// ===================
		// Output
		// ===================
		{
			Key:         "output.format",
			Value:       d.Output.Format,
			Description: "CLI output format: yaml or json",
		},
		{
			Key:         "output.chunk_size",
			Value:       d.Output.ChunkSize,
			Description: "Units per units_chunk_NNN.json file",
		},
		{
			Key:         "output.text_chunk_size",
			Value:       d.Output.TextChunkSize,
			Description: "Maximum characters per structural chunk in chunks.json",
		},

		{
			Key:         "log_level",
			Value:       d.LogLevel,
			Description: "Log level: debug, info, warn or error",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns ErrNoDefault if no default exists for the key.
func GetDefault(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
