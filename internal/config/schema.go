package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/source"
)

// Config holds scroll configuration.
// Stored at: ~/.scroll/config.yaml
type Config struct {
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Validation ValidationCfg `mapstructure:"validation" yaml:"validation"`
	Output     OutputCfg     `mapstructure:"output" yaml:"output"`
	LogLevel   string        `mapstructure:"log_level" yaml:"log_level"`
}

// ExtractionCfg configures reading and grammar.
type ExtractionCfg struct {
	Profile      string `mapstructure:"profile" yaml:"profile"` // "scripture", "paragraph"
	Reader       string `mapstructure:"reader" yaml:"reader"`   // "fragments", "glyph"
	Workers      int    `mapstructure:"workers" yaml:"workers"` // 0 = one per CPU
	PageRetries  int    `mapstructure:"page_retries" yaml:"page_retries"`
	RetryDelayMS int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	IDPrefix     string `mapstructure:"id_prefix" yaml:"id_prefix"` // overrides the profile's work id prefix
	PageOffset   int    `mapstructure:"page_offset" yaml:"page_offset"`
	// Vocabulary replaces the embedded book list (supports ${ENV_VAR} syntax).
	Vocabulary string             `mapstructure:"vocabulary" yaml:"vocabulary"`
	Thresholds profile.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
}

// ValidationCfg configures the canonical gate.
type ValidationCfg struct {
	Mode        string  `mapstructure:"mode" yaml:"mode"` // "sentinel", "full"
	MinFraction float64 `mapstructure:"min_fraction" yaml:"min_fraction"`
	// Canonical replaces the embedded reference counts (supports ${ENV_VAR} syntax).
	Canonical string `mapstructure:"canonical" yaml:"canonical"`
}

// OutputCfg configures artifact writing.
type OutputCfg struct {
	Format        string `mapstructure:"format" yaml:"format"` // "yaml", "json"
	ChunkSize     int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	TextChunkSize int    `mapstructure:"text_chunk_size" yaml:"text_chunk_size"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionCfg{
			Profile:      string(profile.KindScripture),
			Reader:       string(source.BackendFragments),
			Workers:      0,
			PageRetries:  3,
			RetryDelayMS: 100,
			Thresholds:   profile.DefaultThresholds(),
		},
		Validation: ValidationCfg{
			Mode:        string(canon.ModeSentinel),
			MinFraction: canon.DefaultMinFraction,
		},
		Output: OutputCfg{
			Format:        "yaml",
			ChunkSize:     1000,
			TextChunkSize: 1000,
		},
		LogLevel: "info",
	}
}

// Validate checks enumerated values and thresholds.
func (c *Config) Validate() error {
	if _, err := profile.ParseKind(c.Extraction.Profile); err != nil {
		return fmt.Errorf("extraction.profile: %w", err)
	}
	if _, err := source.ParseBackend(c.Extraction.Reader); err != nil {
		return fmt.Errorf("extraction.reader: %w", err)
	}
	if _, err := canon.ParseMode(c.Validation.Mode); err != nil {
		return fmt.Errorf("validation.mode: %w", err)
	}
	if f := c.Validation.MinFraction; f < 0 || f > 1 {
		return fmt.Errorf("validation.min_fraction %.2f must be within 0..1", f)
	}
	if err := c.Extraction.Thresholds.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("extraction.thresholds: %w", err)
	}
	switch c.Output.Format {
	case "yaml", "json":
	default:
		return fmt.Errorf("output.format: unknown format %q", c.Output.Format)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RetryDelay returns the page retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Extraction.RetryDelayMS) * time.Millisecond
}

// VocabularyPath returns the vocabulary override with env vars expanded.
func (c *Config) VocabularyPath() string {
	return ResolveEnvVars(c.Extraction.Vocabulary)
}

// CanonicalPath returns the canonical override with env vars expanded.
func (c *Config) CanonicalPath() string {
	return ResolveEnvVars(c.Validation.Canonical)
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
