package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/artifact"
	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/config"
	"github.com/jackzampolin/scroll/internal/extract"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/source"
)

// runFlags are the extraction flags shared by extract, toc and watch. Zero
// values fall back to the config file.
type runFlags struct {
	books       []string
	profile     string
	mode        string
	title       string
	idPrefix    string
	reader      string
	noTOC       bool
	workers     int
	pageOffset  int
	minFraction float64
}

func (f *runFlags) register(cmd *cobra.Command, withValidation bool) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "document profile: scripture or paragraph")
	cmd.Flags().StringVar(&f.title, "title", "", "work name for the paragraph profile (default: document title)")
	cmd.Flags().StringVar(&f.idPrefix, "id-prefix", "", "work id prefix (default: profile prefix)")
	cmd.Flags().StringVar(&f.reader, "reader", "", "PDF reader: fragments or glyph")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent page reads (default: one per CPU)")
	cmd.Flags().IntVar(&f.pageOffset, "page-offset", 0, "added to printed TOC page numbers")
	if withValidation {
		cmd.Flags().StringSliceVar(&f.books, "book", nil, "extract only the named book (repeatable)")
		cmd.Flags().StringVar(&f.mode, "mode", "", "validation mode: sentinel or full")
		cmd.Flags().BoolVar(&f.noTOC, "no-toc", false, "ignore the table of contents")
		cmd.Flags().Float64Var(&f.minFraction, "min-fraction", 0, "share of expected chapters and units required per book")
	}
}

// workSummary is one line of the run summary.
type workSummary struct {
	Name     string `json:"name" yaml:"name"`
	WorkID   string `json:"workId" yaml:"workId"`
	Chapters int    `json:"chapters" yaml:"chapters"`
	Units    int    `json:"units" yaml:"units"`
}

// runSummary is printed after extraction.
type runSummary struct {
	Source         []string      `json:"source" yaml:"source"`
	Output         string        `json:"output" yaml:"output"`
	Profile        string        `json:"profile" yaml:"profile"`
	Pages          int           `json:"pages" yaml:"pages"`
	Bounded        bool          `json:"tocBounded" yaml:"tocBounded"`
	Works          []workSummary `json:"works" yaml:"works"`
	Units          int           `json:"units" yaml:"units"`
	Passed         bool          `json:"passed" yaml:"passed"`
	Errors         []string      `json:"errors" yaml:"errors"`
	Warnings       []string      `json:"warnings" yaml:"warnings"`
	QualityScore   int           `json:"qualityScore" yaml:"qualityScore"`
	QualityGrade   string        `json:"qualityGrade" yaml:"qualityGrade"`
	DeterminismKey string        `json:"determinismKey" yaml:"determinismKey"`
	Elapsed        string        `json:"elapsed" yaml:"elapsed"`
}

// openSource opens paths as one document.
func openSource(paths []string, f runFlags, cfg *config.Config) (source.Reader, error) {
	backend, err := source.ParseBackend(firstNonEmpty(f.reader, cfg.Extraction.Reader))
	if err != nil {
		return nil, err
	}
	return source.OpenParts(paths, source.Options{
		Backend: backend,
		Handles: workerCount(f, cfg),
		Logger:  logger,
	})
}

// buildProfile resolves the grammar profile for a document.
func buildProfile(f runFlags, cfg *config.Config, meta source.Metadata, firstPath string) (*profile.Profile, error) {
	kind, err := profile.ParseKind(firstNonEmpty(f.profile, cfg.Extraction.Profile))
	if err != nil {
		return nil, err
	}
	th := cfg.Extraction.Thresholds

	var p *profile.Profile
	switch kind {
	case profile.KindParagraph:
		title := firstNonEmpty(f.title, meta.Title, source.DeriveTitle(firstPath))
		p, err = profile.Paragraph(title, "", th)
		if err != nil {
			return nil, err
		}
	default:
		var vocab *profile.Vocabulary
		if path := cfg.VocabularyPath(); path != "" {
			vocab, err = profile.LoadVocabularyFile(path)
			if err != nil {
				return nil, err
			}
		}
		p = profile.Scripture(vocab, th)
	}
	if prefix := firstNonEmpty(f.idPrefix, cfg.Extraction.IDPrefix); prefix != "" {
		p.IDPrefix = prefix
	}
	return p, nil
}

// loadCanon returns the configured canonical reference.
func loadCanon(cfg *config.Config) (*canon.Canon, error) {
	if path := cfg.CanonicalPath(); path != "" {
		return canon.LoadFile(path)
	}
	return canon.Default(), nil
}

// runExtraction extracts paths into outDir. A failed validation still
// writes artifacts and returns the summary with an error wrapping
// extract.ErrValidationFailed.
func runExtraction(ctx context.Context, paths []string, outDir string, f runFlags, cfg *config.Config) (*runSummary, error) {
	r, err := openSource(paths, f, cfg)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p, err := buildProfile(f, cfg, r.Metadata(), paths[0])
	if err != nil {
		return nil, err
	}
	c, err := loadCanon(cfg)
	if err != nil {
		return nil, err
	}
	mode, err := canon.ParseMode(firstNonEmpty(f.mode, cfg.Validation.Mode))
	if err != nil {
		return nil, err
	}
	minFraction := f.minFraction
	if minFraction <= 0 {
		minFraction = cfg.Validation.MinFraction
	}
	pageOffset := f.pageOffset
	if pageOffset == 0 {
		pageOffset = cfg.Extraction.PageOffset
	}

	res, runErr := extract.Run(ctx, r, extract.Options{
		Profile:     p,
		Books:       f.books,
		Mode:        mode,
		MinFraction: minFraction,
		Canon:       c,
		NoTOC:       f.noTOC,
		PageOffset:  pageOffset,
		Workers:     workerCount(f, cfg),
		Attempts:    cfg.Extraction.PageRetries,
		RetryDelay:  cfg.RetryDelay(),
		Logger:      logger,
	})
	if runErr != nil && !errors.Is(runErr, extract.ErrValidationFailed) {
		return nil, runErr
	}

	bundle, err := artifact.Write(res, p.Name, artifact.Options{
		Dir:           outDir,
		Sources:       source.SortParts(paths),
		ChunkSize:     cfg.Output.ChunkSize,
		TextChunkSize: cfg.Output.TextChunkSize,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write artifacts: %w", err)
	}

	s := &runSummary{
		Source:         paths,
		Output:         outDir,
		Profile:        p.Name,
		Pages:          res.PageCount,
		Bounded:        res.Bounded,
		Units:          len(res.Units),
		Passed:         res.Report.Passed,
		Errors:         res.Report.Errors,
		Warnings:       res.Report.Warnings,
		QualityScore:   bundle.QualityScore,
		QualityGrade:   bundle.QualityGrade,
		DeterminismKey: bundle.DeterminismKey,
		Elapsed:        res.Elapsed.Round(time.Millisecond).String(),
	}
	for _, w := range res.Works {
		s.Works = append(s.Works, workSummary{
			Name:     w.CanonicalName,
			WorkID:   w.WorkID,
			Chapters: w.TotalChapters,
			Units:    w.TotalUnits,
		})
	}
	return s, runErr
}

// outcome maps a validation verdict to the exit code contract: 0 passed,
// 1 failed, 2 passed with warnings.
func outcome(passed bool, warnings int) error {
	switch {
	case !passed:
		return &exitError{code: exitFailed}
	case warnings > 0:
		return &exitError{code: exitWarnings}
	default:
		return nil
	}
}

func workerCount(f runFlags, cfg *config.Config) int {
	n := f.workers
	if n <= 0 {
		n = cfg.Extraction.Workers
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
