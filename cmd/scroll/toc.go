package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/ingest"
	"github.com/jackzampolin/scroll/internal/output"
	"github.com/jackzampolin/scroll/internal/toc"
)

var tocFlags runFlags

// tocSummary is the printed result of the toc command.
type tocSummary struct {
	Pages    int         `json:"pages" yaml:"pages"`
	TOCPages []int       `json:"tocPages" yaml:"tocPages"`
	Entries  []toc.Entry `json:"entries" yaml:"entries"`
	Ranges   []toc.Range `json:"ranges" yaml:"ranges"`
}

var tocCmd = &cobra.Command{
	Use:   "toc <source> [more parts...]",
	Short: "Show the table of contents and per-book page ranges",
	Long: `Locate the table of contents of a document and print the book entries
and the page range each book is extracted from. A range ending at -1 runs to
the end of the document.

Examples:
  scroll toc kjv.pdf
  scroll toc kjv.pdf --page-offset 12 -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgMgr.Get()
		r, err := openSource(args, tocFlags, cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := buildProfile(tocFlags, cfg, r.Metadata(), args[0])
		if err != nil {
			return err
		}
		th := p.Thresholds.WithDefaults()
		pages, err := ingest.Pages(cmd.Context(), r, ingest.Config{
			Workers:       workerCount(tocFlags, cfg),
			Attempts:      cfg.Extraction.PageRetries,
			RetryDelay:    cfg.RetryDelay(),
			ZoneBand:      th.ZoneBand,
			LineTolerance: th.LineTolerance,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		pageOffset := tocFlags.pageOffset
		if pageOffset == 0 {
			pageOffset = cfg.Extraction.PageOffset
		}
		res := toc.NewLocator(toc.Config{
			Vocabulary: p.Vocabulary,
			ScanPages:  th.TOCScanPages,
			MinLines:   th.TOCMinLines,
			PageOffset: pageOffset,
			Logger:     logger,
		}).Locate(pages.AllLines())

		summary := tocSummary{
			Pages:    r.PageCount(),
			TOCPages: res.TOCPages,
			Entries:  res.Entries,
			Ranges:   res.Ranges(),
		}
		if !res.Found() {
			logger.Warn("no table of contents found; extraction will read the whole document")
		}
		return output.Print(summary)
	},
}

func init() {
	tocFlags.register(tocCmd, false)
}
