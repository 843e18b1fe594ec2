package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/extract"
	"github.com/jackzampolin/scroll/internal/output"
)

var (
	extractFlags  runFlags
	extractOutDir string
)

var extractCmd = &cobra.Command{
	Use:   "extract <source> [more parts...]",
	Short: "Extract works and units from a document",
	Long: `Extract canonical works and units from a PDF, EPUB, DOCX or Markdown
document and write them to an output directory.

A document split across files (book-1.pdf, book-2.pdf) is read as one
document when all parts are given.

Output files:
  works.json, units_chunk_NNN.json, chunks.json, extraction-log.json,
  validation-report.json, dedup-report.json, bundle.json and READY
  (only when validation passed).

Exit codes: 0 passed, 1 failed or error, 2 passed with warnings.

Examples:
  scroll extract kjv.pdf -d out/kjv
  scroll extract kjv.pdf -d out/gen --book Genesis --mode full
  scroll extract steps-to-peace.epub -d out/sc --profile paragraph`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractOutDir == "" {
			return fmt.Errorf("an output directory is required (-d)")
		}
		summary, err := runExtraction(cmd.Context(), args, extractOutDir, extractFlags, cfgMgr.Get())
		if err != nil && !errors.Is(err, extract.ErrValidationFailed) {
			return err
		}
		if perr := output.Print(summary); perr != nil {
			return perr
		}
		return outcome(summary.Passed, len(summary.Warnings))
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutDir, "dir", "d", "", "output directory")
	extractFlags.register(extractCmd, true)
}
