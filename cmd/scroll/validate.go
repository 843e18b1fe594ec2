package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/artifact"
	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/output"
	"github.com/jackzampolin/scroll/internal/profile"
)

var (
	validateMode        string
	validateBooks       []string
	validateMinFraction float64
)

var validateCmd = &cobra.Command{
	Use:   "validate <output-dir>",
	Short: "Re-validate an extraction output directory",
	Long: `Validate the works and units of an earlier extraction against the
canonical reference. The validation report is replaced and the READY marker
is written or removed to match the new verdict.

Examples:
  scroll validate out/kjv
  scroll validate out/kjv --mode full --book Genesis --book Exodus`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		cfg := cfgMgr.Get()

		works, units, err := artifact.Load(dir)
		if err != nil {
			return err
		}
		bundle, err := artifact.LoadBundle(dir)
		if err != nil {
			return err
		}
		c, err := loadCanon(cfg)
		if err != nil {
			return err
		}

		mode, err := canon.ParseMode(firstNonEmpty(validateMode, cfg.Validation.Mode))
		if err != nil {
			return err
		}
		term := "verse"
		if bundle.Profile == string(profile.KindParagraph) {
			mode, term = canon.ModeStructural, "paragraph"
		}
		minFraction := validateMinFraction
		if minFraction <= 0 {
			minFraction = cfg.Validation.MinFraction
		}

		report, err := canon.Validate(works, units, c, canon.Options{
			Mode:        mode,
			Books:       validateBooks,
			MinFraction: minFraction,
			UnitTerm:    term,
		})
		if err != nil {
			return err
		}
		if err := artifact.WriteReport(dir, report); err != nil {
			return err
		}
		if err := artifact.MarkReady(dir, report.Passed); err != nil {
			return err
		}
		logger.Info("validation complete", "dir", dir, "passed", report.Passed,
			"errors", len(report.Errors), "warnings", len(report.Warnings))

		if err := output.Print(report); err != nil {
			return err
		}
		return outcome(report.Passed, len(report.Warnings))
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateMode, "mode", "", "validation mode: sentinel or full")
	validateCmd.Flags().StringSliceVar(&validateBooks, "book", nil, "books in scope (repeatable)")
	validateCmd.Flags().Float64Var(&validateMinFraction, "min-fraction", 0, "share of expected chapters and units required per book")
}
