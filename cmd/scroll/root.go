package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/config"
	"github.com/jackzampolin/scroll/internal/home"
	"github.com/jackzampolin/scroll/internal/output"
	"github.com/jackzampolin/scroll/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	cfgMgr *config.Manager
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scroll",
	Short: "Recover book, chapter and verse structure from PDF, EPUB, DOCX and Markdown",
	Long: `Scroll turns a document into canonical works and units using only layout
and a deterministic grammar.

The pipeline includes:
  - Zone classification of page headers, footers and margins
  - Table of contents location and per-book page ranges
  - Line assembly and tokenizing against a book vocabulary
  - Chapter/verse assembly with duplicate reconciliation
  - Validation against canonical reference counts`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.scroll/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "scroll home directory (default: ~/.scroll)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "", "output format: yaml or json (default from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)",
	)

	// Load config and set up logging before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cfgMgr, err = config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		format := outputFormat
		if format == "" {
			format = cfg.Output.Format
		}
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.SetFormat(f)

		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		lvl, err := config.ParseLogLevel(level)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)
		if file := cfgMgr.ConfigFile(); file != "" {
			logger.Debug("config loaded", "file", file)
		}
		return nil
	}

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tocCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// homeDirectory resolves --home.
func homeDirectory() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return h, nil
}
