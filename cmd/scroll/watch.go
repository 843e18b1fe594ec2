package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/scroll/internal/config"
	"github.com/jackzampolin/scroll/internal/extract"
	"github.com/jackzampolin/scroll/internal/home"
	"github.com/jackzampolin/scroll/internal/source"
	"github.com/jackzampolin/scroll/internal/textutil"
)

var (
	watchFlags  runFlags
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [inbox-dir]",
	Short: "Extract every document dropped into an inbox directory",
	Long: `Watch an inbox directory (default: ~/.scroll/inbox) and extract each new
PDF, EPUB, DOCX or Markdown file once into ~/.scroll/runs/<name>.

Files already present at startup are processed first. A file is picked up
after it has stopped changing for the settle interval. Documents whose run
directory already holds a bundle are skipped. Config file changes apply to
the next document.

Examples:
  scroll watch
  scroll watch ./incoming --profile paragraph`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := homeDirectory()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if watchSettle <= 0 {
			watchSettle = 100 * time.Millisecond
		}
		dir := h.InboxPath()
		if len(args) == 1 {
			dir = args[0]
		}

		cfgMgr.OnChange(func(cfg *config.Config) {
			logger.Info("config reloaded", "file", cfgMgr.ConfigFile())
		})
		if cfgMgr.ConfigFile() != "" {
			cfgMgr.WatchConfig()
		}
		return watchInbox(cmd.Context(), dir, h)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", time.Second, "quiet period before a changed file is read")
	watchFlags.register(watchCmd, true)
}

// watchInbox processes dir until ctx is cancelled.
func watchInbox(ctx context.Context, dir string, h *home.Dir) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", dir, "runs", h.RunsPath())

	pending := make(map[string]time.Time)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			pending[filepath.Join(dir, e.Name())] = time.Time{}
		}
	}

	ticker := time.NewTicker(watchSettle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for _, path := range settled(pending, now, watchSettle) {
				delete(pending, path)
				if err := processInboxFile(ctx, path, h); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Error("extraction failed", "file", path, "error", err)
				}
			}
		}
	}
}

// settled returns pending paths untouched for at least settle, sorted.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var out []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// runName derives the run directory name for a document.
func runName(path string) string {
	base := filepath.Base(path)
	return textutil.Slug(strings.TrimSuffix(base, filepath.Ext(base)))
}

func processInboxFile(ctx context.Context, path string, h *home.Dir) error {
	if !source.Supported(path) || strings.HasPrefix(filepath.Base(path), ".") {
		return nil
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil
	}
	name := runName(path)
	if name == "" {
		return nil
	}
	if h.RunExists(name) {
		logger.Debug("already extracted", "file", path, "run", name)
		return nil
	}

	logger.Info("extracting", "file", path, "run", name)
	summary, err := runExtraction(ctx, []string{path}, h.RunPath(name), watchFlags, cfgMgr.Get())
	if err != nil && !errors.Is(err, extract.ErrValidationFailed) {
		return err
	}
	logger.Info("extracted", "file", path, "run", name,
		"passed", summary.Passed, "units", summary.Units,
		"quality", summary.QualityGrade, "warnings", len(summary.Warnings))
	return nil
}
