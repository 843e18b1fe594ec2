// Package artifact writes the JSON output of an extraction run and reads it
// back for re-validation.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/jackzampolin/scroll/internal/assemble"
	"github.com/jackzampolin/scroll/internal/canon"
	"github.com/jackzampolin/scroll/internal/extract"
	"github.com/jackzampolin/scroll/internal/textutil"
	"github.com/jackzampolin/scroll/internal/toc"
	"github.com/jackzampolin/scroll/internal/types"
)

// BundleVersion is the version of the output layout.
const BundleVersion = "1.0"

// Output file names.
const (
	WorksFile      = "works.json"
	ChunksFile     = "chunks.json"
	LogFile        = "extraction-log.json"
	ReportFile     = "validation-report.json"
	DedupFile      = "dedup-report.json"
	BundleFile     = "bundle.json"
	ReadyFile      = "READY"
	unitFilePrefix = "units_chunk_"
)

const (
	DefaultChunkSize     = 1000
	DefaultTextChunkSize = 1000
)

// Options configures Write.
type Options struct {
	Dir string
	// Sources are the input files, hashed in order into the bundle.
	Sources []string
	// ChunkSize is the number of units per units_chunk file.
	ChunkSize int
	// TextChunkSize is the maximum characters of one structural chunk.
	TextChunkSize int
	// RunID defaults to a random UUID.
	RunID string
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Source identifies the input document.
type Source struct {
	Path   string   `json:"path"`
	Parts  []string `json:"parts,omitempty"`
	SHA256 string   `json:"sha256"`
	BLAKE3 string   `json:"blake3"`
	Pages  int      `json:"pages"`
}

// Counts summarizes a run.
type Counts struct {
	Works      int `json:"works"`
	Units      int `json:"units"`
	Chapters   int `json:"chapters"`
	Chunks     int `json:"chunks"`
	Decisions  int `json:"decisions"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
	Warnings   int `json:"warnings"`
}

// Bundle is the audit record of one run. RunID and CreatedAt are the only
// fields that differ between runs over the same input.
type Bundle struct {
	BundleVersion  string   `json:"bundleVersion"`
	RunID          string   `json:"runId"`
	CreatedAt      string   `json:"createdAt"`
	Source         Source   `json:"source"`
	Profile        string   `json:"profile"`
	Bounded        bool     `json:"bounded"`
	Passed         bool     `json:"passed"`
	DeterminismKey string   `json:"determinismKey"`
	Counts         Counts   `json:"counts"`
	QualityScore   int      `json:"qualityScore"`
	QualityGrade   string   `json:"qualityGrade"`
	Files          []string `json:"files"`
}

// Chunk is one structural text chunk of a unit.
type Chunk struct {
	ChunkID string `json:"chunkId"`
	UnitID  string `json:"unitId"`
	WorkID  string `json:"workId"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
}

// ExtractionLog is the decision log of a run.
type ExtractionLog struct {
	Bounded      bool                `json:"bounded"`
	TOCPages     []int               `json:"tocPages"`
	Ranges       []toc.Range         `json:"ranges"`
	Decisions    []assemble.Decision `json:"decisions"`
	Warnings     []string            `json:"warnings"`
	PageWarnings []string            `json:"pageWarnings"`
}

// DedupEntry records one reconciled duplicate key.
type DedupEntry struct {
	UnitID       string   `json:"unitId"`
	Action       string   `json:"action"`
	Reason       string   `json:"reason"`
	Kept         string   `json:"kept"`
	Dropped      string   `json:"dropped"`
	Alternatives []string `json:"alternatives"`
}

// DedupReport lists every duplicate key and how it was resolved.
type DedupReport struct {
	Total    int          `json:"total"`
	Replaced int          `json:"replaced"`
	Rejected int          `json:"rejected"`
	Entries  []DedupEntry `json:"entries"`
}

// Write validates every record against its schema and then writes the run
// into opts.Dir. The READY marker is written only when validation passed;
// a stale marker from an earlier run is always removed first.
func Write(res *extract.Result, profileName string, opts Options) (*Bundle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "artifact", "dir", opts.Dir)
	if res == nil || res.Report == nil {
		return nil, fmt.Errorf("artifact requires a validated result")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("artifact requires an output directory")
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	textChunk := opts.TextChunkSize
	if textChunk <= 0 {
		textChunk = DefaultTextChunkSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	works := normalizeWorks(res.Works)
	units := res.Units
	if units == nil {
		units = []types.Unit{}
	}
	for _, w := range works {
		if err := Check(KindWork, w); err != nil {
			return nil, fmt.Errorf("work %s: %w", w.WorkID, err)
		}
	}
	for _, u := range units {
		if err := Check(KindUnit, u); err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.UnitID, err)
		}
	}
	if err := Check(KindReport, res.Report); err != nil {
		return nil, err
	}

	key, err := DeterminismKey(works, units)
	if err != nil {
		return nil, err
	}
	src, err := hashSources(opts.Sources)
	if err != nil {
		return nil, err
	}
	src.Pages = res.PageCount

	chunks := chunkUnits(units, textChunk)
	dedup := dedupReport(res.Decisions, units)

	files := map[string]any{
		WorksFile:  works,
		ChunksFile: chunks,
		LogFile:    extractionLog(res),
		ReportFile: res.Report,
		DedupFile:  dedup,
	}
	for i := 0; i*chunkSize < len(units) || i == 0; i++ {
		end := min((i+1)*chunkSize, len(units))
		files[unitFileName(i+1)] = units[i*chunkSize : end]
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	score := res.Report.QualityScore()
	chapters := 0
	for _, w := range works {
		chapters += w.TotalChapters
	}
	bundle := &Bundle{
		BundleVersion:  BundleVersion,
		RunID:          runID,
		CreatedAt:      now().UTC().Format(time.RFC3339),
		Source:         src,
		Profile:        profileName,
		Bounded:        res.Bounded,
		Passed:         res.Report.Passed,
		DeterminismKey: key,
		Counts: Counts{
			Works:      len(works),
			Units:      len(units),
			Chapters:   chapters,
			Chunks:     len(chunks),
			Decisions:  len(res.Decisions),
			Duplicates: dedup.Total,
			Errors:     len(res.Report.Errors),
			Warnings:   len(res.Report.Warnings),
		},
		QualityScore: score,
		QualityGrade: canon.Grade(score),
		Files:        names,
	}
	if err := Check(KindBundle, bundle); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(filepath.Join(opts.Dir, ReadyFile)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale ready marker: %w", err)
	}
	if err := removeUnitFiles(opts.Dir); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := writeJSON(filepath.Join(opts.Dir, name), files[name]); err != nil {
			return nil, err
		}
	}
	if err := writeJSON(filepath.Join(opts.Dir, BundleFile), bundle); err != nil {
		return nil, err
	}
	if bundle.Passed {
		if err := os.WriteFile(filepath.Join(opts.Dir, ReadyFile), []byte(key+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write ready marker: %w", err)
		}
	}

	logger.Info("artifacts written",
		"files", len(names)+1,
		"units", len(units),
		"passed", bundle.Passed,
		"quality", fmt.Sprintf("%d (%s)", score, bundle.QualityGrade))
	return bundle, nil
}

// DeterminismKey hashes the canonical JSON of works and units. Two runs over
// the same input with the same settings produce the same key.
func DeterminismKey(works []types.Work, units []types.Unit) (string, error) {
	data, err := json.Marshal(struct {
		Works []types.Work `json:"works"`
		Units []types.Unit `json:"units"`
	}{normalizeWorks(works), units})
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Load reads works and units back from an output directory.
func Load(dir string) ([]types.Work, []types.Unit, error) {
	var works []types.Work
	if err := readJSON(filepath.Join(dir, WorksFile), &works); err != nil {
		return nil, nil, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, unitFilePrefix+"*.json"))
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no unit files in %s", dir)
	}
	sort.Strings(paths)
	var units []types.Unit
	for _, p := range paths {
		var chunk []types.Unit
		if err := readJSON(p, &chunk); err != nil {
			return nil, nil, err
		}
		units = append(units, chunk...)
	}
	return works, units, nil
}

// LoadBundle reads bundle.json from an output directory.
func LoadBundle(dir string) (*Bundle, error) {
	var b Bundle
	if err := readJSON(filepath.Join(dir, BundleFile), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Ready reports whether dir holds a passed run.
func Ready(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ReadyFile))
	return err == nil
}

// MarkReady writes or removes the READY marker after a re-validation.
func MarkReady(dir string, passed bool) error {
	path := filepath.Join(dir, ReadyFile)
	if !passed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove ready marker: %w", err)
		}
		return nil
	}
	b, err := LoadBundle(dir)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.DeterminismKey+"\n"), 0o644)
}

// WriteReport replaces validation-report.json in dir.
func WriteReport(dir string, r *canon.Report) error {
	if err := Check(KindReport, r); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ReportFile), r)
}

func unitFileName(n int) string {
	return fmt.Sprintf("%s%03d.json", unitFilePrefix, n)
}

func normalizeWorks(in []types.Work) []types.Work {
	out := make([]types.Work, len(in))
	for i, w := range in {
		if w.UnitIDs == nil {
			w.UnitIDs = []string{}
		}
		out[i] = w
	}
	return out
}

func chunkUnits(units []types.Unit, max int) []Chunk {
	out := []Chunk{}
	for _, u := range units {
		for i, text := range textutil.Chunk(u.Text, max) {
			out = append(out, Chunk{
				ChunkID: fmt.Sprintf("%s-c%02d", u.UnitID, i+1),
				UnitID:  u.UnitID,
				WorkID:  u.WorkID,
				Index:   i,
				Text:    text,
			})
		}
	}
	return out
}

func extractionLog(res *extract.Result) ExtractionLog {
	l := ExtractionLog{
		Bounded:      res.Bounded,
		TOCPages:     []int{},
		Ranges:       []toc.Range{},
		Decisions:    res.Decisions,
		Warnings:     res.Warnings,
		PageWarnings: res.PageWarnings,
	}
	if res.TOC != nil {
		if res.TOC.TOCPages != nil {
			l.TOCPages = res.TOC.TOCPages
		}
		if rs := res.TOC.Ranges(); rs != nil {
			l.Ranges = rs
		}
	}
	if l.Decisions == nil {
		l.Decisions = []assemble.Decision{}
	}
	if l.Warnings == nil {
		l.Warnings = []string{}
	}
	if l.PageWarnings == nil {
		l.PageWarnings = []string{}
	}
	return l
}

func dedupReport(decisions []assemble.Decision, units []types.Unit) DedupReport {
	alts := make(map[string][]string)
	for _, u := range units {
		if len(u.Alternatives) > 0 {
			alts[u.UnitID] = u.Alternatives
		}
	}
	r := DedupReport{Entries: []DedupEntry{}}
	for _, d := range decisions {
		switch d.Action {
		case assemble.ActionDuplicateReplaced:
			r.Replaced++
		case assemble.ActionDuplicateRejected:
			r.Rejected++
		default:
			continue
		}
		a := alts[d.UnitID]
		if a == nil {
			a = []string{}
		}
		r.Entries = append(r.Entries, DedupEntry{
			UnitID:       d.UnitID,
			Action:       d.Action,
			Reason:       d.Reason,
			Kept:         d.Kept,
			Dropped:      d.Dropped,
			Alternatives: slices.Clone(a),
		})
	}
	r.Total = r.Replaced + r.Rejected
	return r
}

func hashSources(paths []string) (Source, error) {
	src := Source{Path: strings.Join(paths, ",")}
	if len(paths) > 1 {
		src.Parts = slices.Clone(paths)
	}
	if len(paths) == 0 {
		return src, nil
	}
	sh := sha256.New()
	bh := blake3.New()
	w := io.MultiWriter(sh, bh)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return src, fmt.Errorf("failed to open source: %w", err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return src, fmt.Errorf("failed to hash %s: %w", p, err)
		}
	}
	src.SHA256 = hex.EncodeToString(sh.Sum(nil))
	src.BLAKE3 = hex.EncodeToString(bh.Sum(nil))
	return src, nil
}

func removeUnitFiles(dir string) error {
	stale, err := filepath.Glob(filepath.Join(dir, unitFilePrefix+"*.json"))
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to remove stale unit file: %w", err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
