package assemble

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackzampolin/scroll/internal/grammar"
	"github.com/jackzampolin/scroll/internal/profile"
	"github.com/jackzampolin/scroll/internal/textutil"
	"github.com/jackzampolin/scroll/internal/types"
)

// Decision actions recorded in the extraction log.
const (
	ActionBookDetected      = "book_detected"
	ActionUnknownBook       = "unknown_book"
	ActionChapterInferred   = "chapter_inferred"
	ActionMarkerSkipped     = "marker_skipped"
	ActionDuplicateRejected = "duplicate_rejected"
	ActionDuplicateReplaced = "duplicate_replaced"
)

// Decision is one entry of the extraction decision log.
type Decision struct {
	Action     string  `json:"action"`
	WorkID     string  `json:"workId,omitempty"`
	Book       string  `json:"book,omitempty"`
	UnitID     string  `json:"unitId,omitempty"`
	Chapter    int     `json:"chapter,omitempty"`
	Unit       int     `json:"unit,omitempty"`
	Page       int     `json:"page,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Kept       string  `json:"kept,omitempty"`
	Dropped    string  `json:"dropped,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Config configures an Assembler.
type Config struct {
	Profile *profile.Profile
	// Normalize cleans unit text before emission. Defaults to
	// textutil.Normalize.
	Normalize func(string) string
	Logger    *slog.Logger
}

// Result is the output of one document's assembly.
type Result struct {
	Works     []types.Work
	Units     []types.Unit
	Decisions []Decision
	Warnings  []string
}

// UnitsFor returns the units of one work in emission order.
func (r *Result) UnitsFor(workID string) []types.Unit {
	var out []types.Unit
	for _, u := range r.Units {
		if u.WorkID == workID {
			out = append(out, u)
		}
	}
	return out
}

// Work returns the work with the given id.
func (r *Result) Work(workID string) (types.Work, bool) {
	for _, w := range r.Works {
		if w.WorkID == workID {
			return w, true
		}
	}
	return types.Work{}, false
}

// Assembler applies Step effects: it registers works, reconciles duplicate
// unit keys and keeps the decision log. One Assembler serves one document.
type Assembler struct {
	profile      *profile.Profile
	rules        Rules
	normalize    func(string) string
	headerTokens []string
	ratio        float64
	logger       *slog.Logger

	state     State
	works     map[string]*types.Work
	workOrder []string
	units     []types.Unit
	index     map[types.Key]int
	decisions []Decision
	warnings  []string
}

// New creates an Assembler for the given profile.
func New(cfg Config) *Assembler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalize := cfg.Normalize
	if normalize == nil {
		normalize = textutil.Normalize
	}
	return &Assembler{
		profile:      cfg.Profile,
		rules:        RulesFrom(cfg.Profile),
		normalize:    normalize,
		headerTokens: cfg.Profile.Vocabulary.HeaderTokens(),
		ratio:        cfg.Profile.Thresholds.WithDefaults().ReconcileRatio,
		logger:       logger.With("component", "assembler", "profile", cfg.Profile.Name),
		works:        make(map[string]*types.Work),
		index:        make(map[types.Key]int),
	}
}

// Run assembles a complete token stream.
func Run(tokens []grammar.Token, cfg Config) *Result {
	a := New(cfg)
	a.Feed(tokens...)
	return a.Finish()
}

// State returns the current fold state.
func (a *Assembler) State() State {
	return a.state
}

// Feed applies tokens in order.
func (a *Assembler) Feed(tokens ...grammar.Token) {
	for _, tok := range tokens {
		var effects []Effect
		a.state, effects = Step(a.state, tok, a.rules)
		a.apply(effects)
	}
}

// Finish flushes the open unit and returns the result. The Assembler must
// not be fed afterwards.
func (a *Assembler) Finish() *Result {
	var effects []Effect
	a.state, effects = Finish(a.state)
	a.apply(effects)

	res := &Result{
		Units:     slices.Clone(a.units),
		Decisions: slices.Clone(a.decisions),
		Warnings:  slices.Clone(a.warnings),
	}
	for _, id := range a.workOrder {
		w := *a.works[id]
		w.UnitIDs = slices.Clone(w.UnitIDs)
		w.TotalUnits = len(w.UnitIDs)
		res.Works = append(res.Works, w)
	}
	chapters := make(map[string]map[int]bool)
	for _, u := range a.units {
		if chapters[u.WorkID] == nil {
			chapters[u.WorkID] = make(map[int]bool)
		}
		chapters[u.WorkID][u.Chapter] = true
	}
	for i, w := range res.Works {
		res.Works[i].TotalChapters = len(chapters[w.WorkID])
	}

	a.logger.Info("assembly complete",
		"works", len(res.Works),
		"units", len(res.Units),
		"decisions", len(res.Decisions),
		"warnings", len(res.Warnings))
	return res
}

func (a *Assembler) apply(effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectRegister:
			a.register(e)
		case EffectFlush:
			a.emit(e.Candidate)
		case EffectInfer:
			a.decisions = append(a.decisions, Decision{
				Action:     ActionChapterInferred,
				WorkID:     a.workID(e.Book),
				Book:       e.Book.Name,
				Chapter:    e.Chapter,
				Page:       e.Token.Page,
				Reason:     string(e.Source),
				Confidence: e.Source.Score(),
			})
			a.logger.Debug("chapter inferred", "book", e.Book.Name, "chapter", e.Chapter, "source", e.Source)
		case EffectSkip:
			a.decisions = append(a.decisions, Decision{
				Action: ActionMarkerSkipped,
				Page:   e.Token.Page,
				Reason: "no current book",
				Kept:   e.Token.Raw,
			})
		}
	}
}

func (a *Assembler) workID(b profile.Book) string {
	if b.ShortCode == "" {
		return ""
	}
	return a.profile.WorkID(b)
}

func (a *Assembler) known(b profile.Book) bool {
	if b.ShortCode == "" {
		return false
	}
	vb, ok := a.profile.Vocabulary.Lookup(b.Name)
	return ok && vb.ShortCode == b.ShortCode
}

func (a *Assembler) register(e Effect) {
	b := e.Book
	if !a.known(b) {
		msg := fmt.Sprintf("Unknown book: %s", b.Name)
		a.warnings = append(a.warnings, msg)
		a.decisions = append(a.decisions, Decision{Action: ActionUnknownBook, Book: b.Name, Page: e.Token.Page})
		a.logger.Warn("unknown book header", "book", b.Name, "page", e.Token.Page)
		return
	}

	id := a.profile.WorkID(b)
	if _, ok := a.works[id]; ok {
		return
	}
	a.works[id] = &types.Work{
		WorkID:         id,
		CanonicalName:  b.Name,
		ShortCode:      b.ShortCode,
		Testament:      b.Testament,
		CanonicalOrder: b.Order,
		Genre:          b.Genre,
	}
	a.workOrder = append(a.workOrder, id)
	a.decisions = append(a.decisions, Decision{
		Action:     ActionBookDetected,
		WorkID:     id,
		Book:       b.Name,
		Page:       e.Token.Page,
		Confidence: types.SourceMarker.Score(),
	})
	a.logger.Debug("book detected", "book", b.Name, "work_id", id, "page", e.Token.Page)
}

func (a *Assembler) emit(c Candidate) {
	if !a.known(c.Book) {
		return
	}
	text := a.normalize(c.Text)
	if text == "" {
		return
	}

	workID := a.profile.WorkID(c.Book)
	work, ok := a.works[workID]
	if !ok {
		return
	}

	unit := types.Unit{
		UnitID:        types.UnitID(workID, c.Chapter, c.Unit),
		WorkID:        workID,
		Chapter:       c.Chapter,
		Unit:          c.Unit,
		Text:          text,
		Confidence:    c.ChapterSource.Score(),
		Heading:       c.Heading,
		ChapterSource: c.ChapterSource,
	}
	if c.PageStart > 0 {
		start, end := c.PageStart, c.PageEnd
		unit.PageStart, unit.PageEnd = &start, &end
	}

	key := unit.Key()
	idx, dup := a.index[key]
	if !dup {
		a.index[key] = len(a.units)
		a.units = append(a.units, unit)
		work.UnitIDs = append(work.UnitIDs, unit.UnitID)
		return
	}

	existing := a.units[idx]
	winner, loser, reason := Reconcile(existing.Text, unit.Text, a.headerTokens, a.ratio)
	action := ActionDuplicateRejected
	kept := existing
	if winner == unit.Text && winner != existing.Text {
		action = ActionDuplicateReplaced
		kept = unit
	}
	kept.Alternatives = mergeAlternatives(kept.Text, existing.Alternatives, loser)
	a.units[idx] = kept

	a.decisions = append(a.decisions, Decision{
		Action:  action,
		WorkID:  workID,
		Book:    c.Book.Name,
		UnitID:  unit.UnitID,
		Chapter: c.Chapter,
		Unit:    c.Unit,
		Page:    c.PageStart,
		Reason:  string(reason),
		Kept:    winner,
		Dropped: loser,
	})
	a.logger.Debug("duplicate unit reconciled",
		"unit_id", unit.UnitID,
		"action", action,
		"reason", reason)
}

// mergeAlternatives returns the sorted, de-duplicated alternative texts,
// excluding the winning text.
func mergeAlternatives(winner string, existing []string, extra ...string) []string {
	var out []string
	for _, s := range append(slices.Clone(existing), extra...) {
		if s != "" && s != winner {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
