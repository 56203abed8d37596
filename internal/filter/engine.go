package filter

import (
	"sync"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
	"github.com/rs/zerolog"
)

// Engine filters listing batches and keeps running statistics. It is safe
// for concurrent use.
type Engine struct {
	log zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats tracks filtering statistics
type Stats struct {
	Batches     int            `json:"batches"`
	Evaluated   int            `json:"evaluated"`
	Passed      int            `json:"passed"`
	Removed     int            `json:"removed"`
	Unparseable int            `json:"unparseable"`
	MissReasons map[string]int `json:"miss_reasons"` // Unmet requirements by reason
}

// Decision is the per-listing trace of a filter run
type Decision struct {
	ID          string
	Title       string
	Evaluation  Evaluation
	Unparseable bool
	Err         error // decode error of an unparseable listing
	Misses      []Miss
}

// Miss describes one unmet requirement
type Miss struct {
	Name   string // operator or group name
	Reason string
}

// NewEngine creates a new engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "filter").Logger(),
		stats: Stats{
			MissReasons: make(map[string]int),
		},
	}
}

// Stats returns a copy of the accumulated statistics
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.stats
	out.MissReasons = make(map[string]int, len(e.stats.MissReasons))
	for k, v := range e.stats.MissReasons {
		out.MissReasons[k] = v
	}
	return out
}

// Filter applies FilterListings semantics and records statistics
func (e *Engine) Filter(listings []models.RawListing, idx *roster.Index, cfg models.FilterConfig) Result {
	res, _ := e.FilterTrace(listings, idx, cfg)
	return res
}

// FilterTrace is Filter plus the per-listing decisions. Decisions are nil
// when filtering is inactive.
func (e *Engine) FilterTrace(listings []models.RawListing, idx *roster.Index, cfg models.FilterConfig) (Result, []Decision) {
	if !Active(idx, cfg) {
		return Result{Listings: listings}, nil
	}

	kept := make([]models.RawListing, 0, len(listings))
	decisions := make([]Decision, 0, len(listings))
	reasons := make(map[string]int)
	unparseable := 0

	for _, l := range listings {
		d := Explain(l, idx, cfg)
		if d.Unparseable {
			unparseable++
			e.log.Debug().
				Err(d.Err).
				Str("id", d.ID).
				Msg("unparseable listing kept")
		}
		for _, m := range d.Misses {
			reasons[m.Reason]++
		}
		if d.Evaluation.Pass {
			kept = append(kept, l)
		} else {
			e.log.Debug().
				Str("id", d.ID).
				Str("title", d.Title).
				Int("missing", d.Evaluation.MissingCount).
				Msg("listing removed")
		}
		decisions = append(decisions, d)
	}

	res := Result{Listings: kept, Removed: len(listings) - len(kept)}

	e.mu.Lock()
	e.stats.Batches++
	e.stats.Evaluated += len(listings)
	e.stats.Passed += len(kept)
	e.stats.Removed += res.Removed
	e.stats.Unparseable += unparseable
	for r, n := range reasons {
		e.stats.MissReasons[r] += n
	}
	e.mu.Unlock()

	e.log.Debug().
		Int("total", len(listings)).
		Int("removed", res.Removed).
		Int("unparseable", unparseable).
		Msg("batch filtered")

	return res, decisions
}

// Explain evaluates a listing and lists every unmet requirement
func Explain(listing models.RawListing, idx *roster.Index, cfg models.FilterConfig) Decision {
	out := Decode(listing)
	if out.Unparseable() {
		return Decision{
			ID:          out.ID,
			Evaluation:  Evaluation{Pass: true},
			Unparseable: true,
			Err:         out.Err,
		}
	}

	var misses []Miss
	for _, oper := range out.Content.Opers {
		if reason := operatorMiss(oper, idx, cfg); reason != "" {
			misses = append(misses, Miss{Name: oper.Name, Reason: reason})
		}
	}
	for _, group := range out.Content.Groups {
		if !IsGroupEligible(group, idx, cfg) {
			misses = append(misses, Miss{Name: group.Name, Reason: MissGroup})
		}
	}

	return Decision{
		ID:    out.ID,
		Title: out.Title,
		Evaluation: Evaluation{
			Pass:         passes(len(misses), cfg),
			MissingCount: len(misses),
		},
		Misses: misses,
	}
}
