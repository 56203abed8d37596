// Package state owns the process-wide roster and filter settings.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
)

// Persister stores state changes. Implemented by store.Store.
type Persister interface {
	SaveRoster(ctx context.Context, ops []models.Operator) error
	SaveFilterConfig(ctx context.Context, cfg models.FilterConfig) error
}

// Snapshot is the state a single filter call works on
type Snapshot struct {
	Index  *roster.Index
	Config models.FilterConfig
}

// State guards the roster index and filter config. Filter calls read a
// snapshot; imports and settings changes replace values wholesale.
type State struct {
	mu           sync.RWMutex
	index        *roster.Index
	config       models.FilterConfig
	lastFiltered int
	filtered     bool
	persist      Persister
}

// New creates state from persisted values. p may be nil.
func New(ops []models.Operator, cfg models.FilterConfig, p Persister) *State {
	return &State{
		index:   roster.Build(ops),
		config:  cfg,
		persist: p,
	}
}

// Snapshot returns the values current at call time
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Index: s.index, Config: s.config}
}

// Config returns the current filter config
func (s *State) Config() models.FilterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Roster returns the current roster sorted by name
func (s *State) Roster() []models.Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Operators()
}

// ReplaceRoster rebuilds the index from ops and persists the roster
func (s *State) ReplaceRoster(ctx context.Context, ops []models.Operator) error {
	idx := roster.Build(ops)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SaveRoster(ctx, idx.Operators()); err != nil {
			return fmt.Errorf("failed to save roster: %w", err)
		}
	}
	s.index = idx
	return nil
}

// UpdateConfig applies fn to a copy of the config, persists the result
// and swaps it in. The config is unchanged if persisting fails.
func (s *State) UpdateConfig(ctx context.Context, fn func(*models.FilterConfig)) (models.FilterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.config
	fn(&next)

	if s.persist != nil {
		if err := s.persist.SaveFilterConfig(ctx, next); err != nil {
			return s.config, fmt.Errorf("failed to save settings: %w", err)
		}
	}
	s.config = next
	return next, nil
}

// SetTopRarity changes the top rarity tier. It comes from the config
// file and is not persisted.
func (s *State) SetTopRarity(tier int) {
	s.mu.Lock()
	s.config.TopRarity = tier
	s.mu.Unlock()
}

// RecordFiltered stores the removed count of the latest filtered batch
func (s *State) RecordFiltered(removed int) {
	s.mu.Lock()
	s.lastFiltered = removed
	s.filtered = true
	s.mu.Unlock()
}

// Status is the summary shown to the user
type Status struct {
	Operators       int    `json:"operators"`
	Enabled         bool   `json:"enabled"`
	AllowOneMissing bool   `json:"allow_one_missing"`
	RequireEliteTwo bool   `json:"require_elite_two"`
	TopRarity       int    `json:"top_rarity"`
	LastFiltered    *int   `json:"last_filtered,omitempty"`
	Message         string `json:"status"`
}

// Status returns the current summary
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Operators:       s.index.Len(),
		Enabled:         s.config.Enabled,
		AllowOneMissing: s.config.AllowOneMissing,
		RequireEliteTwo: s.config.RequireEliteTwoForTopRarity,
		TopRarity:       s.config.TopRarity,
	}
	if s.filtered {
		n := s.lastFiltered
		st.LastFiltered = &n
	}

	msg := fmt.Sprintf("%d operators imported", st.Operators)
	switch {
	case !st.Enabled:
		msg += " (filter disabled)"
	case st.LastFiltered != nil:
		msg += fmt.Sprintf(", %d listings filtered out", *st.LastFiltered)
	default:
		msg += " (filter enabled)"
	}
	st.Message = msg
	return st
}
