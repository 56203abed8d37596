package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/maa-copilot-filter/internal/models"
)

// ErrNotAnArray is returned when the import document is valid JSON but not
// a list of operators
var ErrNotAnArray = errors.New("roster import must be a JSON array")

// Importer parses roster exports
type Importer struct {
	stats Stats
}

// Stats tracks import statistics
type Stats struct {
	Total       int
	Owned       int
	Skipped     int
	Duplicates  int
	SkipReasons map[string]int // Detailed breakdown of skipped entries
}

// SkipReason constants
const (
	SkipNotOwned     = "not-owned"
	SkipInvalidEntry = "invalid-entry"
)

// NewImporter creates a new importer
func NewImporter() *Importer {
	return &Importer{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped entry with reason
func (im *Importer) skip(reason string) {
	im.stats.Skipped++
	im.stats.SkipReasons[reason]++
}

// Stats returns import statistics
func (im *Importer) Stats() Stats {
	return im.stats
}

// Parse reads a roster export and returns the owned operators in input
// order, MaxSkill derived from each entry's elite rank
func (im *Importer) Parse(r io.Reader) ([]models.Operator, error) {
	var entries []json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotAnArray
		}
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	if entries == nil {
		return nil, ErrNotAnArray
	}

	seen := make(map[string]bool, len(entries))
	ops := make([]models.Operator, 0, len(entries))

	for _, raw := range entries {
		im.stats.Total++

		var entry models.RawOperator
		if err := json.Unmarshal(raw, &entry); err != nil {
			im.skip(SkipInvalidEntry)
			continue
		}
		if !entry.Own {
			im.skip(SkipNotOwned)
			continue
		}

		if seen[entry.Name] {
			im.stats.Duplicates++
		}
		seen[entry.Name] = true

		im.stats.Owned++
		ops = append(ops, entry.ToOperator())
	}

	return ops, nil
}
