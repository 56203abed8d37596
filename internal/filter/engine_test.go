package filter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMatchesFilterListings(t *testing.T) {
	idx := roster.Build([]models.Operator{
		{Name: "Amiya", Elite: 2, Rarity: 6, MaxSkill: 3},
		{Name: "Surtr", Elite: 1, Rarity: 6, MaxSkill: 2},
	})
	cfg := models.DefaultFilterConfig()

	listings := []models.RawListing{
		rawListing(t, 1, `{"opers":[{"name":"Amiya","skill":3}]}`),
		rawListing(t, 2, `{"opers":[{"name":"Surtr"}]}`),
		rawListing(t, 3, `{"opers":[{"name":"Amiya","skill":3}],"groups":[{"name":"guard","opers":[{"name":"Thorns"}]}]}`),
		rawListing(t, 4, `{{`),
	}

	e := NewEngine(zerolog.Nop())
	got := e.Filter(listings, idx, cfg)
	want := FilterListings(listings, idx, cfg)
	assert.Equal(t, want, got)

	stats := e.Stats()
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 4, stats.Evaluated)
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 1, stats.Unparseable)
	assert.Equal(t, 1, stats.MissReasons[MissNeedsEliteTwo])
	assert.Equal(t, 1, stats.MissReasons[MissGroup])
}

func TestEngineInactiveRecordsNothing(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	listings := []models.RawListing{rawListing(t, 1, `{"opers":[{"name":"Amiya"}]}`)}

	res, decisions := e.FilterTrace(listings, roster.Build(nil), models.DefaultFilterConfig())
	assert.Equal(t, listings, res.Listings)
	assert.Nil(t, decisions)
	assert.Equal(t, 0, e.Stats().Batches)
}

func TestExplain(t *testing.T) {
	idx := roster.Build([]models.Operator{
		{Name: "Texas", Elite: 1, Rarity: 5, MaxSkill: 2},
		{Name: "Surtr", Elite: 0, Rarity: 6, MaxSkill: 1},
	})
	cfg := models.DefaultFilterConfig()

	content := map[string]any{
		"doc": map[string]any{"title": "low-rarity clear"},
		"opers": []models.CopilotOper{
			{Name: "Texas", Skill: 3},
			{Name: "Surtr"},
			{Name: "Exusiai"},
		},
		"groups": []models.CopilotGroup{{Name: "medic", Opers: opers("Shining")}},
	}

	d := Explain(listing(t, 9, content), idx, cfg)
	assert.Equal(t, "9", d.ID)
	assert.Equal(t, "low-rarity clear", d.Title)
	assert.False(t, d.Unparseable)
	assert.Equal(t, Evaluation{Pass: false, MissingCount: 4}, d.Evaluation)
	assert.Equal(t, []Miss{
		{Name: "Texas", Reason: MissSkillLocked},
		{Name: "Surtr", Reason: MissNeedsEliteTwo},
		{Name: "Exusiai", Reason: MissNotOwned},
		{Name: "medic", Reason: MissGroup},
	}, d.Misses)
}

func TestExplainUnparseable(t *testing.T) {
	d := Explain(rawListing(t, 3, `nope`), roster.Build(nil), models.DefaultFilterConfig())
	assert.True(t, d.Unparseable)
	assert.Equal(t, "3", d.ID)
	assert.Error(t, d.Err)
	assert.True(t, d.Evaluation.Pass)
}

func TestEngineLogsUnparseableListings(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(zerolog.New(&buf).Level(zerolog.DebugLevel))
	idx := roster.Build([]models.Operator{{Name: "Amiya", Elite: 2, Rarity: 6, MaxSkill: 3}})

	e.Filter([]models.RawListing{rawListing(t, 5, `{"opers":[`)}, idx, models.DefaultFilterConfig())

	var entry map[string]any
	line, err := buf.ReadBytes('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "unparseable listing kept", entry["message"])
	assert.Equal(t, "5", entry["id"])
	assert.Contains(t, entry["error"], "listing 5 content")
}

func TestEngineStatsCopy(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	idx := roster.Build([]models.Operator{{Name: "Amiya", Elite: 2, Rarity: 6, MaxSkill: 3}})
	e.Filter([]models.RawListing{rawListing(t, 1, `{"opers":[{"name":"Ifrit"}]}`)}, idx, models.DefaultFilterConfig())

	stats := e.Stats()
	stats.MissReasons[MissNotOwned] = 100
	assert.Equal(t, 1, e.Stats().MissReasons[MissNotOwned])
}
