package roster

import (
	"strings"
	"testing"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLaterDuplicateWins(t *testing.T) {
	idx := Build([]models.Operator{
		{Name: "Amiya", Elite: 1, Level: 50, Rarity: 5, MaxSkill: 2},
		{Name: "Texas", Elite: 2, Level: 40, Rarity: 5, MaxSkill: 3},
		{Name: "Amiya", Elite: 2, Level: 80, Rarity: 5, MaxSkill: 3},
	})

	assert.Equal(t, 2, idx.Len())

	op, ok := idx.Lookup("Amiya")
	require.True(t, ok)
	assert.Equal(t, 2, op.Elite)
	assert.Equal(t, 80, op.Level)
	assert.Equal(t, 3, op.MaxSkill)
}

func TestBuildAcceptsOutOfRangeFields(t *testing.T) {
	idx := Build([]models.Operator{{Name: "Odd", Elite: 7, Rarity: 9, MaxSkill: 3}})

	op, ok := idx.Lookup("Odd")
	require.True(t, ok)
	assert.Equal(t, 7, op.Elite)
	assert.Equal(t, 9, op.Rarity)
}

func TestLookupAbsent(t *testing.T) {
	idx := Build(nil)
	_, ok := idx.Lookup("Amiya")
	assert.False(t, ok)
	assert.True(t, idx.Empty())

	var nilIdx *Index
	_, ok = nilIdx.Lookup("Amiya")
	assert.False(t, ok)
	assert.Equal(t, 0, nilIdx.Len())
	assert.Nil(t, nilIdx.Operators())
}

func TestOperatorsSorted(t *testing.T) {
	idx := Build([]models.Operator{{Name: "Texas"}, {Name: "Amiya"}, {Name: "Exusiai"}})

	var names []string
	for _, op := range idx.Operators() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"Amiya", "Exusiai", "Texas"}, names)
}

func TestImporterParse(t *testing.T) {
	input := `[
		{"id": "char_002_amiya", "name": "Amiya", "own": true, "elite": 2, "level": 50, "rarity": 5, "potential": 6},
		{"name": "Texas", "own": true, "elite": 1, "level": 70, "rarity": 5},
		{"name": "Ifrit", "own": false, "elite": 0, "level": 1, "rarity": 6},
		{"name": "Lancet-2", "own": true, "elite": 0, "level": 30, "rarity": 1},
		{"name": "Broken", "own": true, "elite": "two"},
		42
	]`

	im := NewImporter()
	ops, err := im.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, models.Operator{Name: "Amiya", Elite: 2, Level: 50, Rarity: 5, MaxSkill: 3}, ops[0])
	assert.Equal(t, 2, ops[1].MaxSkill)
	assert.Equal(t, 1, ops[2].MaxSkill)

	stats := im.Stats()
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 3, stats.Owned)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 1, stats.SkipReasons[SkipNotOwned])
	assert.Equal(t, 2, stats.SkipReasons[SkipInvalidEntry])
}

func TestImporterRejectsNonArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "object", input: `{"name": "Amiya"}`, wantErr: ErrNotAnArray},
		{name: "string", input: `"Amiya"`, wantErr: ErrNotAnArray},
		{name: "null", input: `null`, wantErr: ErrNotAnArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImporter().Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestImporterInvalidJSON(t *testing.T) {
	_, err := NewImporter().Parse(strings.NewReader(`[{"name": `))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAnArray)
}

func TestImportThenBuildReplaceSemantics(t *testing.T) {
	input := `[
		{"name": "Amiya", "own": true, "elite": 0, "level": 1, "rarity": 5},
		{"name": "Amiya", "own": true, "elite": 2, "level": 60, "rarity": 5}
	]`

	im := NewImporter()
	ops, err := im.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, im.Stats().Duplicates)

	op, ok := Build(ops).Lookup("Amiya")
	require.True(t, ok)
	assert.Equal(t, 2, op.Elite)
	assert.Equal(t, 60, op.Level)
	assert.Equal(t, 3, op.MaxSkill)
}

func TestMaxSkillForElite(t *testing.T) {
	tests := []struct {
		elite int
		want  int
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{3, 3},
		{-1, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.MaxSkillForElite(tt.elite), "elite %d", tt.elite)
	}
}
