package filter

import (
	"strings"
	"testing"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportFixture = `[
	{"name": "Amiya", "own": true, "elite": 2, "level": 50, "rarity": 6},
	{"name": "Surtr", "own": true, "elite": 1, "level": 80, "rarity": 6},
	{"name": "Texas", "own": true, "elite": 1, "level": 60, "rarity": 5},
	{"name": "Eyjafjalla", "own": false, "elite": 2, "level": 90, "rarity": 6}
]`

func TestImportToFilterFlow(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		configure  func(*models.FilterConfig)
		expectPass bool
		missing    int
	}{
		{
			name:       "owned elite 2 operator at skill 3",
			content:    `{"opers":[{"name":"Amiya","skill":3}],"groups":[]}`,
			expectPass: true,
		},
		{
			name:       "operator not owned in export",
			content:    `{"opers":[{"name":"Amiya","skill":3},{"name":"Eyjafjalla"}]}`,
			expectPass: false,
			missing:    1,
		},
		{
			name:       "operator not owned, one missing allowed",
			content:    `{"opers":[{"name":"Amiya","skill":3},{"name":"Eyjafjalla"}]}`,
			configure:  func(c *models.FilterConfig) { c.AllowOneMissing = true },
			expectPass: true,
			missing:    1,
		},
		{
			name:       "top rarity below elite 2",
			content:    `{"opers":[{"name":"Surtr"}]}`,
			expectPass: false,
			missing:    1,
		},
		{
			name:       "top rarity below elite 2, rule off",
			content:    `{"opers":[{"name":"Surtr","skill":2}]}`,
			configure:  func(c *models.FilterConfig) { c.RequireEliteTwoForTopRarity = false },
			expectPass: true,
		},
		{
			name:       "skill locked by elite rank",
			content:    `{"opers":[{"name":"Texas","skill":3}]}`,
			expectPass: false,
			missing:    1,
		},
		{
			name:       "group satisfied by a later member",
			content:    `{"groups":[{"name":"vanguard","opers":[{"name":"Myrtle"},{"name":"Texas","skill":2}]}]}`,
			expectPass: true,
		},
		{
			name:       "unparseable content",
			content:    `{"opers":[{"name":`,
			expectPass: true,
		},
	}

	im := roster.NewImporter()
	ops, err := im.Parse(strings.NewReader(exportFixture))
	require.NoError(t, err)
	idx := roster.Build(ops)
	assert.Equal(t, 3, idx.Len())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultFilterConfig()
			if tt.configure != nil {
				tt.configure(&cfg)
			}

			l := rawListing(t, 1, tt.content)
			got := EvaluateListing(l, idx, cfg)
			assert.Equal(t, tt.expectPass, got.Pass)
			assert.Equal(t, tt.missing, got.MissingCount)

			res := FilterListings([]models.RawListing{l}, idx, cfg)
			if tt.expectPass {
				assert.Len(t, res.Listings, 1)
				assert.Equal(t, 0, res.Removed)
			} else {
				assert.Empty(t, res.Listings)
				assert.Equal(t, 1, res.Removed)
			}
		})
	}
}
