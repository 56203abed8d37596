package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ state.Persister = (*Store)(nil)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "filter.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestLoadDefaults(t *testing.T) {
	s, _ := openTemp(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Roster)
	assert.Equal(t, models.DefaultFilterConfig(), got.Filter)
}

func TestSaveAndReload(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	ops := []models.Operator{{Name: "Amiya", Elite: 2, Level: 60, Rarity: 5, MaxSkill: 3}}
	require.NoError(t, s.SaveRoster(ctx, ops))

	cfg := models.DefaultFilterConfig()
	cfg.AllowOneMissing = true
	cfg.RequireEliteTwoForTopRarity = false
	require.NoError(t, s.SaveFilterConfig(ctx, cfg))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ops, got.Roster)
	assert.Equal(t, cfg, got.Filter)
}

func TestSetOverwrites(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyEnabled, true))
	require.NoError(t, s.Set(ctx, KeyEnabled, false))

	var enabled bool
	found, err := s.Get(ctx, KeyEnabled, &enabled)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, enabled)

	found, err = s.Get(ctx, "panelPosition", &enabled)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStateWritesThrough(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	st := state.New(nil, models.DefaultFilterConfig(), s)
	require.NoError(t, st.ReplaceRoster(ctx, []models.Operator{{Name: "Texas", Elite: 1, MaxSkill: 2}}))
	_, err := st.UpdateConfig(ctx, func(c *models.FilterConfig) { c.Enabled = false })
	require.NoError(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Roster, 1)
	assert.Equal(t, "Texas", got.Roster[0].Name)
	assert.False(t, got.Filter.Enabled)
}
