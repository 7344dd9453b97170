package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsOn(t *testing.T) {
	ff := NewFeatureFlags()

	for _, name := range []string{
		FeatureStreakProtection,
		FeatureWagerSettlement,
		FeatureSuperTrial,
		FeatureDoubleOrNothing,
	} {
		assert.True(t, ff.IsEnabledFor(name, "u1"), name)
	}
	assert.False(t, ff.IsEnabledFor("economy.unknown", "u1"))
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_ECONOMY_SUPER_TRIAL", "false")
	t.Setenv("FEATURE_ECONOMY_DOUBLE_OR_NOTHING", "0")
	t.Setenv("FEATURE_ECONOMY_WAGER_SETTLEMENT", "not-a-value")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabledFor(FeatureSuperTrial, "u1"))
	assert.False(t, ff.IsEnabledFor(FeatureDoubleOrNothing, "u1"))
	assert.True(t, ff.IsEnabledFor(FeatureWagerSettlement, "u1"))
}

func TestFeatureFlags_RolloutIsStableAndProportional(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureSuperTrial, 30))

	enabled := 0
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("user-%d", i)
		first := ff.IsEnabledFor(FeatureSuperTrial, id)
		assert.Equal(t, first, ff.IsEnabledFor(FeatureSuperTrial, id))
		if first {
			enabled++
		}
	}

	assert.InDelta(t, 300, enabled, 80)
}

func TestFeatureFlags_UserOverride(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureStreakProtection, 0))

	ff.SetUserOverride("beta", FeatureStreakProtection, true)
	assert.True(t, ff.IsEnabledFor(FeatureStreakProtection, "beta"))
	assert.False(t, ff.IsEnabledFor(FeatureStreakProtection, "other"))

	ff.ClearUserOverrides("beta")
	assert.False(t, ff.IsEnabledFor(FeatureStreakProtection, "beta"))
}

func TestFeatureFlags_Window(t *testing.T) {
	ff := NewFeatureFlags()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ff.now = func() time.Time { return now }

	from := now.Add(time.Hour)
	require.NoError(t, ff.SetWindow(FeatureDoubleOrNothing, &from, nil))
	assert.False(t, ff.IsEnabledFor(FeatureDoubleOrNothing, "u1"))

	until := now.Add(-time.Hour)
	require.NoError(t, ff.SetWindow(FeatureDoubleOrNothing, nil, &until))
	assert.False(t, ff.IsEnabledFor(FeatureDoubleOrNothing, "u1"))

	require.NoError(t, ff.SetWindow(FeatureDoubleOrNothing, nil, nil))
	assert.True(t, ff.IsEnabledFor(FeatureDoubleOrNothing, "u1"))
}

func TestFeatureFlags_Errors(t *testing.T) {
	ff := NewFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureSuperTrial, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetWindow("nope", nil, nil), ErrFeatureNotFound)
}

func TestFeatureFlags_Summary(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureSuperTrial, 40))

	assert.Equal(t, []string{
		"economy.double_or_nothing=100",
		"economy.streak_protection=100",
		"economy.super_trial=40",
		"economy.wager_settlement=100",
	}, ff.Summary())
}
