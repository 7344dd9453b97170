package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

func TestPurchase_InsufficientFundsLeavesRecordUnchanged(t *testing.T) {
	for _, p := range PowerUps() {
		if p.Cost == 0 {
			continue
		}
		t.Run(string(p.Type), func(t *testing.T) {
			rec := NewRecord("u1", testNow, DefaultConfig())
			rec.Hearts = 1
			rec.Gems = p.Cost - 1
			before := rec.Clone()

			_, err := Purchase(&rec, p.Type, testNow)

			assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
			assert.Equal(t, before, rec)
		})
	}
}

func TestPurchase_UnknownType(t *testing.T) {
	rec := NewRecord("u1", testNow, DefaultConfig())
	_, err := Purchase(&rec, PowerUpType("time_machine"), testNow)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParsePowerUpType("time_machine")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRefillHearts(t *testing.T) {
	t.Run("refills and charges", func(t *testing.T) {
		rec := recordWithHearts(1, testNow.Add(-5*time.Minute))

		res, err := RefillHearts(&rec, testNow)

		require.NoError(t, err)
		assert.Equal(t, 5, rec.Hearts)
		assert.Equal(t, testNow, rec.HeartsUpdatedAt)
		assert.Equal(t, 900, rec.Gems)
		assert.Equal(t, 100, res.Cost)
		assert.Equal(t, 900, res.GemsAfter)
	})

	t.Run("already full", func(t *testing.T) {
		rec := recordWithHearts(5, testNow)
		before := rec.Clone()

		_, err := RefillHearts(&rec, testNow)

		assert.ErrorIs(t, err, shared.ErrAlreadyFull)
		assert.Equal(t, before, rec)
	})

	t.Run("unlimited active", func(t *testing.T) {
		until := testNow.Add(time.Hour)
		rec := recordWithHearts(2, testNow)
		rec.UnlimitedHeartsUntil = &until

		_, err := RefillHearts(&rec, testNow)

		assert.ErrorIs(t, err, shared.ErrUnlimitedActive)
	})
}

func TestPurchase_BankedItems(t *testing.T) {
	rec := NewRecord("u1", testNow, DefaultConfig())

	res, err := Purchase(&rec, PowerUpStreakFreeze, testNow)
	require.NoError(t, err)
	require.NotNil(t, res.StreakFreezes)
	assert.Equal(t, 1, *res.StreakFreezes)

	res, err = Purchase(&rec, PowerUpXPBoost, testNow)
	require.NoError(t, err)
	require.NotNil(t, res.XPBoosts)
	assert.Equal(t, 1, *res.XPBoosts)

	assert.Equal(t, 1000-200-25, rec.Gems)
}

func TestPurchase_StreakShieldStacks(t *testing.T) {
	rec := NewRecord("u1", testNow, DefaultConfig())

	_, err := Purchase(&rec, PowerUpStreakShield, testNow)
	require.NoError(t, err)
	_, err = Purchase(&rec, PowerUpStreakShield, testNow)
	require.NoError(t, err)

	require.NotNil(t, rec.StreakShieldUntil)
	assert.Equal(t, testNow.Add(48*time.Hour), *rec.StreakShieldUntil)
	assert.Equal(t, 980, rec.Gems)
}

func TestPurchase_StreakShieldRestartsAfterExpiry(t *testing.T) {
	rec := NewRecord("u1", testNow, DefaultConfig())
	expired := testNow.Add(-3 * time.Hour)
	rec.StreakShieldUntil = &expired

	_, err := Purchase(&rec, PowerUpStreakShield, testNow)

	require.NoError(t, err)
	assert.Equal(t, testNow.Add(24*time.Hour), *rec.StreakShieldUntil)
}

func TestPurchase_DoubleOrNothing(t *testing.T) {
	rec := NewRecord("u1", testNow, DefaultConfig())
	rec.CurrentStreak, rec.LongestStreak = 4, 4

	res, err := Purchase(&rec, PowerUpDoubleOrNothing, testNow)

	require.NoError(t, err)
	require.NotNil(t, res.DoubleOrNothing)
	w := rec.DoubleOrNothing
	assert.True(t, w.Active)
	assert.Equal(t, 4, w.StartStreak)
	assert.Equal(t, 11, w.TargetStreak)
	assert.Equal(t, 950, w.StartGems)
	assert.Equal(t, WagerNone, w.LastResult)
	require.NotNil(t, w.StartedAt)
	assert.Equal(t, testNow, *w.StartedAt)

	before := rec.Clone()
	_, err = Purchase(&rec, PowerUpDoubleOrNothing, testNow)
	assert.ErrorIs(t, err, shared.ErrAlreadyActive)
	assert.Equal(t, before, rec)
}

func TestPurchase_SuperTrial(t *testing.T) {
	rec := recordWithHearts(0, testNow.Add(-time.Minute))
	gems := rec.Gems

	res, err := Purchase(&rec, PowerUpSuperTrial, testNow)

	require.NoError(t, err)
	assert.Equal(t, 5, rec.Hearts)
	assert.True(t, rec.SuperTrialUsed)
	require.NotNil(t, rec.UnlimitedHeartsUntil)
	assert.Equal(t, testNow.Add(24*time.Hour), *rec.UnlimitedHeartsUntil)
	assert.Equal(t, gems, rec.Gems)
	assert.Equal(t, 0, res.Cost)

	_, err = Purchase(&rec, PowerUpSuperTrial, testNow.Add(48*time.Hour))
	assert.ErrorIs(t, err, shared.ErrAlreadyUsed)
}
