package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeWager(t *testing.T, current int) Record {
	t.Helper()
	rec := streakRecord(current, current, 1)
	_, err := Purchase(&rec, PowerUpDoubleOrNothing, testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	return rec
}

func TestSettleWager_Won(t *testing.T) {
	rec := activeWager(t, 3)
	rec.CurrentStreak = rec.DoubleOrNothing.TargetStreak - 1
	gems := rec.Gems

	streak := UpdateStreak(&rec, testNow, true)
	settlement := SettleWager(&rec, streak)

	require.NotNil(t, settlement)
	assert.Equal(t, WagerWon, settlement.Result)
	assert.Equal(t, 100, settlement.Payout)
	assert.Equal(t, gems+100, rec.Gems)
	assert.False(t, rec.DoubleOrNothing.Active)
	assert.Equal(t, WagerWon, rec.DoubleOrNothing.LastResult)
}

func TestSettleWager_LostOnReset(t *testing.T) {
	rec := activeWager(t, 3)
	gems := rec.Gems

	settlement := SettleWager(&rec, StreakResult{Previous: 3, Current: 1, Reset: true})

	require.NotNil(t, settlement)
	assert.Equal(t, WagerLost, settlement.Result)
	assert.Zero(t, settlement.Payout)
	assert.Equal(t, gems, rec.Gems)
	assert.False(t, rec.DoubleOrNothing.Active)
	assert.Equal(t, WagerLost, rec.DoubleOrNothing.LastResult)
}

func TestSettleWager_StillRunning(t *testing.T) {
	rec := activeWager(t, 3)

	streak := UpdateStreak(&rec, testNow, true)

	assert.Nil(t, SettleWager(&rec, streak))
	assert.True(t, rec.DoubleOrNothing.Active)
}

func TestSettleWager_NoWager(t *testing.T) {
	rec := streakRecord(3, 3, 1)
	assert.Nil(t, SettleWager(&rec, StreakResult{Reset: true}))
}

func TestNewSnapshot(t *testing.T) {
	rec := activeWager(t, 3)
	rec.Hearts = 4

	snap := NewSnapshot(rec, testNow, interval)

	assert.Equal(t, rec.Gems, snap.Gems)
	assert.Equal(t, 4, snap.Hearts)
	assert.True(t, snap.DoubleOrNothing.Active)
	assert.Nil(t, snap.DoubleOrNothing.LastResult)
	assert.True(t, snap.StreakAtRisk)

	rec.DoubleOrNothing.LastResult = WagerLost
	snap = NewSnapshot(rec, testNow, interval)
	require.NotNil(t, snap.DoubleOrNothing.LastResult)
	assert.Equal(t, "lost", *snap.DoubleOrNothing.LastResult)
}
