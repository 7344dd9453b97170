package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

const interval = 10 * time.Minute

func recordWithHearts(hearts int, updatedAt time.Time) Record {
	rec := NewRecord("u1", testNow, DefaultConfig())
	rec.Hearts = hearts
	rec.HeartsUpdatedAt = updatedAt
	return rec
}

func TestRegenerateHearts(t *testing.T) {
	tests := []struct {
		name        string
		hearts      int
		elapsed     time.Duration
		wantHearts  int
		wantAdvance time.Duration
		wantChanged bool
	}{
		{"below interval", 2, 9*time.Minute + 59*time.Second, 2, 0, false},
		{"exactly one interval", 2, 10 * time.Minute, 3, 10 * time.Minute, true},
		{"remainder preserved", 3, 25 * time.Minute, 5, 20 * time.Minute, true},
		{"capped at max", 0, 3 * time.Hour, 5, 18 * 10 * time.Minute, true},
		{"partial progress", 1, 15 * time.Minute, 2, 10 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := testNow.Add(-tt.elapsed)
			rec := recordWithHearts(tt.hearts, base)

			changed := RegenerateHearts(&rec, testNow, interval)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantHearts, rec.Hearts)
			assert.Equal(t, base.Add(tt.wantAdvance), rec.HeartsUpdatedAt)
		})
	}
}

func TestRegenerateHearts_FullResetsBaseline(t *testing.T) {
	rec := recordWithHearts(5, testNow.Add(-time.Hour))

	changed := RegenerateHearts(&rec, testNow, interval)

	assert.False(t, changed)
	assert.Equal(t, 5, rec.Hearts)
	assert.Equal(t, testNow, rec.HeartsUpdatedAt)
}

func TestRegenerateHearts_UnlimitedOverrides(t *testing.T) {
	until := testNow.Add(time.Hour)
	rec := recordWithHearts(1, testNow.Add(-time.Minute))
	rec.UnlimitedHeartsUntil = &until

	assert.True(t, RegenerateHearts(&rec, testNow, interval))
	assert.Equal(t, 5, rec.Hearts)
	assert.Equal(t, testNow, rec.HeartsUpdatedAt)

	// Already at max: not reported as a change
	assert.False(t, RegenerateHearts(&rec, testNow.Add(time.Minute), interval))
}

func TestRegenerateHearts_ExpiredUnlimitedFallsBackToRegen(t *testing.T) {
	expired := testNow.Add(-time.Second)
	rec := recordWithHearts(1, testNow.Add(-5*time.Minute))
	rec.UnlimitedHeartsUntil = &expired

	assert.False(t, RegenerateHearts(&rec, testNow, interval))
	assert.Equal(t, 1, rec.Hearts)
}

func TestHeartRegenInfo(t *testing.T) {
	rec := recordWithHearts(3, testNow.Add(-4*time.Minute))

	info := HeartRegenInfo(rec, testNow, interval)

	assert.Equal(t, int64(6*60), info.NextInSeconds)
	assert.Equal(t, int64(6*60+10*60), info.FullInSeconds)
}

func TestHeartRegenInfo_RoundsUp(t *testing.T) {
	rec := recordWithHearts(4, testNow.Add(-(9*time.Minute + 59*time.Second + 500*time.Millisecond)))

	info := HeartRegenInfo(rec, testNow, interval)

	assert.Equal(t, int64(1), info.NextInSeconds)
	assert.Equal(t, int64(1), info.FullInSeconds)
}

func TestHeartRegenInfo_ZeroWhenFullOrUnlimited(t *testing.T) {
	full := recordWithHearts(5, testNow)
	assert.Equal(t, RegenInfo{}, HeartRegenInfo(full, testNow, interval))

	until := testNow.Add(time.Hour)
	unlimited := recordWithHearts(0, testNow)
	unlimited.UnlimitedHeartsUntil = &until
	assert.Equal(t, RegenInfo{}, HeartRegenInfo(unlimited, testNow, interval))
}

func TestSpendHearts(t *testing.T) {
	t.Run("deducts and keeps baseline", func(t *testing.T) {
		base := testNow.Add(-3 * time.Minute)
		rec := recordWithHearts(4, base)

		spent, err := SpendHearts(&rec, 2, testNow)

		require.NoError(t, err)
		assert.Equal(t, 2, spent)
		assert.Equal(t, 2, rec.Hearts)
		assert.Equal(t, base, rec.HeartsUpdatedAt)
	})

	t.Run("floors at zero", func(t *testing.T) {
		rec := recordWithHearts(2, testNow)

		spent, err := SpendHearts(&rec, 5, testNow)

		require.NoError(t, err)
		assert.Equal(t, 2, spent)
		assert.Equal(t, 0, rec.Hearts)
	})

	t.Run("no hearts remaining", func(t *testing.T) {
		rec := recordWithHearts(0, testNow)

		_, err := SpendHearts(&rec, 1, testNow)

		assert.ErrorIs(t, err, shared.ErrNoHeartsRemaining)
		assert.Equal(t, 0, rec.Hearts)
	})

	t.Run("amount out of range", func(t *testing.T) {
		rec := recordWithHearts(5, testNow)

		for _, amount := range []int{0, -1, 6} {
			_, err := SpendHearts(&rec, amount, testNow)
			assert.ErrorIs(t, err, shared.ErrValidation)
		}
		assert.Equal(t, 5, rec.Hearts)
	})

	t.Run("unlimited spends nothing", func(t *testing.T) {
		until := testNow.Add(time.Hour)
		rec := recordWithHearts(5, testNow)
		rec.UnlimitedHeartsUntil = &until

		spent, err := SpendHearts(&rec, 3, testNow)

		require.NoError(t, err)
		assert.Zero(t, spent)
		assert.Equal(t, 5, rec.Hearts)
	})
}
