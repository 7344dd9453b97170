package economy

import (
	"time"
)

// Snapshot - представление экономики пользователя для клиента.
type Snapshot struct {
	Gems                 int           `json:"gems"`
	Hearts               int           `json:"hearts"`
	MaxHearts            int           `json:"maxHearts"`
	HeartRegen           RegenInfo     `json:"heartRegen"`
	UnlimitedHearts      bool          `json:"unlimitedHearts"`
	StreakFreezes        int           `json:"streakFreezes"`
	XPBoosts             int           `json:"xpBoosts"`
	StreakShieldUntil    *time.Time    `json:"streakShieldUntil"`
	UnlimitedHeartsUntil *time.Time    `json:"unlimitedHeartsUntil"`
	SuperTrialUsed       bool          `json:"superTrialUsed"`
	DoubleOrNothing      WagerSnapshot `json:"doubleOrNothing"`
	CurrentStreak        int           `json:"currentStreak"`
	LongestStreak        int           `json:"longestStreak"`
	StreakAtRisk         bool          `json:"streakAtRisk"`
}

// WagerSnapshot - ставка в клиентском виде; lastResult равен null, пока
// ставка не разрешалась.
type WagerSnapshot struct {
	Active       bool       `json:"active"`
	StartedAt    *time.Time `json:"startedAt"`
	StartStreak  int        `json:"startStreak"`
	TargetStreak int        `json:"targetStreak"`
	StartGems    int        `json:"startGems"`
	LastResult   *string    `json:"lastResult"`
}

// NewSnapshot строит снимок записи на момент now.
func NewSnapshot(r Record, now time.Time, interval time.Duration) Snapshot {
	w := r.DoubleOrNothing
	wager := WagerSnapshot{
		Active:       w.Active,
		StartedAt:    copyTime(w.StartedAt),
		StartStreak:  w.StartStreak,
		TargetStreak: w.TargetStreak,
		StartGems:    w.StartGems,
	}
	if w.LastResult != WagerNone {
		result := string(w.LastResult)
		wager.LastResult = &result
	}

	return Snapshot{
		Gems:                 r.Gems,
		Hearts:               r.Hearts,
		MaxHearts:            r.MaxHearts,
		HeartRegen:           HeartRegenInfo(r, now, interval),
		UnlimitedHearts:      r.UnlimitedActive(now),
		StreakFreezes:        r.StreakFreezes,
		XPBoosts:             r.XPBoosts,
		StreakShieldUntil:    copyTime(r.StreakShieldUntil),
		UnlimitedHeartsUntil: copyTime(r.UnlimitedHeartsUntil),
		SuperTrialUsed:       r.SuperTrialUsed,
		DoubleOrNothing:      wager,
		CurrentStreak:        r.CurrentStreak,
		LongestStreak:        r.LongestStreak,
		StreakAtRisk:         StreakAtRisk(r, now),
	}
}
