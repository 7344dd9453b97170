package economy

import (
	"time"

	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKING
// ══════════════════════════════════════════════════════════════════════════════

// StreakProtection - чем был прикрыт пропуск дней.
type StreakProtection string

const (
	ProtectionNone   StreakProtection = ""
	ProtectionShield StreakProtection = "shield"
	ProtectionFreeze StreakProtection = "freeze"
)

// StreakResult описывает изменение серии после активности.
type StreakResult struct {
	// Previous - серия до активности.
	Previous int `json:"previous"`

	// Current - серия после активности.
	Current int `json:"current"`

	// Longest - лучшая серия.
	Longest int `json:"longest"`

	// Extended - серия выросла.
	Extended bool `json:"extended"`

	// Reset - серия сброшена до 1 после пропуска.
	Reset bool `json:"reset"`

	// DaysMissed - сколько дней пропущено между активностями.
	DaysMissed int `json:"daysMissed"`

	// ProtectedBy - заморозка или щит, покрывшие пропуск.
	ProtectedBy StreakProtection `json:"protectedBy,omitempty"`
}

// Changed сообщает, изменилось ли значение серии.
func (s StreakResult) Changed() bool {
	return s.Previous != s.Current
}

// UpdateStreak засчитывает активность в момент now.
//
// Календарные дни считаются в локации now. При пропуске больше одного дня и
// включённой защите непросроченный щит покрывает пропуск без расхода, иначе
// расходуется одна заморозка; пропуск тогда считается как один день.
func UpdateStreak(r *Record, now time.Time, protect bool) StreakResult {
	loc := now.Location()
	today := timeutil.StartOfDay(now, loc)

	res := StreakResult{Previous: r.CurrentStreak}

	if r.LastStreakDate == nil {
		r.CurrentStreak = 1
		res.Extended = true
	} else {
		daysDiff := timeutil.DaysBetween(*r.LastStreakDate, now, loc)

		if daysDiff > 1 && protect {
			switch {
			case r.StreakShieldUntil != nil && r.StreakShieldUntil.After(now):
				res.ProtectedBy = ProtectionShield
			case r.StreakFreezes > 0:
				r.StreakFreezes--
				res.ProtectedBy = ProtectionFreeze
			}
			if res.ProtectedBy != ProtectionNone {
				res.DaysMissed = daysDiff - 1
				daysDiff = 1
			}
		}

		switch {
		case daysDiff <= 0:
			// Уже засчитано сегодня
		case daysDiff == 1:
			r.CurrentStreak++
			res.Extended = true
		default:
			r.CurrentStreak = 1
			res.Reset = true
			res.DaysMissed = daysDiff - 1
		}
	}

	r.LastStreakDate = &today
	if r.CurrentStreak > r.LongestStreak {
		r.LongestStreak = r.CurrentStreak
	}

	res.Current = r.CurrentStreak
	res.Longest = r.LongestStreak
	return res
}

// StreakAtRisk сообщает, что без активности сегодня серия будет сброшена.
func StreakAtRisk(r Record, now time.Time) bool {
	if r.LastStreakDate == nil || r.CurrentStreak == 0 {
		return false
	}
	return timeutil.DaysBetween(*r.LastStreakDate, now, now.Location()) == 1
}
