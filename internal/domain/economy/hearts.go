package economy

import (
	"time"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEART REGENERATION
// ══════════════════════════════════════════════════════════════════════════════

// RegenInfo - время до следующего сердца и до полного запаса, в секундах.
type RegenInfo struct {
	NextInSeconds int64 `json:"nextInSeconds"`
	FullInSeconds int64 `json:"fullInSeconds"`
}

// UnlimitedActive сообщает, действует ли безлимит сердец в момент now.
func (r Record) UnlimitedActive(now time.Time) bool {
	return r.UnlimitedHeartsUntil != nil && r.UnlimitedHeartsUntil.After(now)
}

// RegenerateHearts лениво восстанавливает сердца по прошедшему времени.
//
// Точка отсчёта сдвигается ровно на heartsToAdd*interval, а не на now:
// остаток времени сохраняется для следующего сердца.
// Возвращает true, если количество сердец изменилось.
func RegenerateHearts(r *Record, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultRegenInterval
	}

	if r.UnlimitedActive(now) {
		changed := r.Hearts < r.MaxHearts
		r.Hearts = r.MaxHearts
		r.HeartsUpdatedAt = now
		return changed
	}

	if r.Hearts >= r.MaxHearts {
		// Полный запас не копит время
		r.HeartsUpdatedAt = now
		return false
	}

	elapsed := now.Sub(r.HeartsUpdatedAt)
	if elapsed < interval {
		return false
	}

	heartsToAdd := int(elapsed / interval)
	r.Hearts = min(r.MaxHearts, r.Hearts+heartsToAdd)
	r.HeartsUpdatedAt = r.HeartsUpdatedAt.Add(time.Duration(heartsToAdd) * interval)
	return true
}

// HeartRegenInfo рассчитывает таймеры восстановления для отображения.
// Для полного запаса или активного безлимита возвращает нули.
func HeartRegenInfo(r Record, now time.Time, interval time.Duration) RegenInfo {
	if interval <= 0 {
		interval = DefaultRegenInterval
	}
	if r.Hearts >= r.MaxHearts || r.UnlimitedActive(now) {
		return RegenInfo{}
	}

	elapsed := now.Sub(r.HeartsUpdatedAt)
	nextIn := interval - elapsed
	if nextIn < 0 {
		nextIn = 0
	}

	missing := r.MaxHearts - r.Hearts
	fullIn := nextIn + time.Duration(missing-1)*interval

	return RegenInfo{
		NextInSeconds: timeutil.CeilSeconds(nextIn),
		FullInSeconds: timeutil.CeilSeconds(fullIn),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SPENDING
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinHeartSpend и MaxHeartSpend - допустимые границы одного списания.
	MinHeartSpend = 1
	MaxHeartSpend = 5
)

// SpendHearts списывает сердца. При активном безлимите ничего не списывает.
// Точка отсчёта восстановления не меняется.
// Возвращает фактически списанное количество.
func SpendHearts(r *Record, amount int, now time.Time) (int, error) {
	if amount < MinHeartSpend || amount > MaxHeartSpend {
		return 0, shared.ErrInvalidHeartAmount
	}
	if r.UnlimitedActive(now) {
		return 0, nil
	}
	if r.Hearts <= 0 {
		return 0, shared.ErrOutOfHearts
	}

	spent := min(amount, r.Hearts)
	r.Hearts -= spent
	return spent, nil
}
