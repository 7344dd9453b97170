package economy

import (
	"time"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// POWER-UP CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// PowerUpType - тип усилителя.
type PowerUpType string

const (
	PowerUpRefillHearts    PowerUpType = "refill_hearts"
	PowerUpStreakFreeze    PowerUpType = "streak_freeze"
	PowerUpXPBoost         PowerUpType = "xp_boost"
	PowerUpStreakShield    PowerUpType = "streak_shield"
	PowerUpDoubleOrNothing PowerUpType = "double_or_nothing"
	PowerUpSuperTrial      PowerUpType = "super_trial"
)

const (
	// ShieldDuration - продление щита серии за одну покупку.
	ShieldDuration = 24 * time.Hour

	// SuperTrialDuration - длительность пробного безлимита.
	SuperTrialDuration = 24 * time.Hour
)

// PowerUp - позиция магазина.
type PowerUp struct {
	Type    PowerUpType `json:"type"`
	Name    string      `json:"name"`
	Cost    int         `json:"cost"`
	OneTime bool        `json:"oneTime"`
}

var powerUpCatalog = []PowerUp{
	{Type: PowerUpRefillHearts, Name: "Refill hearts", Cost: 100},
	{Type: PowerUpStreakFreeze, Name: "Streak freeze", Cost: 200},
	{Type: PowerUpXPBoost, Name: "XP boost", Cost: 25},
	{Type: PowerUpStreakShield, Name: "Streak shield", Cost: 10},
	{Type: PowerUpDoubleOrNothing, Name: "Double or nothing", Cost: 50},
	{Type: PowerUpSuperTrial, Name: "Super trial", Cost: 0, OneTime: true},
}

// PowerUps возвращает копию каталога усилителей.
func PowerUps() []PowerUp {
	out := make([]PowerUp, len(powerUpCatalog))
	copy(out, powerUpCatalog)
	return out
}

// LookupPowerUp находит усилитель по типу.
func LookupPowerUp(t PowerUpType) (PowerUp, bool) {
	for _, p := range powerUpCatalog {
		if p.Type == t {
			return p, true
		}
	}
	return PowerUp{}, false
}

// ParsePowerUpType проверяет строковый тип усилителя.
func ParsePowerUpType(s string) (PowerUpType, error) {
	t := PowerUpType(s)
	if _, ok := LookupPowerUp(t); !ok {
		return "", shared.ErrUnknownPowerUp
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseResult - итог покупки. Заполнены только поля, которые изменила
// покупка данного типа.
type PurchaseResult struct {
	Type      PowerUpType `json:"type"`
	Cost      int         `json:"cost"`
	GemsAfter int         `json:"gemsAfter"`

	Hearts               *int             `json:"hearts,omitempty"`
	StreakFreezes        *int             `json:"streakFreezes,omitempty"`
	XPBoosts             *int             `json:"xpBoosts,omitempty"`
	StreakShieldUntil    *time.Time       `json:"streakShieldUntil,omitempty"`
	UnlimitedHeartsUntil *time.Time       `json:"unlimitedHeartsUntil,omitempty"`
	DoubleOrNothing      *DoubleOrNothing `json:"doubleOrNothing,omitempty"`
}

// Purchase проверяет и применяет покупку усилителя.
// Все проверки выполняются до мутации: при ошибке запись не меняется.
func Purchase(r *Record, t PowerUpType, now time.Time) (PurchaseResult, error) {
	p, ok := LookupPowerUp(t)
	if !ok {
		return PurchaseResult{}, shared.ErrUnknownPowerUp
	}

	if err := checkPurchase(*r, p, now); err != nil {
		return PurchaseResult{}, err
	}

	r.Gems -= p.Cost
	res := PurchaseResult{Type: t, Cost: p.Cost}

	switch t {
	case PowerUpRefillHearts:
		r.Hearts = r.MaxHearts
		r.HeartsUpdatedAt = now
		res.Hearts = intPtr(r.Hearts)

	case PowerUpStreakFreeze:
		r.StreakFreezes++
		res.StreakFreezes = intPtr(r.StreakFreezes)

	case PowerUpXPBoost:
		r.XPBoosts++
		res.XPBoosts = intPtr(r.XPBoosts)

	case PowerUpStreakShield:
		base := now
		if r.StreakShieldUntil != nil {
			base = timeutil.MaxTime(now, *r.StreakShieldUntil)
		}
		until := base.Add(ShieldDuration)
		r.StreakShieldUntil = &until
		res.StreakShieldUntil = copyTime(&until)

	case PowerUpDoubleOrNothing:
		startedAt := now
		r.DoubleOrNothing = DoubleOrNothing{
			Active:       true,
			StartedAt:    &startedAt,
			StartStreak:  r.CurrentStreak,
			TargetStreak: r.CurrentStreak + WagerStreakDays,
			StartGems:    r.Gems,
		}
		wager := r.DoubleOrNothing
		res.DoubleOrNothing = &wager

	case PowerUpSuperTrial:
		until := now.Add(SuperTrialDuration)
		r.UnlimitedHeartsUntil = &until
		r.SuperTrialUsed = true
		r.Hearts = r.MaxHearts
		r.HeartsUpdatedAt = now
		res.UnlimitedHeartsUntil = copyTime(&until)
		res.Hearts = intPtr(r.Hearts)
	}

	res.GemsAfter = r.Gems
	return res, nil
}

// RefillHearts - покупка полного запаса сердец.
func RefillHearts(r *Record, now time.Time) (PurchaseResult, error) {
	return Purchase(r, PowerUpRefillHearts, now)
}

// checkPurchase проверяет состояние записи и баланс.
func checkPurchase(r Record, p PowerUp, now time.Time) error {
	switch p.Type {
	case PowerUpRefillHearts:
		if r.UnlimitedActive(now) {
			return shared.ErrHeartsUnlimited
		}
		if r.Hearts >= r.MaxHearts {
			return shared.ErrHeartsAlreadyFull
		}
	case PowerUpDoubleOrNothing:
		if r.DoubleOrNothing.Active {
			return shared.ErrWagerAlreadyActive
		}
	case PowerUpSuperTrial:
		if r.SuperTrialUsed {
			return shared.ErrSuperTrialUsed
		}
	}

	if r.Gems < p.Cost {
		return shared.ErrNotEnoughGems
	}
	return nil
}
