package economy

// ══════════════════════════════════════════════════════════════════════════════
// DOUBLE OR NOTHING
// ══════════════════════════════════════════════════════════════════════════════

const (
	// WagerStreakDays - на сколько дней нужно продлить серию для выигрыша.
	WagerStreakDays = 7

	// WagerPayoutMultiplier - множитель ставки при выигрыше.
	WagerPayoutMultiplier = 2
)

// WagerSettlement - итог разрешённой ставки.
type WagerSettlement struct {
	Result WagerResult `json:"result"`
	Payout int         `json:"payout"`
}

// WagerPayout - выплата за выигранную ставку.
func WagerPayout() int {
	p, _ := LookupPowerUp(PowerUpDoubleOrNothing)
	return p.Cost * WagerPayoutMultiplier
}

// SettleWager разрешает активную ставку после обновления серии.
// Сброс серии означает проигрыш; достижение целевой серии - выигрыш с
// выплатой на баланс. Возвращает nil, если ставка остаётся активной
// или её нет.
func SettleWager(r *Record, streak StreakResult) *WagerSettlement {
	if !r.DoubleOrNothing.Active {
		return nil
	}

	switch {
	case streak.Reset:
		r.DoubleOrNothing.Active = false
		r.DoubleOrNothing.LastResult = WagerLost
		return &WagerSettlement{Result: WagerLost}

	case r.CurrentStreak >= r.DoubleOrNothing.TargetStreak:
		payout := WagerPayout()
		r.Gems += payout
		r.DoubleOrNothing.Active = false
		r.DoubleOrNothing.LastResult = WagerWon
		return &WagerSettlement{Result: WagerWon, Payout: payout}
	}

	return nil
}
