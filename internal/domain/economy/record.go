package economy

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultRegenInterval - время восстановления одного сердца.
	DefaultRegenInterval = 10 * time.Minute

	// DefaultStartingGems - стартовый баланс кристаллов.
	DefaultStartingGems = 1000

	// DefaultMaxHearts - максимальное количество сердец.
	DefaultMaxHearts = 5
)

// Config задаёт значения по умолчанию для новых и неполных записей.
type Config struct {
	// RegenInterval - интервал восстановления одного сердца.
	RegenInterval time.Duration

	// StartingGems - кристаллы новой записи.
	StartingGems int

	// MaxHearts - ёмкость сердец новой записи.
	MaxHearts int
}

// DefaultConfig возвращает стандартные параметры экономики.
func DefaultConfig() Config {
	return Config{
		RegenInterval: DefaultRegenInterval,
		StartingGems:  DefaultStartingGems,
		MaxHearts:     DefaultMaxHearts,
	}
}

// WithDefaults подставляет стандартные значения вместо некорректных.
func (c Config) WithDefaults() Config {
	if c.RegenInterval <= 0 {
		c.RegenInterval = DefaultRegenInterval
	}
	if c.StartingGems < 0 {
		c.StartingGems = DefaultStartingGems
	}
	if c.MaxHearts <= 0 {
		c.MaxHearts = DefaultMaxHearts
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// WagerResult - итог ставки "всё или ничего".
type WagerResult string

const (
	// WagerNone - ставка ещё не разрешалась.
	WagerNone WagerResult = ""

	// WagerWon - цель серии достигнута.
	WagerWon WagerResult = "won"

	// WagerLost - серия прервалась до цели.
	WagerLost WagerResult = "lost"
)

// DoubleOrNothing - состояние ставки "всё или ничего".
// У пользователя не более одной активной ставки.
type DoubleOrNothing struct {
	Active       bool        `json:"active"`
	StartedAt    *time.Time  `json:"startedAt"`
	StartStreak  int         `json:"startStreak"`
	TargetStreak int         `json:"targetStreak"`
	StartGems    int         `json:"startGems"`
	LastResult   WagerResult `json:"lastResult,omitempty"`
}

// QuestCompletion - отметка о выполнении задания.
type QuestCompletion struct {
	QuestID     string    `json:"questId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Record - нормализованная запись экономики пользователя.
// Все поля заполнены и удовлетворяют инвариантам:
// 0 <= Hearts <= MaxHearts, Gems >= 0, LongestStreak >= CurrentStreak.
type Record struct {
	// UserID - владелец записи.
	UserID string

	// Gems - баланс кристаллов.
	Gems int

	// Hearts - текущие сердца.
	Hearts int

	// MaxHearts - ёмкость сердец.
	MaxHearts int

	// HeartsUpdatedAt - точка отсчёта восстановления.
	HeartsUpdatedAt time.Time

	// UnlimitedHeartsUntil - безлимит сердец до указанного момента.
	UnlimitedHeartsUntil *time.Time

	// StreakFreezes - накопленные заморозки серии (без срока).
	StreakFreezes int

	// StreakShieldUntil - щит серии до указанного момента.
	StreakShieldUntil *time.Time

	// XPBoosts - накопленные бусты XP.
	XPBoosts int

	// SuperTrialUsed - пробный безлимит уже использован (навсегда).
	SuperTrialUsed bool

	// DoubleOrNothing - ставка "всё или ничего".
	DoubleOrNothing DoubleOrNothing

	// CurrentStreak, LongestStreak - текущая и лучшая серии дней.
	CurrentStreak int
	LongestStreak int

	// LastStreakDate - дата последней засчитанной активности.
	LastStreakDate *time.Time

	// DailyLessonDate - дата последнего сброса дневных счётчиков.
	DailyLessonDate *time.Time

	// Дневные счётчики.
	DailyXP           int
	DailyLessonCount  int
	DailyStudySeconds int

	// DailyQuestCompletions - выполненные задания (не более одного на задание в день).
	DailyQuestCompletions []QuestCompletion

	// Version - токен оптимистичной блокировки хранилища.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawRecord - запись в том виде, в каком она лежит в хранилище.
// Любое поле может отсутствовать (nil); Normalize заполняет пропуски.
type RawRecord struct {
	UserID string

	Gems                 *int
	Hearts               *int
	MaxHearts            *int
	HeartsUpdatedAt      *time.Time
	UnlimitedHeartsUntil *time.Time

	StreakFreezes     *int
	StreakShieldUntil *time.Time
	XPBoosts          *int
	SuperTrialUsed    *bool
	DoubleOrNothing   *DoubleOrNothing

	CurrentStreak  *int
	LongestStreak  *int
	LastStreakDate *time.Time

	DailyLessonDate       *time.Time
	DailyXP               *int
	DailyLessonCount      *int
	DailyStudySeconds     *int
	DailyQuestCompletions []QuestCompletion

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord создаёт запись со значениями по умолчанию.
func NewRecord(userID string, now time.Time, cfg Config) Record {
	rec, _ := Normalize(RawRecord{UserID: userID, CreatedAt: now, UpdatedAt: now}, now, cfg)
	return rec
}

// Normalize - единственный конструктор строгой записи из хранимой.
// Отсутствующие поля получают значения по умолчанию, значения вне допустимых
// границ обрезаются. changed сообщает, отличается ли результат от входа.
func Normalize(raw RawRecord, now time.Time, cfg Config) (Record, bool) {
	cfg = cfg.WithDefaults()
	n := normalizer{}

	rec := Record{
		UserID:                raw.UserID,
		UnlimitedHeartsUntil:  copyTime(raw.UnlimitedHeartsUntil),
		StreakShieldUntil:     copyTime(raw.StreakShieldUntil),
		LastStreakDate:        copyTime(raw.LastStreakDate),
		DailyLessonDate:       copyTime(raw.DailyLessonDate),
		DailyQuestCompletions: copyCompletions(raw.DailyQuestCompletions),
		Version:               raw.Version,
		CreatedAt:             raw.CreatedAt,
		UpdatedAt:             raw.UpdatedAt,
	}

	rec.MaxHearts = n.positive(raw.MaxHearts, cfg.MaxHearts)
	rec.Gems = n.nonNegative(raw.Gems, cfg.StartingGems)
	rec.Hearts = n.nonNegative(raw.Hearts, rec.MaxHearts)
	if rec.Hearts > rec.MaxHearts {
		rec.Hearts = rec.MaxHearts
		n.changed = true
	}

	if raw.HeartsUpdatedAt == nil || raw.HeartsUpdatedAt.IsZero() {
		rec.HeartsUpdatedAt = now
		n.changed = true
	} else {
		rec.HeartsUpdatedAt = *raw.HeartsUpdatedAt
	}

	rec.StreakFreezes = n.nonNegative(raw.StreakFreezes, 0)
	rec.XPBoosts = n.nonNegative(raw.XPBoosts, 0)

	if raw.SuperTrialUsed == nil {
		n.changed = true
	} else {
		rec.SuperTrialUsed = *raw.SuperTrialUsed
	}

	if raw.DoubleOrNothing == nil {
		n.changed = true
	} else {
		rec.DoubleOrNothing = *raw.DoubleOrNothing
		rec.DoubleOrNothing.StartedAt = copyTime(raw.DoubleOrNothing.StartedAt)
	}

	rec.CurrentStreak = n.nonNegative(raw.CurrentStreak, 0)
	rec.LongestStreak = n.nonNegative(raw.LongestStreak, 0)
	if rec.LongestStreak < rec.CurrentStreak {
		rec.LongestStreak = rec.CurrentStreak
		n.changed = true
	}

	rec.DailyXP = n.nonNegative(raw.DailyXP, 0)
	rec.DailyLessonCount = n.nonNegative(raw.DailyLessonCount, 0)
	rec.DailyStudySeconds = n.nonNegative(raw.DailyStudySeconds, 0)

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	return rec, n.changed
}

// Raw возвращает запись в форме хранилища (все поля заполнены).
func (r Record) Raw() RawRecord {
	wager := r.DoubleOrNothing
	wager.StartedAt = copyTime(r.DoubleOrNothing.StartedAt)

	return RawRecord{
		UserID:                r.UserID,
		Gems:                  intPtr(r.Gems),
		Hearts:                intPtr(r.Hearts),
		MaxHearts:             intPtr(r.MaxHearts),
		HeartsUpdatedAt:       timePtr(r.HeartsUpdatedAt),
		UnlimitedHeartsUntil:  copyTime(r.UnlimitedHeartsUntil),
		StreakFreezes:         intPtr(r.StreakFreezes),
		StreakShieldUntil:     copyTime(r.StreakShieldUntil),
		XPBoosts:              intPtr(r.XPBoosts),
		SuperTrialUsed:        boolPtr(r.SuperTrialUsed),
		DoubleOrNothing:       &wager,
		CurrentStreak:         intPtr(r.CurrentStreak),
		LongestStreak:         intPtr(r.LongestStreak),
		LastStreakDate:        copyTime(r.LastStreakDate),
		DailyLessonDate:       copyTime(r.DailyLessonDate),
		DailyXP:               intPtr(r.DailyXP),
		DailyLessonCount:      intPtr(r.DailyLessonCount),
		DailyStudySeconds:     intPtr(r.DailyStudySeconds),
		DailyQuestCompletions: copyCompletions(r.DailyQuestCompletions),
		Version:               r.Version,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// Clone возвращает глубокую копию записи.
func (r Record) Clone() Record {
	c := r
	c.UnlimitedHeartsUntil = copyTime(r.UnlimitedHeartsUntil)
	c.StreakShieldUntil = copyTime(r.StreakShieldUntil)
	c.LastStreakDate = copyTime(r.LastStreakDate)
	c.DailyLessonDate = copyTime(r.DailyLessonDate)
	c.DailyQuestCompletions = copyCompletions(r.DailyQuestCompletions)
	c.DoubleOrNothing.StartedAt = copyTime(r.DoubleOrNothing.StartedAt)
	return c
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

type normalizer struct {
	changed bool
}

func (n *normalizer) nonNegative(v *int, def int) int {
	switch {
	case v == nil:
		n.changed = true
		return def
	case *v < 0:
		n.changed = true
		return 0
	default:
		return *v
	}
}

func (n *normalizer) positive(v *int, def int) int {
	if v == nil || *v <= 0 {
		n.changed = true
		return def
	}
	return *v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyCompletions(in []QuestCompletion) []QuestCompletion {
	if in == nil {
		return nil
	}
	out := make([]QuestCompletion, len(in))
	copy(out, in)
	return out
}

func intPtr(v int) *int              { return &v }
func boolPtr(v bool) *bool           { return &v }
func timePtr(v time.Time) *time.Time { return &v }
