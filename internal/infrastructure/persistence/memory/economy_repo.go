// Package memory provides in-process implementations of the economy
// repository and per-user locker. Used when no database is configured and
// in tests.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

// EconomyRepository stores records in a map guarded by a mutex.
// Stored values are deep copies; callers never share memory with the store.
type EconomyRepository struct {
	mu      sync.RWMutex
	records map[string]economy.RawRecord
}

// NewEconomyRepository creates an empty repository.
func NewEconomyRepository() *EconomyRepository {
	return &EconomyRepository{records: make(map[string]economy.RawRecord)}
}

// Get implements economy.Repository.
func (r *EconomyRepository) Get(ctx context.Context, userID string) (economy.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return economy.RawRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok := r.records[userID]
	if !ok {
		return economy.RawRecord{}, shared.ErrEconomyNotFound
	}
	return copyRaw(raw), nil
}

// Create implements economy.Repository.
func (r *EconomyRepository) Create(ctx context.Context, rec *economy.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.UserID]; ok {
		return shared.ErrEconomyAlreadyExists
	}
	rec.Version = 1
	r.records[rec.UserID] = rec.Raw()
	return nil
}

// Save implements economy.Repository.
func (r *EconomyRepository) Save(ctx context.Context, rec *economy.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.UserID]
	if !ok {
		return shared.ErrEconomyNotFound
	}
	if stored.Version != rec.Version {
		return shared.ErrStaleRecord
	}

	rec.Version++
	r.records[rec.UserID] = rec.Raw()
	return nil
}

// Put stores a raw record as-is, bypassing version checks. It seeds legacy
// or partially populated records.
func (r *EconomyRepository) Put(raw economy.RawRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[raw.UserID] = copyRaw(raw)
}

// Len returns the number of stored records.
func (r *EconomyRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Ping always succeeds; it lets the store take part in readiness checks.
func (r *EconomyRepository) Ping(context.Context) error { return nil }

func copyRaw(raw economy.RawRecord) economy.RawRecord {
	c := raw
	c.Gems = copyInt(raw.Gems)
	c.Hearts = copyInt(raw.Hearts)
	c.MaxHearts = copyInt(raw.MaxHearts)
	c.HeartsUpdatedAt = copyPtr(raw.HeartsUpdatedAt)
	c.UnlimitedHeartsUntil = copyPtr(raw.UnlimitedHeartsUntil)
	c.StreakFreezes = copyInt(raw.StreakFreezes)
	c.StreakShieldUntil = copyPtr(raw.StreakShieldUntil)
	c.XPBoosts = copyInt(raw.XPBoosts)
	c.SuperTrialUsed = copyPtr(raw.SuperTrialUsed)
	if raw.DoubleOrNothing != nil {
		w := *raw.DoubleOrNothing
		w.StartedAt = copyPtr(raw.DoubleOrNothing.StartedAt)
		c.DoubleOrNothing = &w
	}
	c.CurrentStreak = copyInt(raw.CurrentStreak)
	c.LongestStreak = copyInt(raw.LongestStreak)
	c.LastStreakDate = copyPtr(raw.LastStreakDate)
	c.DailyLessonDate = copyPtr(raw.DailyLessonDate)
	c.DailyXP = copyInt(raw.DailyXP)
	c.DailyLessonCount = copyInt(raw.DailyLessonCount)
	c.DailyStudySeconds = copyInt(raw.DailyStudySeconds)
	if raw.DailyQuestCompletions != nil {
		c.DailyQuestCompletions = append([]economy.QuestCompletion(nil), raw.DailyQuestCompletions...)
	}
	return c
}

func copyInt(p *int) *int { return copyPtr(p) }

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
