package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

const userID = "0b8f7f0e-6a53-4a8e-8f4e-2f1d8f2b7c10"

var start = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type gate map[string]bool

func (g gate) IsEnabledFor(feature, _ string) bool {
	on, ok := g[feature]
	return !ok || on
}

type fixture struct {
	repo   *memory.EconomyRepository
	clock  *timeutil.FixedClock
	pub    *recordingPublisher
	runner *workflow.Runner
}

func newFixture(t *testing.T, opts ...workflow.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.NewEconomyRepository(),
		clock: timeutil.NewFixedClock(start),
		pub:   &recordingPublisher{},
	}
	f.runner = workflow.NewRunner(f.repo, memory.NewKeyedLocker(), f.clock, f.pub,
		workflow.Config{Economy: economy.DefaultConfig()}, opts...)

	_, err := NewProvisionEconomyHandler(f.runner).Handle(context.Background(), ProvisionEconomyCommand{UserID: userID})
	require.NoError(t, err)
	return f
}

func (f *fixture) stored(t *testing.T) economy.RawRecord {
	t.Helper()
	raw, err := f.repo.Get(context.Background(), userID)
	require.NoError(t, err)
	return raw
}

func TestProvisionEconomy(t *testing.T) {
	f := newFixture(t)

	raw := f.stored(t)
	assert.Equal(t, 1000, *raw.Gems)
	assert.Equal(t, 5, *raw.Hearts)
	assert.Contains(t, f.pub.types(), shared.EventEconomyProvisioned)

	_, err := NewProvisionEconomyHandler(f.runner).Handle(context.Background(), ProvisionEconomyCommand{UserID: userID})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = NewProvisionEconomyHandler(f.runner).Handle(context.Background(), ProvisionEconomyCommand{UserID: "not-a-uuid"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSpendHearts_ThenRegenerate(t *testing.T) {
	f := newFixture(t)
	h := NewSpendHeartsHandler(f.runner)
	ctx := context.Background()

	res, err := h.Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Spent)
	assert.Equal(t, 2, res.Snapshot.Hearts)
	assert.Equal(t, int64(600), res.Snapshot.HeartRegen.NextInSeconds)
	assert.Equal(t, int64(1800), res.Snapshot.HeartRegen.FullInSeconds)

	f.clock.Advance(25 * time.Minute)
	res, err = h.Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 1})
	require.NoError(t, err)
	// 2 + 2 regenerated - 1 spent
	assert.Equal(t, 3, res.Snapshot.Hearts)
	assert.Equal(t, int64(300), res.Snapshot.HeartRegen.NextInSeconds)
}

func TestSpendHearts_NoHeartsRemaining(t *testing.T) {
	f := newFixture(t)
	h := NewSpendHeartsHandler(f.runner)
	ctx := context.Background()

	_, err := h.Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 5})
	require.NoError(t, err)
	version := f.stored(t).Version

	_, err = h.Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 1})
	assert.ErrorIs(t, err, shared.ErrNoHeartsRemaining)
	assert.Equal(t, version, f.stored(t).Version)

	_, err = h.Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 6})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRefillHearts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := NewRefillHeartsHandler(f.runner).Handle(ctx, RefillHeartsCommand{UserID: userID})
	assert.ErrorIs(t, err, shared.ErrAlreadyFull)

	_, err = NewSpendHeartsHandler(f.runner).Handle(ctx, SpendHeartsCommand{UserID: userID, Amount: 2})
	require.NoError(t, err)

	res, err := NewRefillHeartsHandler(f.runner).Handle(ctx, RefillHeartsCommand{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Cost)
	assert.Equal(t, 900, res.Snapshot.Gems)
	assert.Equal(t, 5, res.Snapshot.Hearts)
	assert.Contains(t, f.pub.types(), shared.EventHeartsRefilled)
}

func TestRefillHearts_ConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gems := 150
	hearts := 0
	raw := f.stored(t)
	raw.Gems = &gems
	raw.Hearts = &hearts
	heartsAt := start
	raw.HeartsUpdatedAt = &heartsAt
	f.repo.Put(raw)

	h := NewRefillHeartsHandler(f.runner)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		failures []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(ctx, RefillHeartsCommand{UserID: userID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			success++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	for _, err := range failures {
		assert.ErrorIs(t, err, shared.ErrAlreadyFull)
	}
	assert.Equal(t, 50, *f.stored(t).Gems)
}

func TestPurchasePowerUp(t *testing.T) {
	f := newFixture(t)
	h := NewPurchasePowerUpHandler(f.runner)
	ctx := context.Background()

	res, err := h.Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "streak_shield"})
	require.NoError(t, err)
	require.NotNil(t, res.Purchase.StreakShieldUntil)
	assert.Equal(t, start.Add(24*time.Hour), *res.Purchase.StreakShieldUntil)

	res, err = h.Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "streak_shield"})
	require.NoError(t, err)
	assert.Equal(t, start.Add(48*time.Hour), *res.Snapshot.StreakShieldUntil)
	assert.Equal(t, 980, res.Snapshot.Gems)

	_, err = h.Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "moon_boots"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPurchasePowerUp_InsufficientFundsWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gems := 5
	raw := f.stored(t)
	raw.Gems = &gems
	f.repo.Put(raw)
	before := f.stored(t)

	_, err := NewPurchasePowerUpHandler(f.runner).Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "streak_freeze"})

	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.Equal(t, before, f.stored(t))
}

func TestPurchasePowerUp_Disabled(t *testing.T) {
	f := newFixture(t, workflow.WithFeatureGate(gate{workflow.FeatureSuperTrial: false}))

	_, err := NewPurchasePowerUpHandler(f.runner).Handle(context.Background(),
		PurchasePowerUpCommand{UserID: userID, Type: "super_trial"})

	assert.ErrorIs(t, err, shared.ErrFeatureUnavailable)
}

func TestRecordLesson_QuestRewardGrantedOnce(t *testing.T) {
	f := newFixture(t)
	h := NewRecordLessonHandler(f.runner)
	ctx := context.Background()

	res, err := h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 45, TimeSpentSeconds: 120})
	require.NoError(t, err)
	assert.Zero(t, res.QuestRewards.Gems)
	assert.Equal(t, 1, res.Streak.Current)

	res, err = h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10, TimeSpentSeconds: 120})
	require.NoError(t, err)
	assert.Equal(t, 20, res.QuestRewards.Gems)
	assert.Equal(t, 1020, res.Snapshot.Gems)

	res, err = h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10, TimeSpentSeconds: 120})
	require.NoError(t, err)
	// third lesson completes the lessons quest only
	assert.Equal(t, 30, res.QuestRewards.Gems)
	assert.Equal(t, 1050, res.Snapshot.Gems)

	assert.Contains(t, f.pub.types(), shared.EventQuestCompleted)
}

func TestRecordLesson_StreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	h := NewRecordLessonHandler(f.runner)
	ctx := context.Background()

	_, err := h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	res, err := h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak.Current)

	f.clock.Advance(72 * time.Hour)
	res, err = h.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)
	assert.True(t, res.Streak.Reset)
	assert.Equal(t, 1, res.Snapshot.CurrentStreak)
	assert.Equal(t, 2, res.Snapshot.LongestStreak)
	assert.Contains(t, f.pub.types(), shared.EventStreakBroken)
}

func TestRecordLesson_FreezeProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := NewRecordLessonHandler(f.runner)

	_, err := lesson.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)
	_, err = NewPurchasePowerUpHandler(f.runner).Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "streak_freeze"})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	res, err := lesson.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)

	assert.Equal(t, economy.ProtectionFreeze, res.Streak.ProtectedBy)
	assert.Equal(t, 2, res.Snapshot.CurrentStreak)
	assert.Zero(t, res.Snapshot.StreakFreezes)
}

func TestRecordLesson_ProtectionFlagOff(t *testing.T) {
	f := newFixture(t, workflow.WithFeatureGate(gate{workflow.FeatureStreakProtection: false}))
	ctx := context.Background()
	lesson := NewRecordLessonHandler(f.runner)

	_, err := lesson.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)
	_, err = NewPurchasePowerUpHandler(f.runner).Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "streak_freeze"})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	res, err := lesson.Handle(ctx, RecordLessonCommand{UserID: userID, XPEarned: 10})
	require.NoError(t, err)

	assert.True(t, res.Streak.Reset)
	assert.Equal(t, 1, res.Snapshot.StreakFreezes)
}

func TestRecordLesson_WagerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lesson := NewRecordLessonHandler(f.runner)

	_, err := NewPurchasePowerUpHandler(f.runner).Handle(ctx, PurchasePowerUpCommand{UserID: userID, Type: "double_or_nothing"})
	require.NoError(t, err)

	var res *RecordLessonResult
	for day := 0; day < economy.WagerStreakDays; day++ {
		res, err = lesson.Handle(ctx, RecordLessonCommand{UserID: userID})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	require.NotNil(t, res.Wager)
	assert.Equal(t, economy.WagerWon, res.Wager.Result)
	assert.False(t, res.Snapshot.DoubleOrNothing.Active)
	require.NotNil(t, res.Snapshot.DoubleOrNothing.LastResult)
	assert.Equal(t, "won", *res.Snapshot.DoubleOrNothing.LastResult)
	// 1000 - 50 stake + 100 payout, no quests completed with zero XP
	assert.Equal(t, 1050, res.Snapshot.Gems)
}

func TestRecordLesson_Validation(t *testing.T) {
	f := newFixture(t)
	h := NewRecordLessonHandler(f.runner)

	_, err := h.Handle(context.Background(), RecordLessonCommand{UserID: userID, XPEarned: -1})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(context.Background(), RecordLessonCommand{UserID: userID, TimeSpentSeconds: -1})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommands_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := NewSpendHeartsHandler(f.runner).Handle(context.Background(),
		SpendHeartsCommand{UserID: "11111111-2222-3333-4444-555555555555", Amount: 1})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
