package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LESSON COMPLETION COMMAND
// Updates daily accumulators, the streak, the wager and quest rewards.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLessonCommand reports a finished lesson.
type RecordLessonCommand struct {
	UserID string

	// XPEarned is the XP awarded by the lesson (>= 0).
	XPEarned int

	// TimeSpentSeconds is the time spent in the lesson (>= 0).
	TimeSpentSeconds int
}

// Validate validates the command.
func (c RecordLessonCommand) Validate() error {
	if err := workflow.ValidateUserID(c.UserID); err != nil {
		return err
	}
	if c.XPEarned < 0 {
		return shared.ErrNegativeXP
	}
	if c.TimeSpentSeconds < 0 {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// RecordLessonResult contains everything the lesson changed.
type RecordLessonResult struct {
	QuestRewards economy.QuestRewards
	Streak       economy.StreakResult

	// Wager is set when the lesson settled a double-or-nothing wager.
	Wager *economy.WagerSettlement

	Snapshot economy.Snapshot
}

// RecordLessonHandler handles RecordLessonCommand.
type RecordLessonHandler struct {
	runner *workflow.Runner
}

// NewRecordLessonHandler creates a new RecordLessonHandler.
func NewRecordLessonHandler(runner *workflow.Runner) *RecordLessonHandler {
	return &RecordLessonHandler{runner: runner}
}

// Handle executes the command.
func (h *RecordLessonHandler) Handle(ctx context.Context, cmd RecordLessonCommand) (*RecordLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_lesson: %w", err)
	}

	protect := h.runner.Enabled(workflow.FeatureStreakProtection, cmd.UserID)
	settle := h.runner.Enabled(workflow.FeatureWagerSettlement, cmd.UserID)

	var result RecordLessonResult
	st, err := h.runner.Run(ctx, "record_lesson", cmd.UserID, func(st *workflow.State) error {
		rec := &st.Record

		economy.EnsureDailyStats(rec, st.Now)
		economy.RecordLesson(rec, cmd.XPEarned, cmd.TimeSpentSeconds)

		result.Streak = economy.UpdateStreak(rec, st.Now, protect)
		if settle {
			result.Wager = economy.SettleWager(rec, result.Streak)
		}
		result.QuestRewards = economy.ApplyRewards(rec, st.Now)

		st.Dirty = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_lesson: %w", err)
	}

	h.runner.Publish(ctx, lessonEvents(cmd, &result, st)...)

	log := logger.FromContext(ctx).With(logger.UserID(cmd.UserID))
	if result.QuestRewards.Gems > 0 {
		log.Info("quest rewards granted",
			logger.Gems(result.QuestRewards.Gems),
			logger.Int("quests", len(result.QuestRewards.Quests)),
		)
	}
	if result.Wager != nil {
		log.Info("wager settled",
			logger.String("result", string(result.Wager.Result)),
			logger.Int("payout", result.Wager.Payout),
		)
	}

	result.Snapshot = h.runner.Snapshot(st)
	return &result, nil
}

func lessonEvents(cmd RecordLessonCommand, res *RecordLessonResult, st *workflow.State) []shared.Event {
	now := st.Now
	events := []shared.Event{
		shared.NewLessonRecordedEvent(cmd.UserID, cmd.XPEarned, cmd.TimeSpentSeconds, now),
	}

	s := res.Streak
	if s.Changed() || s.ProtectedBy != economy.ProtectionNone {
		events = append(events, shared.NewStreakUpdatedEvent(
			cmd.UserID, s.Previous, s.Current, s.Longest, string(s.ProtectedBy), now))
	}
	if s.Reset {
		events = append(events, shared.NewStreakBrokenEvent(cmd.UserID, s.Previous, s.DaysMissed, now))
	}

	for _, q := range res.QuestRewards.Quests {
		events = append(events, shared.NewQuestCompletedEvent(cmd.UserID, q.ID, q.RewardGems, now))
	}

	if res.Wager != nil {
		events = append(events, shared.NewWagerSettledEvent(cmd.UserID, string(res.Wager.Result), res.Wager.Payout, now))
	}

	return events
}
