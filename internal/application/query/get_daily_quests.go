package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY QUEST STATE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyQuestsQuery requests today's quest progress.
type GetDailyQuestsQuery struct {
	UserID string
}

// DailyQuestsResult is today's quest board.
type DailyQuestsResult struct {
	// ResetInSeconds is the countdown to the next local midnight.
	ResetInSeconds int64 `json:"resetInSeconds"`

	Quests []economy.QuestState `json:"quests"`
}

// GetDailyQuestsHandler handles GetDailyQuestsQuery.
type GetDailyQuestsHandler struct {
	runner *workflow.Runner
}

// NewGetDailyQuestsHandler creates a new GetDailyQuestsHandler.
func NewGetDailyQuestsHandler(runner *workflow.Runner) *GetDailyQuestsHandler {
	return &GetDailyQuestsHandler{runner: runner}
}

// Handle executes the query. A stale day is reset and persisted.
func (h *GetDailyQuestsHandler) Handle(ctx context.Context, q GetDailyQuestsQuery) (*DailyQuestsResult, error) {
	st, err := h.runner.Run(ctx, "get_daily_quests", q.UserID, func(st *workflow.State) error {
		if economy.EnsureDailyStats(&st.Record, st.Now) {
			st.Dirty = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_daily_quests: %w", err)
	}

	return &DailyQuestsResult{
		ResetInSeconds: economy.ResetInSeconds(st.Now),
		Quests:         economy.QuestStates(st.Record, st.Now),
	}, nil
}
