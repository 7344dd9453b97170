package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPEND HEARTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SpendHeartsCommand deducts hearts after lesson mistakes.
type SpendHeartsCommand struct {
	UserID string

	// Amount must be within 1..5.
	Amount int
}

// Validate validates the command.
func (c SpendHeartsCommand) Validate() error {
	if err := workflow.ValidateUserID(c.UserID); err != nil {
		return err
	}
	if c.Amount < economy.MinHeartSpend || c.Amount > economy.MaxHeartSpend {
		return shared.ErrInvalidHeartAmount
	}
	return nil
}

// SpendHeartsResult contains the outcome of the spend.
type SpendHeartsResult struct {
	// Spent is how many hearts were actually deducted (0 with unlimited hearts).
	Spent int

	Snapshot economy.Snapshot
}

// SpendHeartsHandler handles SpendHeartsCommand.
type SpendHeartsHandler struct {
	runner *workflow.Runner
}

// NewSpendHeartsHandler creates a new SpendHeartsHandler.
func NewSpendHeartsHandler(runner *workflow.Runner) *SpendHeartsHandler {
	return &SpendHeartsHandler{runner: runner}
}

// Handle executes the command.
func (h *SpendHeartsHandler) Handle(ctx context.Context, cmd SpendHeartsCommand) (*SpendHeartsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("spend_hearts: %w", err)
	}

	var spent int
	st, err := h.runner.Run(ctx, "spend_hearts", cmd.UserID, func(st *workflow.State) error {
		n, err := economy.SpendHearts(&st.Record, cmd.Amount, st.Now)
		if err != nil {
			return err
		}
		spent = n
		if n > 0 {
			st.Dirty = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("spend_hearts: %w", err)
	}

	if spent > 0 {
		h.runner.Publish(ctx, shared.NewHeartsSpentEvent(cmd.UserID, spent, st.Record.Hearts, st.Now))
	}

	return &SpendHeartsResult{Spent: spent, Snapshot: h.runner.Snapshot(st)}, nil
}
