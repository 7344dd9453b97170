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
// REFILL HEARTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RefillHeartsCommand buys a full set of hearts for gems.
type RefillHeartsCommand struct {
	UserID string
}

// Validate validates the command.
func (c RefillHeartsCommand) Validate() error {
	return workflow.ValidateUserID(c.UserID)
}

// RefillHeartsResult contains the outcome of the refill.
type RefillHeartsResult struct {
	Cost     int
	Snapshot economy.Snapshot
}

// RefillHeartsHandler handles RefillHeartsCommand.
type RefillHeartsHandler struct {
	runner *workflow.Runner
}

// NewRefillHeartsHandler creates a new RefillHeartsHandler.
func NewRefillHeartsHandler(runner *workflow.Runner) *RefillHeartsHandler {
	return &RefillHeartsHandler{runner: runner}
}

// Handle executes the command. Fails with InsufficientFunds, AlreadyFull or
// UnlimitedActive without touching the stored record.
func (h *RefillHeartsHandler) Handle(ctx context.Context, cmd RefillHeartsCommand) (*RefillHeartsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("refill_hearts: %w", err)
	}

	var purchase economy.PurchaseResult
	st, err := h.runner.Run(ctx, "refill_hearts", cmd.UserID, func(st *workflow.State) error {
		res, err := economy.RefillHearts(&st.Record, st.Now)
		if err != nil {
			return err
		}
		purchase = res
		st.Dirty = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refill_hearts: %w", err)
	}

	h.runner.Publish(ctx,
		shared.NewPowerUpPurchasedEvent(cmd.UserID, string(economy.PowerUpRefillHearts), purchase.Cost, purchase.GemsAfter, st.Now),
		shared.NewHeartsRefilledEvent(cmd.UserID, purchase.Cost, st.Record.Hearts, st.Now),
	)

	logger.FromContext(ctx).Info("hearts refilled",
		logger.UserID(cmd.UserID),
		logger.Gems(purchase.GemsAfter),
	)

	return &RefillHeartsResult{Cost: purchase.Cost, Snapshot: h.runner.Snapshot(st)}, nil
}
