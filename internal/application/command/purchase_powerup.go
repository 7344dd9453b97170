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
// PURCHASE POWER-UP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// PurchasePowerUpCommand buys a power-up from the catalog.
type PurchasePowerUpCommand struct {
	UserID string

	// Type is the catalog type, e.g. "streak_shield".
	Type string
}

// Validate validates the command.
func (c PurchasePowerUpCommand) Validate() error {
	if err := workflow.ValidateUserID(c.UserID); err != nil {
		return err
	}
	_, err := economy.ParsePowerUpType(c.Type)
	return err
}

// PurchasePowerUpResult contains the type-specific outcome.
type PurchasePowerUpResult struct {
	Purchase economy.PurchaseResult
	Snapshot economy.Snapshot
}

// PurchasePowerUpHandler handles PurchasePowerUpCommand.
type PurchasePowerUpHandler struct {
	runner *workflow.Runner
}

// NewPurchasePowerUpHandler creates a new PurchasePowerUpHandler.
func NewPurchasePowerUpHandler(runner *workflow.Runner) *PurchasePowerUpHandler {
	return &PurchasePowerUpHandler{runner: runner}
}

// gatedPowerUps maps power-ups to the feature that can switch them off.
var gatedPowerUps = map[economy.PowerUpType]string{
	economy.PowerUpSuperTrial:      workflow.FeatureSuperTrial,
	economy.PowerUpDoubleOrNothing: workflow.FeatureDoubleOrNothing,
}

// Handle executes the command.
func (h *PurchasePowerUpHandler) Handle(ctx context.Context, cmd PurchasePowerUpCommand) (*PurchasePowerUpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}
	kind := economy.PowerUpType(cmd.Type)

	if feature, ok := gatedPowerUps[kind]; ok && !h.runner.Enabled(feature, cmd.UserID) {
		return nil, fmt.Errorf("purchase_powerup: %w", shared.ErrPowerUpDisabled)
	}

	var purchase economy.PurchaseResult
	st, err := h.runner.Run(ctx, "purchase_powerup", cmd.UserID, func(st *workflow.State) error {
		res, err := economy.Purchase(&st.Record, kind, st.Now)
		if err != nil {
			return err
		}
		purchase = res
		st.Dirty = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("purchase_powerup: %w", err)
	}

	events := []shared.Event{
		shared.NewPowerUpPurchasedEvent(cmd.UserID, string(kind), purchase.Cost, purchase.GemsAfter, st.Now),
	}
	if kind == economy.PowerUpRefillHearts {
		events = append(events, shared.NewHeartsRefilledEvent(cmd.UserID, purchase.Cost, st.Record.Hearts, st.Now))
	}
	h.runner.Publish(ctx, events...)

	logger.FromContext(ctx).Info("power-up purchased",
		logger.UserID(cmd.UserID),
		logger.PowerUp(string(kind)),
		logger.Gems(purchase.GemsAfter),
	)

	return &PurchasePowerUpResult{Purchase: purchase, Snapshot: h.runner.Snapshot(st)}, nil
}
