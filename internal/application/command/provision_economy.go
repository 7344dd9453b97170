// Package command contains write operations (CQRS - Commands).
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
// PROVISION ECONOMY COMMAND
// Creates the default economy record when an account is created.
// ══════════════════════════════════════════════════════════════════════════════

// ProvisionEconomyCommand requests a new economy record.
type ProvisionEconomyCommand struct {
	// UserID is the account that will own the record.
	UserID string
}

// Validate validates the command.
func (c ProvisionEconomyCommand) Validate() error {
	return workflow.ValidateUserID(c.UserID)
}

// ProvisionEconomyResult contains the freshly created state.
type ProvisionEconomyResult struct {
	Snapshot economy.Snapshot
}

// ProvisionEconomyHandler handles ProvisionEconomyCommand.
type ProvisionEconomyHandler struct {
	runner *workflow.Runner
}

// NewProvisionEconomyHandler creates a new ProvisionEconomyHandler.
func NewProvisionEconomyHandler(runner *workflow.Runner) *ProvisionEconomyHandler {
	return &ProvisionEconomyHandler{runner: runner}
}

// Handle executes the command. Returns ErrEconomyAlreadyExists if the user
// already has a record.
func (h *ProvisionEconomyHandler) Handle(ctx context.Context, cmd ProvisionEconomyCommand) (*ProvisionEconomyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("provision_economy: %w", err)
	}

	st, err := h.runner.Create(ctx, "provision_economy", cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("provision_economy: %w", err)
	}

	rec := st.Record
	h.runner.Publish(ctx, shared.NewEconomyProvisionedEvent(rec.UserID, rec.Gems, rec.Hearts, st.Now))

	logger.FromContext(ctx).Info("economy provisioned",
		logger.UserID(rec.UserID),
		logger.Gems(rec.Gems),
	)

	return &ProvisionEconomyResult{Snapshot: h.runner.Snapshot(st)}, nil
}
