// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ECONOMY SNAPSHOT QUERY
// Reading applies lazy effects (backfill, heart regeneration) and persists
// them only when something actually changed.
// ══════════════════════════════════════════════════════════════════════════════

// GetEconomySnapshotQuery requests the current economy view of a user.
type GetEconomySnapshotQuery struct {
	UserID string
}

// GetEconomySnapshotHandler handles GetEconomySnapshotQuery.
type GetEconomySnapshotHandler struct {
	runner *workflow.Runner
}

// NewGetEconomySnapshotHandler creates a new GetEconomySnapshotHandler.
func NewGetEconomySnapshotHandler(runner *workflow.Runner) *GetEconomySnapshotHandler {
	return &GetEconomySnapshotHandler{runner: runner}
}

// Handle executes the query.
func (h *GetEconomySnapshotHandler) Handle(ctx context.Context, q GetEconomySnapshotQuery) (*economy.Snapshot, error) {
	st, err := h.runner.Run(ctx, "get_economy_snapshot", q.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("get_economy_snapshot: %w", err)
	}

	snap := h.runner.Snapshot(st)
	return &snap, nil
}
