package app

import (
	"weave/internal/domain"
)

// ── Connections ────────────────────────────────────────────

// CreateConnection wires a directed edge between two blocks. A duplicate
// edge returns nil without error; self-loops and cross-workspace edges
// are rejected.
func (a *App) CreateConnection(fromBlockID, toBlockID string) (*domain.Connection, error) {
	return a.graph.AddConnection(a.ctx, fromBlockID, toBlockID)
}

func (a *App) DeleteConnection(id string) error {
	return a.graph.DeleteConnection(a.ctx, id)
}

func (a *App) ListConnections(workspaceID string) ([]domain.Connection, error) {
	return a.graph.ListConnections(workspaceID)
}

// ListInputs returns the blocks feeding into a block, in connection order.
func (a *App) ListInputs(blockID string) ([]domain.Block, error) {
	return a.graph.InputsOf(blockID)
}
