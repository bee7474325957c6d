package app

import (
	"weave/internal/domain"
	"weave/internal/service"
)

// ── Blocks ─────────────────────────────────────────────────

func (a *App) CreateBlock(workspaceID, blockType string, x, y float64) (*domain.Block, error) {
	b, err := a.graph.AddBlock(workspaceID, domain.BlockType(blockType), x, y)
	if err != nil {
		return nil, err
	}
	a.trackBlock(b)
	return b, nil
}

func (a *App) GetBlock(id string) (*domain.Block, error) {
	return a.graph.GetBlock(id)
}

func (a *App) ListBlocks(workspaceID string) ([]domain.Block, error) {
	return a.graph.ListBlocks(workspaceID)
}

// UpdateBlock applies a partial update. A patch against a deleted block is
// a silent no-op and returns nil.
func (a *App) UpdateBlock(id string, patch service.BlockPatch) (*domain.Block, error) {
	b, err := a.graph.UpdateBlock(a.ctx, id, patch)
	if err != nil {
		return nil, err
	}
	a.trackBlock(b)
	return b, nil
}

func (a *App) AddTag(id, tag string) (*domain.Block, error) {
	return a.graph.AddTag(a.ctx, id, tag)
}

func (a *App) MoveBlock(id string, x, y float64) error {
	if err := a.graph.MoveBlock(id, x, y); err != nil {
		return err
	}
	if b, err := a.graph.GetBlock(id); err == nil {
		a.trackBlock(b)
	}
	return nil
}

func (a *App) DeleteBlock(id string) error {
	if err := a.graph.DeleteBlock(a.ctx, id); err != nil {
		return err
	}
	a.forgetBlock(id)
	return nil
}
