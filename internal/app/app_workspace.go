package app

import (
	"weave/internal/domain"
)

// ── Workspaces ─────────────────────────────────────────────

func (a *App) ListWorkspaces() ([]domain.Workspace, error) {
	return a.workspaces.ListWorkspaces()
}

func (a *App) CreateWorkspace(name string) (*domain.Workspace, error) {
	return a.workspaces.CreateWorkspace(name)
}

func (a *App) RenameWorkspace(id, name string) error {
	return a.workspaces.RenameWorkspace(id, name)
}

func (a *App) DeleteWorkspace(id string) error {
	return a.workspaces.DeleteWorkspace(a.ctx, id)
}

// SetActiveWorkspace switches the active workspace and returns it.
func (a *App) SetActiveWorkspace(id string) (*domain.Workspace, error) {
	return a.workspaces.SetActiveWorkspace(a.ctx, id)
}

func (a *App) ActiveWorkspaceID() (string, error) {
	return a.workspaces.ActiveWorkspaceID()
}

// GetWorkspaceState returns everything the frontend needs to render a
// workspace, and points the canvas engine and cross-process watcher at it.
func (a *App) GetWorkspaceState(id string) (*domain.WorkspaceState, error) {
	state, err := a.workspaces.State(id)
	if err != nil {
		return nil, err
	}
	a.loadCanvas(state)
	if a.watcher != nil {
		a.watcher.SetWorkspace(id)
	}
	return state, nil
}

func (a *App) SaveViewport(id string, x, y, zoom float64) error {
	return a.workspaces.SaveViewport(id, x, y, zoom)
}
