package service

import (
	"context"
	"fmt"

	"weave/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Workspace Service — multiple independent canvases
// ─────────────────────────────────────────────────────────────

// Settings is the small key/value persistence the workspace manager uses
// for the active-workspace pointer.
type Settings interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

const settingActiveWorkspace = "active_workspace"

// WorkspaceService manages workspace lifecycle and the active-workspace
// pointer that survives restarts.
type WorkspaceService struct {
	workspaces  domain.WorkspaceStore
	blocks      domain.BlockStore
	connections domain.ConnectionStore
	settings    Settings
	emitter     EventEmitter
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(workspaces domain.WorkspaceStore, blocks domain.BlockStore, connections domain.ConnectionStore, settings Settings, emitter EventEmitter) *WorkspaceService {
	return &WorkspaceService{
		workspaces:  workspaces,
		blocks:      blocks,
		connections: connections,
		settings:    settings,
		emitter:     emitter,
	}
}

// EnsureDefault guarantees at least one workspace exists and returns the
// active one. Called once at startup.
func (s *WorkspaceService) EnsureDefault() (*domain.Workspace, error) {
	list, err := s.workspaces.ListWorkspaces()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		ws := &domain.Workspace{Name: "My Workspace"}
		if err := s.workspaces.CreateWorkspace(ws); err != nil {
			return nil, err
		}
		if err := s.settings.Set(settingActiveWorkspace, ws.ID); err != nil {
			return nil, err
		}
		return ws, nil
	}

	activeID, err := s.settings.Get(settingActiveWorkspace)
	if err != nil {
		return nil, err
	}
	if activeID != "" {
		if ws, err := s.workspaces.GetWorkspace(activeID); err == nil {
			return ws, nil
		}
		// pointer referenced a deleted workspace, fall through
	}
	_ = s.settings.Set(settingActiveWorkspace, list[0].ID)
	return &list[0], nil
}

// CreateWorkspace creates a named workspace and makes it active.
func (s *WorkspaceService) CreateWorkspace(name string) (*domain.Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is empty", ErrPrecondition)
	}
	ws := &domain.Workspace{Name: name}
	if err := s.workspaces.CreateWorkspace(ws); err != nil {
		return nil, err
	}
	if err := s.settings.Set(settingActiveWorkspace, ws.ID); err != nil {
		return nil, err
	}
	return ws, nil
}

// RenameWorkspace changes a workspace's display name.
func (s *WorkspaceService) RenameWorkspace(id, name string) error {
	if name == "" {
		return fmt.Errorf("%w: workspace name is empty", ErrPrecondition)
	}
	ws, err := s.workspaces.GetWorkspace(id)
	if err != nil {
		return err
	}
	ws.Name = name
	return s.workspaces.UpdateWorkspace(ws)
}

// ListWorkspaces returns all workspaces, most recently modified first.
func (s *WorkspaceService) ListWorkspaces() ([]domain.Workspace, error) {
	return s.workspaces.ListWorkspaces()
}

// ActiveWorkspaceID returns the persisted active-workspace pointer, or ""
// when none is set.
func (s *WorkspaceService) ActiveWorkspaceID() (string, error) {
	return s.settings.Get(settingActiveWorkspace)
}

// SetActiveWorkspace switches the active workspace.
func (s *WorkspaceService) SetActiveWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	ws, err := s.workspaces.GetWorkspace(id)
	if err != nil {
		return nil, err
	}
	if err := s.settings.Set(settingActiveWorkspace, id); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventWorkspaceRefresh, id)
	return ws, nil
}

// SaveViewport persists the camera position and zoom for a workspace.
func (s *WorkspaceService) SaveViewport(id string, x, y, zoom float64) error {
	ws, err := s.workspaces.GetWorkspace(id)
	if err != nil {
		return err
	}
	ws.ViewportX, ws.ViewportY, ws.ViewportZoom = x, y, zoom
	return s.workspaces.UpdateWorkspace(ws)
}

// State returns the full renderable state of a workspace. Blocks and
// connections are never nil so the frontend can iterate without guards.
func (s *WorkspaceService) State(id string) (*domain.WorkspaceState, error) {
	ws, err := s.workspaces.GetWorkspace(id)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListBlocks(id)
	if err != nil {
		return nil, err
	}
	conns, err := s.connections.ListConnections(id)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	if conns == nil {
		conns = []domain.Connection{}
	}
	return &domain.WorkspaceState{Workspace: *ws, Blocks: blocks, Connections: conns}, nil
}

// DeleteWorkspace removes a workspace with all its blocks and
// connections. The last workspace cannot be deleted.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, id string) error {
	list, err := s.workspaces.ListWorkspaces()
	if err != nil {
		return err
	}
	if len(list) <= 1 {
		return fmt.Errorf("%w: cannot delete the last workspace", ErrPrecondition)
	}

	if err := s.connections.DeleteConnectionsByWorkspace(id); err != nil {
		return err
	}
	if err := s.blocks.DeleteBlocksByWorkspace(id); err != nil {
		return err
	}
	if err := s.workspaces.DeleteWorkspace(id); err != nil {
		return err
	}

	activeID, _ := s.settings.Get(settingActiveWorkspace)
	if activeID == id {
		for _, ws := range list {
			if ws.ID != id {
				_ = s.settings.Set(settingActiveWorkspace, ws.ID)
				break
			}
		}
	}
	s.emitter.Emit(ctx, EventWorkspaceRefresh, "")
	return nil
}
