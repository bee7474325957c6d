package domain

import "time"

// Workspace is an independent named graph of blocks and connections.
// Exactly one workspace is active at a time; the active id is persisted
// in app settings. LastModified is bumped on every graph mutation.
type Workspace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ViewportX    float64   `json:"viewportX"`
	ViewportY    float64   `json:"viewportY"`
	ViewportZoom float64   `json:"viewportZoom"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// WorkspaceState is the complete state of a workspace for rendering.
// Returned to the frontend to draw the full canvas.
type WorkspaceState struct {
	Workspace   Workspace    `json:"workspace"`
	Blocks      []Block      `json:"blocks"`
	Connections []Connection `json:"connections"`
}

type WorkspaceStore interface {
	CreateWorkspace(ws *Workspace) error
	GetWorkspace(id string) (*Workspace, error)
	ListWorkspaces() ([]Workspace, error)
	UpdateWorkspace(ws *Workspace) error
	TouchWorkspace(id string) error
	DeleteWorkspace(id string) error
}
