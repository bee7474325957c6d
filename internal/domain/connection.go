package domain

import "time"

// Connection is a directed edge from one block's output to another block's
// input. Connected inputs are how pipelines gather context.
type Connection struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	FromBlockID string    `json:"fromBlockId"`
	ToBlockID   string    `json:"toBlockId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ConnectionStore interface {
	CreateConnection(c *Connection) error
	GetConnection(id string) (*Connection, error)
	ListConnections(workspaceID string) ([]Connection, error)
	ConnectionExists(fromBlockID, toBlockID string) (bool, error)
	DeleteConnection(id string) error
	DeleteConnectionsByWorkspace(workspaceID string) error
	DeleteConnectionsByBlock(blockID string) error
}
