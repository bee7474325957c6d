package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weave/internal/domain"
)

// ConnectionStore implements domain.ConnectionStore using SQLite.
type ConnectionStore struct {
	db *DB
}

// NewConnectionStore creates a new ConnectionStore.
func NewConnectionStore(db *DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func (s *ConnectionStore) CreateConnection(c *domain.Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()

	_, err := s.db.conn.Exec(`
		INSERT INTO connections (id, workspace_id, from_block_id, to_block_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.FromBlockID, c.ToBlockID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) GetConnection(id string) (*domain.Connection, error) {
	row := s.db.conn.QueryRow(`
		SELECT id, workspace_id, from_block_id, to_block_id, created_at
		FROM connections WHERE id = ?`, id)

	var c domain.Connection
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.FromBlockID, &c.ToBlockID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connection not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &c, nil
}

func (s *ConnectionStore) ListConnections(workspaceID string) ([]domain.Connection, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, workspace_id, from_block_id, to_block_id, created_at
		FROM connections WHERE workspace_id = ? ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.FromBlockID, &c.ToBlockID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// ConnectionExists reports whether a connection from one block to another
// already exists, regardless of which workspace row it belongs to.
func (s *ConnectionStore) ConnectionExists(fromBlockID, toBlockID string) (bool, error) {
	var count int
	err := s.db.conn.QueryRow(`
		SELECT COUNT(*) FROM connections
		WHERE from_block_id = ? AND to_block_id = ?`, fromBlockID, toBlockID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return count > 0, nil
}

func (s *ConnectionStore) DeleteConnection(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// DeleteConnectionsByBlock removes every connection touching the block,
// in either direction.
func (s *ConnectionStore) DeleteConnectionsByBlock(blockID string) error {
	_, err := s.db.conn.Exec(`
		DELETE FROM connections WHERE from_block_id = ? OR to_block_id = ?`,
		blockID, blockID)
	if err != nil {
		return fmt.Errorf("delete block connections: %w", err)
	}
	return nil
}

func (s *ConnectionStore) DeleteConnectionsByWorkspace(workspaceID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM connections WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace connections: %w", err)
	}
	return nil
}
