package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weave/internal/domain"
)

// WorkspaceStore implements domain.WorkspaceStore using SQLite.
type WorkspaceStore struct {
	db *DB
}

// NewWorkspaceStore creates a new WorkspaceStore.
func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) CreateWorkspace(w *domain.Workspace) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.ViewportZoom == 0 {
		w.ViewportZoom = 1.0
	}
	now := time.Now()
	w.CreatedAt = now
	w.LastModified = now

	_, err := s.db.conn.Exec(`
		INSERT INTO workspaces (id, name, viewport_x, viewport_y, viewport_zoom, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.ViewportX, w.ViewportY, w.ViewportZoom, w.CreatedAt, w.LastModified,
	)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetWorkspace(id string) (*domain.Workspace, error) {
	row := s.db.conn.QueryRow(`
		SELECT id, name, viewport_x, viewport_y, viewport_zoom, created_at, last_modified
		FROM workspaces WHERE id = ?`, id)

	var w domain.Workspace
	err := row.Scan(&w.ID, &w.Name, &w.ViewportX, &w.ViewportY, &w.ViewportZoom, &w.CreatedAt, &w.LastModified)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workspace not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &w, nil
}

func (s *WorkspaceStore) ListWorkspaces() ([]domain.Workspace, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, name, viewport_x, viewport_y, viewport_zoom, created_at, last_modified
		FROM workspaces ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.ViewportX, &w.ViewportY, &w.ViewportZoom, &w.CreatedAt, &w.LastModified); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

func (s *WorkspaceStore) UpdateWorkspace(w *domain.Workspace) error {
	w.LastModified = time.Now()

	res, err := s.db.conn.Exec(`
		UPDATE workspaces SET name = ?, viewport_x = ?, viewport_y = ?, viewport_zoom = ?, last_modified = ?
		WHERE id = ?`,
		w.Name, w.ViewportX, w.ViewportY, w.ViewportZoom, w.LastModified, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workspace not found: %s", w.ID)
	}
	return nil
}

// TouchWorkspace bumps last_modified without changing anything else.
// Content mutations route through here so recency ordering stays honest.
func (s *WorkspaceStore) TouchWorkspace(id string) error {
	_, err := s.db.conn.Exec(`
		UPDATE workspaces SET last_modified = ? WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("touch workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) DeleteWorkspace(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}
