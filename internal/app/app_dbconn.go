package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"weave/internal/dbclient"
	"weave/internal/domain"
)

// ── External database connections (ingestion sources) ──────

// DBConnView is the frontend-safe view of a database connection
// (no password).
type DBConnView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	SSLMode  string `json:"sslMode"`
}

// CreateDBConnInput is the input for creating/updating a database
// connection.
type CreateDBConnInput struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

func viewOf(c domain.DatabaseConnection) DBConnView {
	return DBConnView{
		ID: c.ID, Name: c.Name, Driver: string(c.Driver),
		Host: c.Host, Port: c.Port, Database: c.Database,
		Username: c.Username, SSLMode: c.SSLMode,
	}
}

func (a *App) ListDatabaseConnections() ([]DBConnView, error) {
	conns, err := a.dbConns.ListConnections()
	if err != nil {
		return nil, err
	}
	views := make([]DBConnView, len(conns))
	for i, c := range conns {
		views[i] = viewOf(c)
	}
	return views, nil
}

func (a *App) CreateDatabaseConnection(input CreateDBConnInput) (*DBConnView, error) {
	conn := &domain.DatabaseConnection{
		ID:       uuid.New().String(),
		Name:     input.Name,
		Driver:   domain.DatabaseDriver(input.Driver),
		Host:     input.Host,
		Port:     input.Port,
		Database: input.Database,
		Username: input.Username,
		SSLMode:  input.SSLMode,
	}
	if err := a.dbConns.CreateConnection(conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	// Password lives in the keychain, never in SQLite
	if input.Password != "" {
		if err := a.secrets.Set(conn.ID, []byte(input.Password)); err != nil {
			a.dbConns.DeleteConnection(conn.ID)
			return nil, fmt.Errorf("save password: %w", err)
		}
	}

	view := viewOf(*conn)
	return &view, nil
}

func (a *App) UpdateDatabaseConnection(id string, input CreateDBConnInput) error {
	conn, err := a.dbConns.GetConnection(id)
	if err != nil {
		return err
	}

	conn.Name = input.Name
	conn.Driver = domain.DatabaseDriver(input.Driver)
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode

	if err := a.dbConns.UpdateConnection(conn); err != nil {
		return err
	}

	if input.Password != "" {
		if err := a.secrets.Set(id, []byte(input.Password)); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
	}

	a.closeConnector(id)
	return nil
}

func (a *App) DeleteDatabaseConnection(id string) error {
	a.closeConnector(id)
	a.secrets.Delete(id)
	return a.dbConns.DeleteConnection(id)
}

func (a *App) TestDatabaseConnection(id string) error {
	connector, err := a.getOrCreateConnector(id)
	if err != nil {
		return err
	}
	return connector.TestConnection(context.Background())
}

// PreviewQuery runs a read query against a stored connection so the user
// can inspect what an ingestion would pull.
func (a *App) PreviewQuery(connectionID, query string, limit int) (*dbclient.RowSet, error) {
	connector, err := a.getOrCreateConnector(connectionID)
	if err != nil {
		return nil, err
	}
	return connector.Query(context.Background(), query, limit)
}

// SelectBlocksForExport returns the blocks chosen for an external export,
// view only. Rendering the document is the caller's concern.
func (a *App) SelectBlocksForExport(blockIDs []string) ([]domain.Block, error) {
	out := make([]domain.Block, 0, len(blockIDs))
	for _, id := range blockIDs {
		b, err := a.graph.GetBlock(id)
		if err != nil {
			continue // skip dangling selections
		}
		out = append(out, *b)
	}
	return out, nil
}

// getOrCreateConnector retrieves a cached connector or creates a new one.
func (a *App) getOrCreateConnector(connID string) (dbclient.Connector, error) {
	a.connectorsMu.Lock()
	defer a.connectorsMu.Unlock()

	if c, ok := a.activeConnectors[connID]; ok {
		return c, nil
	}

	conn, err := a.dbConns.GetConnection(connID)
	if err != nil {
		return nil, fmt.Errorf("connection not found: %w", err)
	}

	password := ""
	if pw, err := a.secrets.Get(connID); err == nil && pw != nil {
		password = string(pw)
	}

	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	a.activeConnectors[connID] = connector
	return connector, nil
}

// closeConnector drops a cached connector so the next use reconnects.
func (a *App) closeConnector(connID string) {
	a.connectorsMu.Lock()
	if c, ok := a.activeConnectors[connID]; ok {
		c.Close()
		delete(a.activeConnectors, connID)
	}
	a.connectorsMu.Unlock()
}
