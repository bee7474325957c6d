package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weave/internal/domain"
)

// DatabaseConnectionStore implements domain.DatabaseConnectionStore using SQLite.
type DatabaseConnectionStore struct {
	db *DB
}

// NewDatabaseConnectionStore creates a new DatabaseConnectionStore.
func NewDatabaseConnectionStore(db *DB) *DatabaseConnectionStore {
	return &DatabaseConnectionStore{db: db}
}

func (s *DatabaseConnectionStore) CreateConnection(c *domain.DatabaseConnection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO db_connections (id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Driver), c.Host, c.Port, c.Database,
		c.Username, c.SSLMode, c.ExtraJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create db connection: %w", err)
	}
	return nil
}

func (s *DatabaseConnectionStore) GetConnection(id string) (*domain.DatabaseConnection, error) {
	row := s.db.conn.QueryRow(`
		SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		FROM db_connections WHERE id = ?`, id)

	var c domain.DatabaseConnection
	var driver string
	err := row.Scan(&c.ID, &c.Name, &driver, &c.Host, &c.Port, &c.Database,
		&c.Username, &c.SSLMode, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("db connection not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get db connection: %w", err)
	}
	c.Driver = domain.DatabaseDriver(driver)
	return &c, nil
}

func (s *DatabaseConnectionStore) ListConnections() ([]domain.DatabaseConnection, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		FROM db_connections ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list db connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.DatabaseConnection
	for rows.Next() {
		var c domain.DatabaseConnection
		var driver string
		if err := rows.Scan(&c.ID, &c.Name, &driver, &c.Host, &c.Port, &c.Database,
			&c.Username, &c.SSLMode, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan db connection: %w", err)
		}
		c.Driver = domain.DatabaseDriver(driver)
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *DatabaseConnectionStore) UpdateConnection(c *domain.DatabaseConnection) error {
	c.UpdatedAt = time.Now()

	res, err := s.db.conn.Exec(`
		UPDATE db_connections SET name = ?, driver = ?, host = ?, port = ?,
			database_name = ?, username = ?, ssl_mode = ?, extra_json = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, string(c.Driver), c.Host, c.Port, c.Database,
		c.Username, c.SSLMode, c.ExtraJSON, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update db connection: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("db connection not found: %s", c.ID)
	}
	return nil
}

func (s *DatabaseConnectionStore) DeleteConnection(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM db_connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete db connection: %w", err)
	}
	return nil
}
