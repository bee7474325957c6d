package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weave/internal/domain"
)

// RagDatabaseStore implements domain.RagDatabaseStore using SQLite.
// Corpora are global: keyed by name, shared across all workspaces.
type RagDatabaseStore struct {
	db *DB
}

// NewRagDatabaseStore creates a new RagDatabaseStore.
func NewRagDatabaseStore(db *DB) *RagDatabaseStore {
	return &RagDatabaseStore{db: db}
}

// CreateDatabase registers a corpus by name. Creating an existing name is
// a no-op so two blocks can point at the same corpus without coordination.
func (s *RagDatabaseStore) CreateDatabase(name string) (*domain.RagDatabase, error) {
	_, err := s.db.conn.Exec(`
		INSERT INTO rag_databases (name, updated_at) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("create rag database: %w", err)
	}
	return s.GetDatabase(name)
}

func (s *RagDatabaseStore) GetDatabase(name string) (*domain.RagDatabase, error) {
	row := s.db.conn.QueryRow(`SELECT name, updated_at FROM rag_databases WHERE name = ?`, name)

	var rdb domain.RagDatabase
	err := row.Scan(&rdb.Name, &rdb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rag database not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get rag database: %w", err)
	}

	rdb.Docs, err = s.listDocuments(name)
	if err != nil {
		return nil, err
	}
	return &rdb, nil
}

func (s *RagDatabaseStore) ListDatabases() ([]domain.RagDatabase, error) {
	rows, err := s.db.conn.Query(`SELECT name, updated_at FROM rag_databases ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rag databases: %w", err)
	}
	defer rows.Close()

	var dbs []domain.RagDatabase
	for rows.Next() {
		var rdb domain.RagDatabase
		if err := rows.Scan(&rdb.Name, &rdb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rag database: %w", err)
		}
		dbs = append(dbs, rdb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range dbs {
		dbs[i].Docs, err = s.listDocuments(dbs[i].Name)
		if err != nil {
			return nil, err
		}
	}
	return dbs, nil
}

// AppendDocuments adds documents to a corpus. The corpus is created if it
// does not exist yet. Documents are append-only.
func (s *RagDatabaseStore) AppendDocuments(name string, docs []domain.RagDocument) error {
	if _, err := s.CreateDatabase(name); err != nil {
		return err
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("append documents: %w", err)
	}
	defer tx.Rollback()

	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].Timestamp.IsZero() {
			docs[i].Timestamp = time.Now()
		}
		_, err := tx.Exec(`
			INSERT INTO rag_documents (id, db_name, source_id, title, content, type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			docs[i].ID, name, docs[i].SourceID, docs[i].Title, docs[i].Content,
			docs[i].Type, docs[i].Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE rag_databases SET updated_at = ? WHERE name = ?`, time.Now(), name); err != nil {
		return fmt.Errorf("touch rag database: %w", err)
	}

	return tx.Commit()
}

func (s *RagDatabaseStore) DeleteDatabase(name string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("delete rag database: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rag_documents WHERE db_name = ?`, name); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM rag_databases WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete rag database: %w", err)
	}
	return tx.Commit()
}

func (s *RagDatabaseStore) listDocuments(name string) ([]domain.RagDocument, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, source_id, title, content, type, created_at
		FROM rag_documents WHERE db_name = ? ORDER BY created_at ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.RagDocument
	for rows.Next() {
		var d domain.RagDocument
		if err := rows.Scan(&d.ID, &d.SourceID, &d.Title, &d.Content, &d.Type, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
