package ingest

import (
	"context"
	"fmt"
	"strings"

	"weave/internal/dbclient"
	"weave/internal/domain"
	"weave/internal/secret"
)

// ── Database Source ─────────────────────────────────────────
// Samples rows from an external database and renders each row as one
// corpus document.

// ConnectionResolver looks up stored database connections by ID.
// The app wires this at startup.
type ConnectionResolver interface {
	GetConnection(id string) (*domain.DatabaseConnection, error)
}

type databaseSource struct {
	resolver ConnectionResolver
	secrets  secret.SecretStore
}

var dbSource = &databaseSource{}

func init() { RegisterSource(dbSource) }

// SetConnectionResolver wires the stored-connection lookup and secret
// store. Called by the app at startup.
func SetConnectionResolver(r ConnectionResolver, s secret.SecretStore) {
	dbSource.resolver = r
	dbSource.secrets = s
}

func (s *databaseSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "database",
		Label: "Database Query",
		Icon:  "IconDatabase",
		ConfigFields: []ConfigField{
			{Key: "connectionId", Label: "Connection", Type: "select", Required: true, Help: "A saved database connection"},
			{Key: "query", Label: "Query", Type: "textarea", Required: true, Help: "Read query (SQL, or JSON find for MongoDB)"},
			{Key: "titleColumn", Label: "Title Column", Type: "string", Required: false, Help: "Column used as document title"},
		},
	}
}

func (s *databaseSource) Read(ctx context.Context, cfg SourceConfig) ([]domain.RagDocument, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("database source is not wired")
	}
	connID := stringField(cfg, "connectionId")
	query := stringField(cfg, "query")
	if connID == "" || query == "" {
		return nil, fmt.Errorf("database source requires connectionId and query")
	}

	conn, err := s.resolver.GetConnection(connID)
	if err != nil {
		return nil, err
	}
	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get(conn.ID); err == nil {
			password = string(pw)
		}
	}

	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	rows, err := connector.Query(ctx, query, 200)
	if err != nil {
		return nil, err
	}

	titleCol := stringField(cfg, "titleColumn")
	titleIdx := -1
	for i, c := range rows.Columns {
		if c == titleCol {
			titleIdx = i
			break
		}
	}

	docs := make([]domain.RagDocument, 0, len(rows.Rows))
	for i, row := range rows.Rows {
		title := fmt.Sprintf("%s row %d", conn.Name, i+1)
		if titleIdx >= 0 && row[titleIdx] != nil {
			title = fmt.Sprintf("%v", row[titleIdx])
		}
		docs = append(docs, domain.RagDocument{
			SourceID: conn.ID,
			Title:    title,
			Content:  renderRow(rows.Columns, row),
			Type:     "database",
		})
	}
	return docs, nil
}

// renderRow formats one row as "column: value" lines so the text is
// retrievable by column name as well as value.
func renderRow(cols []string, row []any) string {
	var b strings.Builder
	for i, col := range cols {
		if i < len(row) && row[i] != nil {
			fmt.Fprintf(&b, "%s: %v\n", col, row[i])
		}
	}
	return b.String()
}
