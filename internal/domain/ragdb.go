package domain

import "time"

// RagDocument is a content snapshot ingested into a retrieval corpus.
// Immutable once created; documents are never deleted individually, only
// wholesale when their corpus or owning block goes away.
type RagDocument struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"sourceId"` // originating block or external source
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      BlockType `json:"type"`
}

// RagDatabase is a named corpus shared across blocks and workspaces.
// Blocks reference it weakly via RagData.DBName.
type RagDatabase struct {
	Name      string        `json:"name"`
	Docs      []RagDocument `json:"docs"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type RagDatabaseStore interface {
	CreateDatabase(name string) (*RagDatabase, error)
	GetDatabase(name string) (*RagDatabase, error)
	ListDatabases() ([]RagDatabase, error)
	AppendDocuments(name string, docs []RagDocument) error
	DeleteDatabase(name string) error
}
