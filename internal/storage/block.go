package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weave/internal/domain"
)

// BlockStore implements domain.BlockStore using SQLite.
type BlockStore struct {
	db *DB
}

// NewBlockStore creates a new BlockStore.
func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

const blockColumns = `id, workspace_id, type, title, content, x, y, width, height,
	status, is_processing, tags_json, chat_json, link_json, rag_json, created_at, updated_at`

func (s *BlockStore) CreateBlock(b *domain.Block) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	tags, chat, link, rag, err := encodePayloads(b)
	if err != nil {
		return err
	}

	_, err = s.db.conn.Exec(`
		INSERT INTO blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.WorkspaceID, string(b.Type), b.Title, b.Content,
		b.X, b.Y, b.Width, b.Height,
		string(b.Status), boolToInt(b.IsProcessing), tags, chat, link, rag,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (s *BlockStore) GetBlock(id string) (*domain.Block, error) {
	row := s.db.conn.QueryRow(`SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("block not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

func (s *BlockStore) ListBlocks(workspaceID string) ([]domain.Block, error) {
	rows, err := s.db.conn.Query(`
		SELECT `+blockColumns+` FROM blocks
		WHERE workspace_id = ? ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func (s *BlockStore) UpdateBlock(b *domain.Block) error {
	b.UpdatedAt = time.Now()

	tags, chat, link, rag, err := encodePayloads(b)
	if err != nil {
		return err
	}

	res, err := s.db.conn.Exec(`
		UPDATE blocks SET type = ?, title = ?, content = ?, x = ?, y = ?,
			width = ?, height = ?, status = ?, is_processing = ?,
			tags_json = ?, chat_json = ?, link_json = ?, rag_json = ?, updated_at = ?
		WHERE id = ?`,
		string(b.Type), b.Title, b.Content, b.X, b.Y,
		b.Width, b.Height, string(b.Status), boolToInt(b.IsProcessing),
		tags, chat, link, rag, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("block not found: %s", b.ID)
	}
	return nil
}

func (s *BlockStore) DeleteBlock(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

func (s *BlockStore) DeleteBlocksByWorkspace(workspaceID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM blocks WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace blocks: %w", err)
	}
	return nil
}

// ClearProcessingFlags resets in-flight pipeline markers. Called once at
// startup so a crash mid-pipeline never leaves a block stuck spinning.
func (s *BlockStore) ClearProcessingFlags() error {
	_, err := s.db.conn.Exec(`UPDATE blocks SET is_processing = 0 WHERE is_processing = 1`)
	if err != nil {
		return fmt.Errorf("clear processing flags: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*domain.Block, error) {
	var b domain.Block
	var typ, status, tags, chat, link, rag string
	var processing int

	err := row.Scan(
		&b.ID, &b.WorkspaceID, &typ, &b.Title, &b.Content,
		&b.X, &b.Y, &b.Width, &b.Height,
		&status, &processing, &tags, &chat, &link, &rag,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Type = domain.BlockType(typ)
	b.Status = domain.BlockStatus(status)
	b.IsProcessing = processing != 0

	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if chat != "" {
		b.Chat = &domain.ChatData{}
		if err := json.Unmarshal([]byte(chat), b.Chat); err != nil {
			return nil, fmt.Errorf("decode chat payload: %w", err)
		}
	}
	if link != "" {
		b.Link = &domain.LinkData{}
		if err := json.Unmarshal([]byte(link), b.Link); err != nil {
			return nil, fmt.Errorf("decode link payload: %w", err)
		}
	}
	if rag != "" {
		b.Rag = &domain.RagData{}
		if err := json.Unmarshal([]byte(rag), b.Rag); err != nil {
			return nil, fmt.Errorf("decode rag payload: %w", err)
		}
	}

	return &b, nil
}

func encodePayloads(b *domain.Block) (tags, chat, link, rag string, err error) {
	if b.Tags == nil {
		tags = "[]"
	} else {
		data, err := json.Marshal(b.Tags)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode tags: %w", err)
		}
		tags = string(data)
	}
	if b.Chat != nil {
		data, err := json.Marshal(b.Chat)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode chat payload: %w", err)
		}
		chat = string(data)
	}
	if b.Link != nil {
		data, err := json.Marshal(b.Link)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode link payload: %w", err)
		}
		link = string(data)
	}
	if b.Rag != nil {
		data, err := json.Marshal(b.Rag)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode rag payload: %w", err)
		}
		rag = string(data)
	}
	return tags, chat, link, rag, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
