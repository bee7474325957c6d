package domain

import "time"

type BlockType string

const (
	BlockTypeNote       BlockType = "note"
	BlockTypeImage      BlockType = "image"
	BlockTypeAudio      BlockType = "audio"
	BlockTypeRefinement BlockType = "refinement"
	BlockTypeChat       BlockType = "chat"
	BlockTypeLink       BlockType = "link"
	BlockTypeYouTube    BlockType = "youtube"
	BlockTypePDF        BlockType = "pdf"
	BlockTypeRagDB      BlockType = "rag-db"
	BlockTypeSynthesis  BlockType = "synthesis"
	BlockTypeVideo      BlockType = "video"
)

// BlockStatus is the user-facing task status of a block. It is set freely
// by the user and is independent of pipeline state.
type BlockStatus string

const (
	StatusTodo       BlockStatus = "todo"
	StatusInProgress BlockStatus = "in-progress"
	StatusDone       BlockStatus = "done"
)

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is a single entry in a conversation history.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// ChatData is the payload for refinement, chat and synthesis blocks.
// Rag-db blocks also carry one for their question/answer history.
type ChatData struct {
	Instruction string        `json:"instruction"`
	History     []ChatMessage `json:"history"`
}

// LinkData is the payload for link and youtube blocks.
type LinkData struct {
	SourceURL string `json:"sourceUrl"`
}

// RagData is the payload for rag-db blocks. DBName is a weak reference
// into the global corpus registry (lookup by name, not ownership).
type RagData struct {
	DBName      string        `json:"dbName"`
	IndexedDocs []RagDocument `json:"indexedDocs"`
	LastSynced  time.Time     `json:"lastSynced"`
}

// Block is a typed content node placed on the canvas. X/Y are in logical
// canvas space; width/height are fixed at creation per type. The typed
// payload pointers (Chat, Link, Rag) are only set for the block types they
// belong to — the service layer rejects mismatched writes.
type Block struct {
	ID           string      `json:"id"`
	WorkspaceID  string      `json:"workspaceId"`
	Type         BlockType   `json:"type"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Width        float64     `json:"width"`
	Height       float64     `json:"height"`
	Status       BlockStatus `json:"status"`
	IsProcessing bool        `json:"isProcessing"` // transient; reset on startup
	Tags         []string    `json:"tags"`
	Chat         *ChatData   `json:"chat,omitempty"`
	Link         *LinkData   `json:"link,omitempty"`
	Rag          *RagData    `json:"rag,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// HasTag reports whether the block already carries the given tag.
func (b *Block) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DefaultSize returns the creation-time width and height for a block type.
func DefaultSize(t BlockType) (w, h float64) {
	switch t {
	case BlockTypeNote:
		return 300, 200
	case BlockTypeImage, BlockTypeVideo:
		return 320, 240
	case BlockTypeAudio:
		return 300, 120
	case BlockTypeChat, BlockTypeSynthesis:
		return 420, 480
	case BlockTypeRagDB:
		return 420, 360
	case BlockTypeLink, BlockTypeYouTube:
		return 340, 200
	case BlockTypePDF:
		return 340, 260
	default:
		return 300, 240
	}
}

// ValidBlockType reports whether t is a member of the block type enum.
func ValidBlockType(t BlockType) bool {
	switch t {
	case BlockTypeNote, BlockTypeImage, BlockTypeAudio, BlockTypeRefinement,
		BlockTypeChat, BlockTypeLink, BlockTypeYouTube, BlockTypePDF,
		BlockTypeRagDB, BlockTypeSynthesis, BlockTypeVideo:
		return true
	}
	return false
}

type BlockStore interface {
	CreateBlock(b *Block) error
	GetBlock(id string) (*Block, error)
	ListBlocks(workspaceID string) ([]Block, error)
	UpdateBlock(b *Block) error
	DeleteBlock(id string) error
	DeleteBlocksByWorkspace(workspaceID string) error
	ClearProcessingFlags() error
}
