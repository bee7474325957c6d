package service

import (
	"context"
	"fmt"
	"sync"

	"weave/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Graph Service — blocks and connections of a workspace
// ─────────────────────────────────────────────────────────────

// BlockPatch is a partial block update. Nil fields are left untouched.
type BlockPatch struct {
	Title   *string             `json:"title,omitempty"`
	Content *string             `json:"content,omitempty"`
	X       *float64            `json:"x,omitempty"`
	Y       *float64            `json:"y,omitempty"`
	Width   *float64            `json:"width,omitempty"`
	Height  *float64            `json:"height,omitempty"`
	Status  *domain.BlockStatus `json:"status,omitempty"`
	Tags    *[]string           `json:"tags,omitempty"`
	Chat    *domain.ChatData    `json:"chat,omitempty"`
	Link    *domain.LinkData    `json:"link,omitempty"`
	Rag     *domain.RagData     `json:"rag,omitempty"`
}

// GraphService manages the block/connection graph of workspaces. All
// mutations are serialized behind a single mutex: Wails bound methods run
// on arbitrary goroutines and SQLite has a single writer anyway.
type GraphService struct {
	mu          sync.Mutex
	blocks      domain.BlockStore
	connections domain.ConnectionStore
	workspaces  domain.WorkspaceStore
	emitter     EventEmitter
}

// NewGraphService creates a GraphService.
func NewGraphService(blocks domain.BlockStore, connections domain.ConnectionStore, workspaces domain.WorkspaceStore, emitter EventEmitter) *GraphService {
	return &GraphService{blocks: blocks, connections: connections, workspaces: workspaces, emitter: emitter}
}

// AddBlock creates a block of the given type at a canvas position, sized
// by the type's default dimensions.
func (s *GraphService) AddBlock(workspaceID string, blockType domain.BlockType, x, y float64) (*domain.Block, error) {
	if !domain.ValidBlockType(blockType) {
		return nil, fmt.Errorf("%w: unknown block type %q", ErrPrecondition, blockType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := domain.DefaultSize(blockType)
	b := &domain.Block{
		WorkspaceID: workspaceID,
		Type:        blockType,
		X:           x,
		Y:           y,
		Width:       w,
		Height:      h,
		Status:      domain.StatusTodo,
	}
	switch blockType {
	case domain.BlockTypeChat, domain.BlockTypeRefinement, domain.BlockTypeSynthesis:
		b.Chat = &domain.ChatData{}
	case domain.BlockTypeLink, domain.BlockTypeYouTube:
		b.Link = &domain.LinkData{}
	case domain.BlockTypeRagDB:
		b.Rag = &domain.RagData{}
	}

	if err := s.blocks.CreateBlock(b); err != nil {
		return nil, err
	}
	_ = s.workspaces.TouchWorkspace(workspaceID)
	return b, nil
}

// GetBlock returns a block by ID.
func (s *GraphService) GetBlock(id string) (*domain.Block, error) {
	return s.blocks.GetBlock(id)
}

// ListBlocks returns all blocks of a workspace in creation order.
func (s *GraphService) ListBlocks(workspaceID string) ([]domain.Block, error) {
	return s.blocks.ListBlocks(workspaceID)
}

// UpdateBlock merges a partial patch into a block. A patch for a block
// that no longer exists is a silent no-op so stale UI writes and pipeline
// completions never resurrect deleted blocks.
func (s *GraphService) UpdateBlock(ctx context.Context, id string, patch BlockPatch) (*domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return nil, nil
	}

	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Content != nil {
		b.Content = *patch.Content
	}
	if patch.X != nil {
		b.X = *patch.X
	}
	if patch.Y != nil {
		b.Y = *patch.Y
	}
	if patch.Width != nil {
		b.Width = *patch.Width
	}
	if patch.Height != nil {
		b.Height = *patch.Height
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Tags != nil {
		b.Tags = dedupeTags(*patch.Tags)
	}
	if patch.Chat != nil {
		b.Chat = patch.Chat
	}
	if patch.Link != nil {
		b.Link = patch.Link
	}
	if patch.Rag != nil {
		b.Rag = patch.Rag
	}

	if err := s.blocks.UpdateBlock(b); err != nil {
		return nil, err
	}
	_ = s.workspaces.TouchWorkspace(b.WorkspaceID)
	s.emitter.Emit(ctx, EventBlockUpdated, b)
	return b, nil
}

// AddTag appends a tag to a block if not already present.
func (s *GraphService) AddTag(ctx context.Context, id, tag string) (*domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return nil, err
	}
	if b.HasTag(tag) {
		return b, nil
	}
	b.Tags = append(b.Tags, tag)
	if err := s.blocks.UpdateBlock(b); err != nil {
		return nil, err
	}
	_ = s.workspaces.TouchWorkspace(b.WorkspaceID)
	s.emitter.Emit(ctx, EventBlockUpdated, b)
	return b, nil
}

// MoveBlock updates a block's canvas position. Part of the interaction
// engine's graph interface.
func (s *GraphService) MoveBlock(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.blocks.GetBlock(id)
	if err != nil {
		// dragging a block deleted mid-gesture is not an error
		return nil
	}
	b.X, b.Y = x, y
	if err := s.blocks.UpdateBlock(b); err != nil {
		return err
	}
	return s.workspaces.TouchWorkspace(b.WorkspaceID)
}

// DeleteBlock removes a block and cascades to every connection touching
// it, in either direction.
func (s *GraphService) DeleteBlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return nil // already gone
	}
	if err := s.connections.DeleteConnectionsByBlock(id); err != nil {
		return err
	}
	if err := s.blocks.DeleteBlock(id); err != nil {
		return err
	}
	_ = s.workspaces.TouchWorkspace(b.WorkspaceID)
	s.emitter.Emit(ctx, EventBlockDeleted, id)
	return nil
}

// Connect creates a connection between two blocks. Part of the
// interaction engine's graph interface.
func (s *GraphService) Connect(fromID, toID string) error {
	_, err := s.AddConnection(context.Background(), fromID, toID)
	return err
}

// AddConnection creates a directed edge between two existing blocks of
// the same workspace. Self-loops are rejected; duplicates are a no-op.
func (s *GraphService) AddConnection(ctx context.Context, fromID, toID string) (*domain.Connection, error) {
	if fromID == toID {
		return nil, fmt.Errorf("%w: a block cannot connect to itself", ErrPrecondition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.blocks.GetBlock(fromID)
	if err != nil {
		return nil, fmt.Errorf("%w: source block not found", ErrPrecondition)
	}
	to, err := s.blocks.GetBlock(toID)
	if err != nil {
		return nil, fmt.Errorf("%w: target block not found", ErrPrecondition)
	}
	if from.WorkspaceID != to.WorkspaceID {
		return nil, fmt.Errorf("%w: blocks belong to different workspaces", ErrPrecondition)
	}

	exists, err := s.connections.ConnectionExists(fromID, toID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil // duplicate edges are idempotent
	}

	c := &domain.Connection{
		WorkspaceID: from.WorkspaceID,
		FromBlockID: fromID,
		ToBlockID:   toID,
	}
	if err := s.connections.CreateConnection(c); err != nil {
		return nil, err
	}
	_ = s.workspaces.TouchWorkspace(from.WorkspaceID)
	s.emitter.Emit(ctx, EventWorkspaceRefresh, from.WorkspaceID)
	return c, nil
}

// ListConnections returns all connections of a workspace.
func (s *GraphService) ListConnections(workspaceID string) ([]domain.Connection, error) {
	return s.connections.ListConnections(workspaceID)
}

// DeleteConnection removes a single connection by ID.
func (s *GraphService) DeleteConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connections.GetConnection(id)
	if err != nil {
		return nil // already gone
	}
	if err := s.connections.DeleteConnection(id); err != nil {
		return err
	}
	_ = s.workspaces.TouchWorkspace(c.WorkspaceID)
	s.emitter.Emit(ctx, EventWorkspaceRefresh, c.WorkspaceID)
	return nil
}

// InputsOf returns the blocks connected INTO the given block, ordered by
// connection creation time. Connections whose source block no longer
// exists are skipped.
func (s *GraphService) InputsOf(blockID string) ([]domain.Block, error) {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return nil, err
	}
	conns, err := s.connections.ListConnections(b.WorkspaceID)
	if err != nil {
		return nil, err
	}

	var inputs []domain.Block
	for _, c := range conns {
		if c.ToBlockID != blockID {
			continue
		}
		src, err := s.blocks.GetBlock(c.FromBlockID)
		if err != nil {
			continue // dangling edge, view skips it
		}
		inputs = append(inputs, *src)
	}
	return inputs, nil
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
