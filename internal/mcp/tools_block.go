package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"weave/internal/canvas"
	"weave/internal/domain"
	"weave/internal/service"
)

func (s *Server) registerBlockTools() {
	// ── create_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_block",
		mcp.WithDescription("Create a new block on the canvas. Position is auto-calculated if not provided."),
		mcp.WithString("type",
			mcp.Description("Block type: note, image, audio, refinement, chat, link, youtube, pdf, rag-db, synthesis, video"),
			mcp.Required(),
		),
		mcp.WithString("workspaceId",
			mcp.Description("Workspace ID (optional, defaults to active workspace)"),
		),
		mcp.WithNumber("x", mcp.Description("X position (optional, auto-layout if omitted)")),
		mcp.WithNumber("y", mcp.Description("Y position (optional, auto-layout if omitted)")),
		mcp.WithString("title", mcp.Description("Initial title (optional)")),
		mcp.WithString("content", mcp.Description("Initial content (optional)")),
	), s.handleCreateBlock)

	// ── update_block_content ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_content",
		mcp.WithDescription("Replace the content of an existing block"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("content", mcp.Description("New content"), mcp.Required()),
	), s.handleUpdateBlockContent)

	// ── update_block_title ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_title",
		mcp.WithDescription("Rename a block"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title"), mcp.Required()),
	), s.handleUpdateBlockTitle)

	// ── set_block_status ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_block_status",
		mcp.WithDescription("Set the task status of a block"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("One of: todo, in-progress, done"), mcp.Required()),
	), s.handleSetBlockStatus)

	// ── add_tag ────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_tag",
		mcp.WithDescription("Add a tag to a block. Duplicate tags are ignored."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("tag", mcp.Description("Tag to add"), mcp.Required()),
	), s.handleAddTag)

	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List all blocks in a workspace, optionally filtered by type"),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID (optional, defaults to active workspace)")),
		mcp.WithString("type", mcp.Description("Filter by block type (optional)")),
	), s.handleListBlocks)

	// ── get_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_block",
		mcp.WithDescription("Fetch a single block with its full content and payload"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleGetBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a block to a new canvas position"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("New X position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("New Y position"), mcp.Required()),
	), s.handleMoveBlock)

	// ── resize_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resize_block",
		mcp.WithDescription("Resize a block"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("New width"), mcp.Required()),
		mcp.WithNumber("height", mcp.Description("New height"), mcp.Required()),
	), s.handleResizeBlock)

	// ── arrange_blocks ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_blocks",
		mcp.WithDescription("Auto-arrange all blocks in a workspace using a grid layout"),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID (optional, defaults to active workspace)")),
		mcp.WithNumber("startX", mcp.Description("Starting X position (default 0)")),
		mcp.WithNumber("startY", mcp.Description("Starting Y position (default 0)")),
	), s.handleArrangeBlocks)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block and its connections. Requires user approval."),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)

	// ── batch_delete_blocks (destructive) ──────────────
	s.mcp.AddTool(mcp.NewTool("batch_delete_blocks",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete multiple blocks at once with a single approval. Requires user approval."),
		mcp.WithString("blockIds",
			mcp.Description("Comma-separated block IDs to delete"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleBatchDeleteBlocks)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleCreateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockType := domain.BlockType(req.GetString("type", ""))
	if blockType == "" {
		return nil, fmt.Errorf("type is required")
	}

	workspaceID, err := s.resolveWorkspaceID(args)
	if err != nil {
		return nil, err
	}

	// Auto-layout if position not provided
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if !hasX || !hasY {
		w, h := domain.DefaultSize(blockType)
		existing, _ := s.graph.ListBlocks(workspaceID)
		x, y = s.layout.NextPosition(boxesOf(existing), w, h)
	}

	block, err := s.graph.AddBlock(workspaceID, blockType, x, y)
	if err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}

	title := req.GetString("title", "")
	content := req.GetString("content", "")
	if title != "" || content != "" {
		patch := service.BlockPatch{}
		if title != "" {
			patch.Title = &title
		}
		if content != "" {
			patch.Content = &content
		}
		if block, err = s.graph.UpdateBlock(ctx, block.ID, patch); err != nil {
			return nil, fmt.Errorf("set initial content: %w", err)
		}
	}

	s.emitRefresh(ctx, workspaceID)
	return jsonResult(block)
}

func (s *Server) handleUpdateBlockContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	content := req.GetString("content", "")
	if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Content: &content}); err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s content updated", block.ID)), nil
}

func (s *Server) handleUpdateBlockTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	title := req.GetString("title", "")
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Title: &title}); err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s renamed to %q", block.ID, title)), nil
}

func (s *Server) handleSetBlockStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	status := domain.BlockStatus(req.GetString("status", ""))
	switch status {
	case domain.StatusTodo, domain.StatusInProgress, domain.StatusDone:
	default:
		return nil, fmt.Errorf("invalid status %q", status)
	}
	if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Status: &status}); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s status set to %s", block.ID, status)), nil
}

func (s *Server) handleAddTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	tag := req.GetString("tag", "")
	if tag == "" {
		return nil, fmt.Errorf("tag is required")
	}
	updated, err := s.graph.AddTag(ctx, block.ID, tag)
	if err != nil {
		return nil, fmt.Errorf("add tag: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return jsonResult(updated.Tags)
}

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workspaceID, err := s.resolveWorkspaceID(args)
	if err != nil {
		return nil, err
	}

	blocks, err := s.graph.ListBlocks(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	filterType := req.GetString("type", "")
	summaries := make([]blockSummary, 0, len(blocks))
	for _, b := range blocks {
		if filterType != "" && string(b.Type) != filterType {
			continue
		}
		summaries = append(summaries, summarizeBlock(b))
	}
	return jsonResult(summaries)
}

func (s *Server) handleGetBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(block)
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	x := getFloat(args, "x", block.X)
	y := getFloat(args, "y", block.Y)
	if err := s.graph.MoveBlock(block.ID, x, y); err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}

	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s moved to (%.0f, %.0f)", block.ID, x, y)), nil
}

func (s *Server) handleResizeBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	w := getFloat(args, "width", block.Width)
	h := getFloat(args, "height", block.Height)
	if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Width: &w, Height: &h}); err != nil {
		return nil, fmt.Errorf("resize block: %w", err)
	}

	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s resized to (%.0f × %.0f)", block.ID, w, h)), nil
}

func (s *Server) handleArrangeBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workspaceID, err := s.resolveWorkspaceID(args)
	if err != nil {
		return nil, err
	}

	blocks, err := s.graph.ListBlocks(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	startX := getFloat(args, "startX", 0)
	startY := getFloat(args, "startY", 0)

	arranged := s.layout.ArrangeGroup(boxesOf(blocks), startX, startY)
	for _, box := range arranged {
		if err := s.graph.MoveBlock(box.ID, box.X, box.Y); err != nil {
			return nil, fmt.Errorf("move block %s: %w", box.ID, err)
		}
	}

	s.emitRefresh(ctx, workspaceID)
	return textResult(fmt.Sprintf("Arranged %d blocks", len(arranged))), nil
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	// Require approval (with metadata for frontend highlight)
	meta := fmt.Sprintf(`{"blockIds":["%s"]}`, block.ID)
	approved, err := s.approval.Request("delete_block",
		fmt.Sprintf("Delete %s block %s", block.Type, block.ID), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.graph.DeleteBlock(ctx, block.ID); err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}

	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s deleted", block.ID)), nil
}

func (s *Server) handleBatchDeleteBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idsStr := req.GetString("blockIds", "")
	ids := splitIDs(idsStr)
	if len(ids) == 0 {
		return nil, fmt.Errorf("blockIds is required")
	}

	// Single approval for all (with metadata for frontend highlight)
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	meta := fmt.Sprintf(`{"blockIds":[%s]}`, strings.Join(quoted, ","))
	approved, err := s.approval.Request("batch_delete_blocks",
		fmt.Sprintf("Delete %d blocks: %s", len(ids), idsStr), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	var workspaceID string
	deleted := 0
	for _, id := range ids {
		block, err := s.graph.GetBlock(id)
		if err != nil {
			continue // skip missing blocks
		}
		if workspaceID == "" {
			workspaceID = block.WorkspaceID
		}
		if err := s.graph.DeleteBlock(ctx, id); err != nil {
			return nil, fmt.Errorf("delete block %s: %w", id, err)
		}
		deleted++
	}

	if workspaceID != "" {
		s.emitRefresh(ctx, workspaceID)
	}
	return textResult(fmt.Sprintf("Deleted %d of %d blocks", deleted, len(ids))), nil
}

// ── Helpers ────────────────────────────────────────────────

type blockSummary struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Preview string  `json:"preview"` // first 200 chars of content
}

func summarizeBlock(b domain.Block) blockSummary {
	preview := b.Content
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return blockSummary{
		ID:      b.ID,
		Type:    string(b.Type),
		Title:   b.Title,
		Status:  string(b.Status),
		X:       b.X,
		Y:       b.Y,
		Width:   b.Width,
		Height:  b.Height,
		Preview: preview,
	}
}

// getBlockForTool fetches the block named by the blockId argument.
func (s *Server) getBlockForTool(req mcp.CallToolRequest) (*domain.Block, error) {
	id := req.GetString("blockId", "")
	if id == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	block, err := s.graph.GetBlock(id)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}
	return block, nil
}

func boxesOf(blocks []domain.Block) []canvas.BlockBox {
	boxes := make([]canvas.BlockBox, len(blocks))
	for i, b := range blocks {
		boxes[i] = canvas.BlockBox{ID: b.ID, X: b.X, Y: b.Y, W: b.Width, H: b.Height}
	}
	return boxes
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
