package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerConnectionTools() {
	// ── connect_blocks ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("connect_blocks",
		mcp.WithDescription("Create a directed connection from one block to another. Connections feed content into refinement, synthesis, chat and rag-db blocks."),
		mcp.WithString("fromBlockId", mcp.Description("Source block ID"), mcp.Required()),
		mcp.WithString("toBlockId", mcp.Description("Target block ID"), mcp.Required()),
	), s.handleConnectBlocks)

	// ── disconnect_blocks ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("disconnect_blocks",
		mcp.WithDescription("Remove a connection by its ID"),
		mcp.WithString("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleDisconnectBlocks)

	// ── list_connections ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List all connections in a workspace"),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID (optional, defaults to active workspace)")),
	), s.handleListConnections)

	// ── list_inputs ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_inputs",
		mcp.WithDescription("List the blocks whose output feeds into a given block, in connection order"),
		mcp.WithString("blockId", mcp.Description("Target block ID"), mcp.Required()),
	), s.handleListInputs)
}

func (s *Server) handleConnectBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID := req.GetString("fromBlockId", "")
	toID := req.GetString("toBlockId", "")
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("fromBlockId and toBlockId are required")
	}

	conn, err := s.graph.AddConnection(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("connect blocks: %w", err)
	}
	if conn == nil {
		// duplicate edge, already wired
		return textResult(fmt.Sprintf("Blocks %s and %s are already connected", fromID, toID)), nil
	}

	s.emitRefresh(ctx, conn.WorkspaceID)
	return jsonResult(conn)
}

func (s *Server) handleDisconnectBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("connectionId", "")
	if id == "" {
		return nil, fmt.Errorf("connectionId is required")
	}
	if err := s.graph.DeleteConnection(ctx, id); err != nil {
		return nil, fmt.Errorf("disconnect: %w", err)
	}
	return textResult(fmt.Sprintf("Connection %s removed", id)), nil
}

func (s *Server) handleListConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, err := s.resolveWorkspaceID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	conns, err := s.graph.ListConnections(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return jsonResult(conns)
}

func (s *Server) handleListInputs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("blockId", "")
	if id == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	inputs, err := s.graph.InputsOf(id)
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	summaries := make([]blockSummary, len(inputs))
	for i, b := range inputs {
		summaries[i] = summarizeBlock(b)
	}
	return jsonResult(summaries)
}
