package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerWorkspaceTools() {
	// ── list_workspaces ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_workspaces",
		mcp.WithDescription("List all workspaces, most recently modified first"),
	), s.handleListWorkspaces)

	// ── create_workspace ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_workspace",
		mcp.WithDescription("Create a new workspace and make it active"),
		mcp.WithString("name",
			mcp.Description("Name of the new workspace"),
			mcp.Required(),
		),
	), s.handleCreateWorkspace)

	// ── rename_workspace ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_workspace",
		mcp.WithDescription("Rename an existing workspace"),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New name"), mcp.Required()),
	), s.handleRenameWorkspace)

	// ── set_active_workspace ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_workspace",
		mcp.WithDescription("Set the active workspace for subsequent tool calls. Tools that accept workspaceId will default to this."),
		mcp.WithString("workspaceId",
			mcp.Description("ID of the workspace to make active"),
			mcp.Required(),
		),
	), s.handleSetActiveWorkspace)

	// ── workspace_state ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("workspace_state",
		mcp.WithDescription("Full state of a workspace: blocks, connections, and viewport"),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID (optional, defaults to active workspace)")),
	), s.handleWorkspaceState)

	// ── delete_workspace (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("delete_workspace",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a workspace and everything on it. Requires user approval."),
		mcp.WithString("workspaceId", mcp.Description("Workspace ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteWorkspace)
}

func (s *Server) handleListWorkspaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaces, err := s.workspaces.ListWorkspaces()
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return jsonResult(workspaces)
}

func (s *Server) handleCreateWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	ws, err := s.workspaces.CreateWorkspace(name)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// New workspace becomes the tool-call default too
	s.activeWorkspaceID = ws.ID
	return jsonResult(ws)
}

func (s *Server) handleRenameWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workspaceId", "")
	name := req.GetString("name", "")
	if id == "" || name == "" {
		return nil, fmt.Errorf("workspaceId and name are required")
	}
	if err := s.workspaces.RenameWorkspace(id, name); err != nil {
		return nil, fmt.Errorf("rename workspace: %w", err)
	}
	s.emitRefresh(ctx, id)
	return textResult(fmt.Sprintf("Workspace %s renamed to %q", id, name)), nil
}

func (s *Server) handleSetActiveWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workspaceId", "")
	if id == "" {
		return nil, fmt.Errorf("workspaceId is required")
	}
	if _, err := s.workspaces.SetActiveWorkspace(ctx, id); err != nil {
		return nil, fmt.Errorf("set active workspace: %w", err)
	}
	s.activeWorkspaceID = id
	return textResult(fmt.Sprintf("Active workspace set to %s", id)), nil
}

func (s *Server) handleWorkspaceState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWorkspaceID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	state, err := s.workspaces.State(id)
	if err != nil {
		return nil, fmt.Errorf("workspace state: %w", err)
	}
	return jsonResult(state)
}

func (s *Server) handleDeleteWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("workspaceId", "")
	if id == "" {
		return nil, fmt.Errorf("workspaceId is required")
	}

	blocks, _ := s.graph.ListBlocks(id)
	approved, err := s.approval.Request("delete_workspace",
		fmt.Sprintf("Delete workspace %s and its %d blocks", id, len(blocks)))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.workspaces.DeleteWorkspace(ctx, id); err != nil {
		return nil, fmt.Errorf("delete workspace: %w", err)
	}
	if s.activeWorkspaceID == id {
		s.activeWorkspaceID = ""
	}
	s.emitRefresh(ctx, id)
	return textResult(fmt.Sprintf("Workspace %s deleted", id)), nil
}
