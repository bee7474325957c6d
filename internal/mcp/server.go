package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"weave/internal/canvas"
	"weave/internal/service"
)

// Server is the MCP server for the canvas workspace.
// It exposes tools, resources, and prompts so AI agents can work the
// canvas alongside the user.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	layout   *canvas.LayoutEngine

	// Services (injected from app layer)
	workspaces *service.WorkspaceService
	graph      *service.GraphService
	pipelines  *service.PipelineService
	rag        *service.RagService

	// Active workspace context (set by set_active_workspace tool)
	activeWorkspaceID string
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter    EventEmitter
	Workspaces *service.WorkspaceService
	Graph      *service.GraphService
	Pipelines  *service.PipelineService
	Rag        *service.RagService
	ApprovalDB *sql.DB // When set, use SQLite-based approval (standalone mode)
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.ApprovalDB != nil {
		approval.SetDB(deps.ApprovalDB)
	}
	s := &Server{
		emitter:    deps.Emitter,
		approval:   approval,
		layout:     canvas.NewLayoutEngine(),
		workspaces: deps.Workspaces,
		graph:      deps.Graph,
		pipelines:  deps.Pipelines,
		rag:        deps.Rag,
	}

	s.mcp = server.NewMCPServer(
		"weave-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerWorkspaceTools()
	s.registerBlockTools()
	s.registerConnectionTools()
	s.registerPipelineTools()
	s.registerRagTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// emitRefresh notifies the frontend that a workspace changed.
func (s *Server) emitRefresh(ctx context.Context, workspaceID string) {
	s.emitter.Emit(ctx, "mcp:workspace-changed", map[string]string{"workspaceId": workspaceID})
}

// resolveWorkspaceID picks the workspaceId argument, falling back to the
// active workspace context, then the persisted active pointer.
func (s *Server) resolveWorkspaceID(args map[string]any) (string, error) {
	if id, ok := args["workspaceId"].(string); ok && id != "" {
		return id, nil
	}
	if s.activeWorkspaceID != "" {
		return s.activeWorkspaceID, nil
	}
	id, err := s.workspaces.ActiveWorkspaceID()
	if err != nil || id == "" {
		return "", fmt.Errorf("no active workspace, call set_active_workspace first")
	}
	return id, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func boolPtr(v bool) *bool { return &v }
