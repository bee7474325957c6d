package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"weave/internal/domain"
	"weave/internal/service"
)

func (s *Server) registerPipelineTools() {
	// ── refine_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("refine_block",
		mcp.WithDescription("Run the refinement pipeline on a refinement or synthesis block. Gathers content from connected input blocks and writes the refined result into the block. Blocks until done."),
		mcp.WithString("blockId", mcp.Description("Refinement or synthesis block ID"), mcp.Required()),
		mcp.WithString("instruction", mcp.Description("Refinement instruction (optional, overrides the block's stored instruction)")),
	), s.handleRefineBlock)

	// ── chat_with_block ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("chat_with_block",
		mcp.WithDescription("Send a message to a chat block and wait for the model's reply. Connected blocks are available as context."),
		mcp.WithString("blockId", mcp.Description("Chat block ID"), mcp.Required()),
		mcp.WithString("message", mcp.Description("Message to send"), mcp.Required()),
	), s.handleChatWithBlock)

	// ── rag_chat ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rag_chat",
		mcp.WithDescription("Ask a question against the knowledge base bound to a rag-db block. The exchange is appended to the block's conversation history."),
		mcp.WithString("blockId", mcp.Description("rag-db block ID"), mcp.Required()),
		mcp.WithString("question", mcp.Description("Question to ask"), mcp.Required()),
	), s.handleRagChat)

	// ── ingest_url ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("ingest_url",
		mcp.WithDescription("Fetch and summarize the URL bound to a link or youtube block. The summary is written to the block's content."),
		mcp.WithString("blockId", mcp.Description("Link or youtube block ID"), mcp.Required()),
		mcp.WithString("url", mcp.Description("URL to bind first (optional if the block already has one)")),
	), s.handleIngestURL)

	// ── index_inputs ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("index_inputs",
		mcp.WithDescription("Snapshot the content of all blocks connected into a rag-db block and index it into the block's knowledge base"),
		mcp.WithString("blockId", mcp.Description("rag-db block ID"), mcp.Required()),
	), s.handleIndexInputs)
}

func (s *Server) handleRefineBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	if instruction := req.GetString("instruction", ""); instruction != "" {
		chat := &domain.ChatData{Instruction: instruction}
		if block.Chat != nil {
			chat.History = block.Chat.History
		}
		if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Chat: chat}); err != nil {
			return nil, fmt.Errorf("set instruction: %w", err)
		}
	}

	if err := s.pipelines.Refine(ctx, block.ID); err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}

	updated, err := s.graph.GetBlock(block.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(updated.Content), nil
}

func (s *Server) handleChatWithBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	message := req.GetString("message", "")
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	if err := s.pipelines.Chat(ctx, block.ID, message); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	updated, err := s.graph.GetBlock(block.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)

	// Last history entry is the model's reply
	if updated.Chat != nil && len(updated.Chat.History) > 0 {
		last := updated.Chat.History[len(updated.Chat.History)-1]
		if last.Role == domain.RoleModel {
			return textResult(last.Text), nil
		}
	}
	return textResult("No reply recorded"), nil
}

func (s *Server) handleRagChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	question := req.GetString("question", "")
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	if err := s.pipelines.RagChat(ctx, block.ID, question); err != nil {
		return nil, fmt.Errorf("rag chat: %w", err)
	}

	updated, err := s.graph.GetBlock(block.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)

	if updated.Chat != nil && len(updated.Chat.History) > 0 {
		last := updated.Chat.History[len(updated.Chat.History)-1]
		if last.Role == domain.RoleModel {
			return textResult(last.Text), nil
		}
	}
	return textResult("No answer recorded"), nil
}

func (s *Server) handleIngestURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	if url := req.GetString("url", ""); url != "" {
		if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Link: &domain.LinkData{SourceURL: url}}); err != nil {
			return nil, fmt.Errorf("bind url: %w", err)
		}
	}

	if err := s.pipelines.IngestURL(ctx, block.ID); err != nil {
		return nil, fmt.Errorf("ingest url: %w", err)
	}

	updated, err := s.graph.GetBlock(block.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(updated.Content), nil
}

func (s *Server) handleIndexInputs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}

	if err := s.pipelines.IndexInputs(ctx, block.ID); err != nil {
		return nil, fmt.Errorf("index inputs: %w", err)
	}

	updated, err := s.graph.GetBlock(block.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)

	indexed := 0
	if updated.Rag != nil {
		indexed = len(updated.Rag.IndexedDocs)
	}
	return textResult(fmt.Sprintf("Indexed inputs into knowledge base, %d documents tracked on block", indexed)), nil
}
