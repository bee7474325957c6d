package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"weave/internal/domain"
	"weave/internal/ingest"
	"weave/internal/service"
)

func (s *Server) registerRagTools() {
	// ── list_corpora ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_corpora",
		mcp.WithDescription("List all knowledge base corpora and their document counts"),
	), s.handleListCorpora)

	// ── create_corpus ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_corpus",
		mcp.WithDescription("Create a named knowledge base corpus. Creating an existing corpus is a no-op."),
		mcp.WithString("name", mcp.Description("Corpus name"), mcp.Required()),
	), s.handleCreateCorpus)

	// ── corpus_contents ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("corpus_contents",
		mcp.WithDescription("List the documents stored in a corpus (titles and previews, not full text)"),
		mcp.WithString("name", mcp.Description("Corpus name"), mcp.Required()),
	), s.handleCorpusContents)

	// ── bind_block_to_corpus ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("bind_block_to_corpus",
		mcp.WithDescription("Bind a rag-db block to a named corpus so rag_chat and index_inputs work against it"),
		mcp.WithString("blockId", mcp.Description("rag-db block ID"), mcp.Required()),
		mcp.WithString("corpus", mcp.Description("Corpus name"), mcp.Required()),
	), s.handleBindBlockToCorpus)

	// ── list_ingest_sources ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_ingest_sources",
		mcp.WithDescription("List the available ingestion source types and their config fields"),
	), s.handleListIngestSources)

	// ── ingest_from_source ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("ingest_from_source",
		mcp.WithDescription("Ingest documents into a corpus from a registered source (file, url, database)"),
		mcp.WithString("corpus", mcp.Description("Target corpus name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type: file, url, database"), mcp.Required()),
		mcp.WithString("config", mcp.Description(`Source config as JSON, e.g. {"path": "/tmp/notes.md"} or {"url": "https://..."}`), mcp.Required()),
	), s.handleIngestFromSource)

	// ── sync_rag_block ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sync_rag_block",
		mcp.WithDescription("Refresh a rag-db block's indexed document list from its bound corpus"),
		mcp.WithString("blockId", mcp.Description("rag-db block ID"), mcp.Required()),
	), s.handleSyncRagBlock)

	// ── delete_corpus (destructive) ────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_corpus",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a corpus and all its documents. Requires user approval. Blocks bound to it keep their name but retrieve nothing."),
		mcp.WithString("name", mcp.Description("Corpus name to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteCorpus)
}

func (s *Server) handleListCorpora(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpora, err := s.rag.ListCorpora()
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", err)
	}

	type corpusSummary struct {
		Name      string `json:"name"`
		DocCount  int    `json:"docCount"`
		UpdatedAt string `json:"updatedAt"`
	}
	summaries := make([]corpusSummary, len(corpora))
	for i, c := range corpora {
		summaries[i] = corpusSummary{
			Name:      c.Name,
			DocCount:  len(c.Docs),
			UpdatedAt: c.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return jsonResult(summaries)
}

func (s *Server) handleCreateCorpus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	corpus, err := s.rag.CreateCorpus(name)
	if err != nil {
		return nil, fmt.Errorf("create corpus: %w", err)
	}
	return jsonResult(corpus)
}

func (s *Server) handleCorpusContents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	corpus, err := s.rag.GetCorpus(name)
	if err != nil {
		return nil, fmt.Errorf("get corpus: %w", err)
	}

	type docSummary struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Type    string `json:"type"`
		Preview string `json:"preview"`
	}
	summaries := make([]docSummary, len(corpus.Docs))
	for i, d := range corpus.Docs {
		preview := d.Content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		summaries[i] = docSummary{ID: d.ID, Title: d.Title, Type: string(d.Type), Preview: preview}
	}
	return jsonResult(summaries)
}

func (s *Server) handleBindBlockToCorpus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	if block.Type != domain.BlockTypeRagDB {
		return nil, fmt.Errorf("block %s is a %s block, expected rag-db", block.ID, block.Type)
	}
	corpus := req.GetString("corpus", "")
	if corpus == "" {
		return nil, fmt.Errorf("corpus is required")
	}

	// Corpus must exist before binding (weak reference, but a typo here
	// would silently retrieve nothing)
	if _, err := s.rag.GetCorpus(corpus); err != nil {
		return nil, fmt.Errorf("corpus %q not found: %w", corpus, err)
	}

	rag := &domain.RagData{DBName: corpus}
	if block.Rag != nil {
		rag.IndexedDocs = block.Rag.IndexedDocs
		rag.LastSynced = block.Rag.LastSynced
	}
	if _, err := s.graph.UpdateBlock(ctx, block.ID, service.BlockPatch{Rag: rag}); err != nil {
		return nil, fmt.Errorf("bind corpus: %w", err)
	}

	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s bound to corpus %q", block.ID, corpus)), nil
}

func (s *Server) handleListIngestSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(ingest.ListSources())
}

func (s *Server) handleIngestFromSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpus := req.GetString("corpus", "")
	sourceType := req.GetString("sourceType", "")
	configJSON := req.GetString("config", "")
	if corpus == "" || sourceType == "" {
		return nil, fmt.Errorf("corpus and sourceType are required")
	}

	cfg := ingest.SourceConfig{}
	if configJSON != "" {
		if err := parseJSON(configJSON, &cfg); err != nil {
			return nil, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	count, err := s.rag.IngestFromSource(ctx, corpus, sourceType, cfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return textResult(fmt.Sprintf("Ingested %d documents into corpus %q", count, corpus)), nil
}

func (s *Server) handleSyncRagBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req)
	if err != nil {
		return nil, err
	}
	if err := s.rag.SyncBlock(ctx, block.ID); err != nil {
		return nil, fmt.Errorf("sync block: %w", err)
	}
	s.emitRefresh(ctx, block.WorkspaceID)
	return textResult(fmt.Sprintf("Block %s synced with its corpus", block.ID)), nil
}

func (s *Server) handleDeleteCorpus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	corpus, err := s.rag.GetCorpus(name)
	if err != nil {
		return nil, fmt.Errorf("get corpus: %w", err)
	}

	approved, err := s.approval.Request("delete_corpus",
		fmt.Sprintf("Delete corpus %q and its %d documents", name, len(corpus.Docs)))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.rag.DeleteCorpus(ctx, name); err != nil {
		return nil, fmt.Errorf("delete corpus: %w", err)
	}
	return textResult(fmt.Sprintf("Corpus %q deleted", name)), nil
}
