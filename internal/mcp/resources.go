package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── weave://workspaces ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"weave://workspaces",
		"All Workspaces",
		mcp.WithMIMEType("application/json"),
	), s.handleWorkspacesResource)

	// ── weave://corpora ────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"weave://corpora",
		"Knowledge Base Corpora",
		mcp.WithMIMEType("application/json"),
	), s.handleCorporaResource)

	// ── weave://workspace/{workspaceId}/blocks ─────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"weave://workspace/{workspaceId}/blocks",
			"Blocks in a Workspace",
		),
		s.handleWorkspaceBlocksResource,
	)
}

func (s *Server) handleWorkspacesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workspaces, err := s.workspaces.ListWorkspaces()
	if err != nil {
		return nil, err
	}

	type workspaceSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var summaries []workspaceSummary
	for _, w := range workspaces {
		summaries = append(summaries, workspaceSummary{ID: w.ID, Name: w.Name})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "weave://workspaces",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCorporaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	corpora, err := s.rag.ListCorpora()
	if err != nil {
		return nil, err
	}

	type corpusSummary struct {
		Name     string `json:"name"`
		DocCount int    `json:"docCount"`
	}
	var summaries []corpusSummary
	for _, c := range corpora {
		summaries = append(summaries, corpusSummary{Name: c.Name, DocCount: len(c.Docs)})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "weave://corpora",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleWorkspaceBlocksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	workspaceID := extractWorkspaceIDFromURI(uri)
	if workspaceID == "" {
		return nil, fmt.Errorf("could not extract workspaceId from URI: %s", uri)
	}

	blocks, err := s.graph.ListBlocks(workspaceID)
	if err != nil {
		return nil, err
	}

	summaries := make([]blockSummary, len(blocks))
	for i, b := range blocks {
		summaries[i] = summarizeBlock(b)
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractWorkspaceIDFromURI extracts the ID from "weave://workspace/{id}/blocks".
func extractWorkspaceIDFromURI(uri string) string {
	const prefix = "weave://workspace/"
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return ""
	}
	if idx := strings.IndexByte(rest, '/'); idx > 0 {
		return rest[:idx]
	}
	return ""
}
