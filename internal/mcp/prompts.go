package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("research_topic",
		mcp.WithPromptDescription("Collect sources on a topic and distill them into a synthesis block"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic to research"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("urls",
			mcp.ArgumentDescription("Comma-separated source URLs (optional)"),
		),
	), s.handleResearchTopicPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("build_knowledge_base",
		mcp.WithPromptDescription("Set up a rag-db block backed by a corpus and index the workspace's notes into it"),
		mcp.WithArgument("corpusName",
			mcp.ArgumentDescription("Name for the knowledge base corpus"),
			mcp.RequiredArgument(),
		),
	), s.handleBuildKnowledgeBasePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("summarize_sources",
		mcp.WithPromptDescription("Wire existing blocks into a refinement block and produce a summary"),
		mcp.WithArgument("instruction",
			mcp.ArgumentDescription("What the summary should focus on"),
			mcp.RequiredArgument(),
		),
	), s.handleSummarizeSourcesPrompt)
}

func (s *Server) handleResearchTopicPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	urls := req.Params.Arguments["urls"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Research: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Research "%s" on the active workspace. Follow these steps:

1. For each source URL (%s), create a link block (create_block with type "link"), bind the URL, and run ingest_url to summarize it
2. Create a synthesis block (create_block with type "synthesis")
3. Connect every link block into the synthesis block (connect_blocks)
4. Run refine_block on the synthesis block with an instruction that asks for the key findings about "%s"
5. Tag each block with "research" using add_tag

Use auto-layout for positioning. Leave the synthesis block's result as the workspace's top-level summary.`, topic, urls, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleBuildKnowledgeBasePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	corpusName := req.Params.Arguments["corpusName"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build knowledge base %q", corpusName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a knowledge base named "%s" from the active workspace. Follow these steps:

1. Create the corpus (create_corpus) named "%s"
2. Create a rag-db block (create_block with type "rag-db") and bind it to the corpus (bind_block_to_corpus)
3. List the note blocks in the workspace (list_blocks with type "note") and connect each one with content into the rag-db block (connect_blocks)
4. Run index_inputs on the rag-db block to snapshot the notes into the corpus
5. Verify with corpus_contents that the documents landed

Afterwards, questions can be asked with rag_chat against the rag-db block.`, corpusName, corpusName),
				},
			},
		},
	}, nil
}

func (s *Server) handleSummarizeSourcesPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	instruction := req.Params.Arguments["instruction"]
	return &mcp.GetPromptResult{
		Description: "Summarize connected sources",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Summarize the existing content on the active workspace. Follow these steps:

1. List the blocks (list_blocks) and identify the ones with meaningful content
2. Create a refinement block (create_block with type "refinement")
3. Connect each content block into the refinement block (connect_blocks)
4. Run refine_block with this instruction: "%s"
5. Set the refinement block's status to done (set_block_status) once the result reads well

If a block has no content, skip it rather than connecting it.`, instruction),
				},
			},
		},
	}, nil
}
