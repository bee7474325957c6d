package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"weave/internal/ai"
	"weave/internal/domain"
	"weave/internal/ingest"
)

// ─────────────────────────────────────────────────────────────
// Pipeline Service — async AI processing on blocks
// ─────────────────────────────────────────────────────────────
//
// Every pipeline follows the same shape: check preconditions, mark the
// block processing, make exactly one completion call, then re-fetch the
// block by id before writing the result. The re-fetch means a block
// deleted mid-flight is never resurrected. Completion failures are
// persisted as "Failed to ..." strings rather than surfaced as errors.

// PipelineService runs the AI pipelines over canvas blocks.
type PipelineService struct {
	graph     *GraphService
	blocks    domain.BlockStore
	completer ai.Completer
	rag       *RagService
	emitter   EventEmitter
	log       *zap.Logger
	guard     runningJobsGuard
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(graph *GraphService, blocks domain.BlockStore, completer ai.Completer, rag *RagService, emitter EventEmitter, log *zap.Logger) *PipelineService {
	return &PipelineService{
		graph:     graph,
		blocks:    blocks,
		completer: completer,
		rag:       rag,
		emitter:   emitter,
		log:       log,
	}
}

// WaitIdle blocks until all in-flight pipelines finish or ctx is done.
// Used on shutdown.
func (s *PipelineService) WaitIdle(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

// begin locks the block for pipeline execution and flips isProcessing.
// Returns the fresh block.
func (s *PipelineService) begin(ctx context.Context, blockID string, want ...domain.BlockType) (*domain.Block, error) {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return nil, fmt.Errorf("%w: block not found", ErrPrecondition)
	}
	if len(want) > 0 {
		ok := false
		for _, t := range want {
			if b.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: block type %s cannot run this pipeline", ErrPrecondition, b.Type)
		}
	}
	if !s.guard.TryLock(blockID) {
		return nil, fmt.Errorf("%w: block is already processing", ErrPrecondition)
	}

	b.IsProcessing = true
	if err := s.blocks.UpdateBlock(b); err != nil {
		s.guard.Unlock(blockID)
		return nil, err
	}
	s.emitter.Emit(ctx, EventPipelineStarted, blockID)
	s.emitter.Emit(ctx, EventBlockUpdated, b)
	return b, nil
}

// finish re-fetches the block and applies write under the processing
// lock, then clears isProcessing. A deleted block makes finish a no-op.
func (s *PipelineService) finish(ctx context.Context, blockID string, write func(b *domain.Block)) {
	defer s.guard.Unlock(blockID)
	defer s.emitter.Emit(ctx, EventPipelineFinished, blockID)

	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return // deleted while processing
	}
	write(b)
	b.IsProcessing = false
	if err := s.blocks.UpdateBlock(b); err != nil {
		s.log.Error("pipeline result write failed", zap.String("block", blockID), zap.Error(err))
		return
	}
	s.emitter.Emit(ctx, EventBlockUpdated, b)
}

// abort backs out of a pipeline whose intermediate write failed: the
// processing flag is cleared from a fresh copy of the block and the lock
// released, so the block does not stay stuck until restart.
func (s *PipelineService) abort(ctx context.Context, blockID string) {
	defer s.guard.Unlock(blockID)

	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return
	}
	b.IsProcessing = false
	if err := s.blocks.UpdateBlock(b); err != nil {
		s.log.Error("processing flag reset failed", zap.String("block", blockID), zap.Error(err))
		return
	}
	s.emitter.Emit(ctx, EventBlockUpdated, b)
}

// TranscribeAudio sends an audio block's recording for transcription and
// writes the transcript as the block content.
func (s *PipelineService) TranscribeAudio(ctx context.Context, blockID, audioDataURL string) error {
	data, mime, err := decodeDataURL(audioDataURL)
	if err != nil {
		return fmt.Errorf("%w: no audio recording to transcribe", ErrPrecondition)
	}
	if _, err := s.begin(ctx, blockID, domain.BlockTypeAudio); err != nil {
		return err
	}

	result, err := s.completer.GenerateWithAttachment(ctx,
		"Transcribe this audio recording verbatim. Output only the transcript.",
		data, mime)
	if err != nil {
		s.log.Warn("transcription failed", zap.String("block", blockID), zap.Error(err))
		result = "Failed to transcribe audio."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		b.Content = result
	})
	return nil
}

// Refine rewrites the combined content of a block's connected inputs
// according to the block's instruction. Works for refinement and
// synthesis blocks.
func (s *PipelineService) Refine(ctx context.Context, blockID string) error {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return fmt.Errorf("%w: block not found", ErrPrecondition)
	}

	inputs, err := s.graph.InputsOf(blockID)
	if err != nil {
		return err
	}
	source := collectContent(inputs)
	if source == "" {
		return fmt.Errorf("%w: connect at least one block with content", ErrPrecondition)
	}

	instruction := ""
	if b.Chat != nil {
		instruction = strings.TrimSpace(b.Chat.Instruction)
	}
	if instruction == "" {
		return fmt.Errorf("%w: set an instruction before refining", ErrPrecondition)
	}

	if _, err := s.begin(ctx, blockID, domain.BlockTypeRefinement, domain.BlockTypeSynthesis); err != nil {
		return err
	}

	result, err := s.completer.GenerateText(ctx,
		"You rewrite text. Apply the user's instruction to the source material. Output only the rewritten text.",
		fmt.Sprintf("Instruction: %s\n\nSource material:\n%s", instruction, source))
	if err != nil {
		s.log.Warn("refinement failed", zap.String("block", blockID), zap.Error(err))
		result = "Failed to refine content."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		b.Content = result
	})
	return nil
}

// Chat appends the user message to a chat block's history, asks the
// model with the connected blocks as context, and appends the reply.
// The user message lands in history before the call so the conversation
// renders immediately (and survives a provider failure).
func (s *PipelineService) Chat(ctx context.Context, blockID, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is empty", ErrPrecondition)
	}
	b, err := s.begin(ctx, blockID, domain.BlockTypeChat, domain.BlockTypeSynthesis)
	if err != nil {
		return err
	}

	if b.Chat == nil {
		b.Chat = &domain.ChatData{}
	}
	b.Chat.History = append(b.Chat.History, domain.ChatMessage{Role: domain.RoleUser, Text: message})
	if err := s.blocks.UpdateBlock(b); err != nil {
		s.abort(ctx, blockID)
		return err
	}
	s.emitter.Emit(ctx, EventBlockUpdated, b)

	inputs, _ := s.graph.InputsOf(blockID)
	system := buildChatSystem(b.Chat.Instruction, collectContent(inputs))
	user := renderHistory(b.Chat.History)

	reply, err := s.completer.GenerateText(ctx, system, user)
	if err != nil {
		s.log.Warn("chat completion failed", zap.String("block", blockID), zap.Error(err))
		reply = "Failed to generate a response."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		if b.Chat == nil {
			b.Chat = &domain.ChatData{}
		}
		b.Chat.History = append(b.Chat.History, domain.ChatMessage{Role: domain.RoleModel, Text: reply})
	})
	return nil
}

// RagChat answers a question on a rag-db block against its bound corpus.
// The conversation lives in the block's chat history, same shape as Chat:
// the question is appended before the completion call, the reply after.
func (s *PipelineService) RagChat(ctx context.Context, blockID, question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: question is empty", ErrPrecondition)
	}
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return fmt.Errorf("%w: block not found", ErrPrecondition)
	}
	if b.Type != domain.BlockTypeRagDB || b.Rag == nil || b.Rag.DBName == "" {
		return fmt.Errorf("%w: block has no bound knowledge base", ErrPrecondition)
	}

	knowledge, err := s.rag.RetrieveContext(b.Rag.DBName, question)
	if err != nil {
		return err
	}

	b, err = s.begin(ctx, blockID, domain.BlockTypeRagDB)
	if err != nil {
		return err
	}

	if b.Chat == nil {
		b.Chat = &domain.ChatData{}
	}
	b.Chat.History = append(b.Chat.History, domain.ChatMessage{Role: domain.RoleUser, Text: question})
	if err := s.blocks.UpdateBlock(b); err != nil {
		s.abort(ctx, blockID)
		return err
	}
	s.emitter.Emit(ctx, EventBlockUpdated, b)

	system := "Answer using ONLY the provided knowledge base. If the answer is not in it, say so."
	if knowledge == "" {
		system = "The knowledge base is empty. Tell the user there is nothing to answer from."
	}
	reply, err := s.completer.GenerateText(ctx, system,
		fmt.Sprintf("Knowledge base:\n%s\n\nConversation:\n%s", knowledge, renderHistory(b.Chat.History)))
	if err != nil {
		s.log.Warn("rag chat failed", zap.String("block", blockID), zap.Error(err))
		reply = "Failed to generate a response."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		if b.Chat == nil {
			b.Chat = &domain.ChatData{}
		}
		b.Chat.History = append(b.Chat.History, domain.ChatMessage{Role: domain.RoleModel, Text: reply})
	})
	return nil
}

// IngestURL summarizes the resource a link or youtube block points at
// and writes the summary as the block content.
func (s *PipelineService) IngestURL(ctx context.Context, blockID string) error {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return fmt.Errorf("%w: block not found", ErrPrecondition)
	}
	if b.Link == nil || strings.TrimSpace(b.Link.SourceURL) == "" {
		return fmt.Errorf("%w: block has no source URL", ErrPrecondition)
	}
	url := b.Link.SourceURL

	if _, err := s.begin(ctx, blockID, domain.BlockTypeLink, domain.BlockTypeYouTube); err != nil {
		return err
	}

	var result string
	if b.Type == domain.BlockTypeYouTube {
		// Video content cannot be fetched locally; the provider grounds on the URL.
		result, err = s.completer.GenerateGrounded(ctx,
			"Summarize this video: key points, names, and conclusions.", url)
	} else {
		result, err = s.summarizeWebPage(ctx, url)
	}
	if err != nil {
		s.log.Warn("url ingestion failed", zap.String("block", blockID), zap.String("url", url), zap.Error(err))
		result = "Failed to process URL."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		b.Content = result
		if b.Title == "" {
			b.Title = url
		}
	})
	return nil
}

func (s *PipelineService) summarizeWebPage(ctx context.Context, url string) (string, error) {
	src, err := ingest.GetSource("url")
	if err != nil {
		return "", err
	}
	docs, err := src.Read(ctx, ingest.SourceConfig{"url": url})
	if err != nil || len(docs) == 0 {
		// Page not fetchable locally, let the provider try.
		return s.completer.GenerateGrounded(ctx,
			"Summarize this web page: main argument and key facts.", url)
	}
	return s.completer.GenerateText(ctx,
		"Summarize the page: main argument and key facts. Output markdown.",
		docs[0].Content)
}

// IngestPDF extracts text from an uploaded PDF and writes a structured
// summary as the block content. The block title becomes the uploaded
// file's name.
func (s *PipelineService) IngestPDF(ctx context.Context, blockID, fileName string, pdfData []byte) error {
	if len(pdfData) == 0 {
		return fmt.Errorf("%w: no PDF data", ErrPrecondition)
	}
	text, err := ingest.ExtractPDFText(pdfData)
	if err != nil || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: PDF has no extractable text", ErrPrecondition)
	}

	if _, err := s.begin(ctx, blockID, domain.BlockTypePDF); err != nil {
		return err
	}

	result, err := s.completer.GenerateText(ctx,
		"Summarize the document: purpose, key sections, conclusions. Output markdown.",
		text)
	if err != nil {
		s.log.Warn("pdf ingestion failed", zap.String("block", blockID), zap.Error(err))
		result = "Failed to process PDF."
	}

	s.finish(ctx, blockID, func(b *domain.Block) {
		b.Content = result
		if fileName != "" {
			b.Title = fileName
		}
	})
	return nil
}

// IndexInputs snapshots the content of a rag-db block's connected inputs
// into its bound corpus.
func (s *PipelineService) IndexInputs(ctx context.Context, blockID string) error {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return fmt.Errorf("%w: block not found", ErrPrecondition)
	}
	if b.Type != domain.BlockTypeRagDB || b.Rag == nil || b.Rag.DBName == "" {
		return fmt.Errorf("%w: bind the block to a knowledge base first", ErrPrecondition)
	}

	inputs, err := s.graph.InputsOf(blockID)
	if err != nil {
		return err
	}
	var docs []domain.RagDocument
	for _, in := range inputs {
		if strings.TrimSpace(in.Content) == "" {
			continue
		}
		title := in.Title
		if title == "" {
			title = string(in.Type) + " block"
		}
		docs = append(docs, domain.RagDocument{
			SourceID: in.ID,
			Title:    title,
			Content:  in.Content,
			Type:     in.Type,
		})
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: no connected blocks with content", ErrPrecondition)
	}

	if _, err := s.begin(ctx, blockID, domain.BlockTypeRagDB); err != nil {
		return err
	}

	corpus := b.Rag.DBName
	appendErr := s.rag.AppendToCorpus(ctx, corpus, docs)

	s.finish(ctx, blockID, func(b *domain.Block) {
		if appendErr != nil {
			s.log.Error("corpus indexing failed", zap.String("block", blockID), zap.Error(appendErr))
			return
		}
		if b.Rag == nil {
			b.Rag = &domain.RagData{DBName: corpus}
		}
		b.Rag.IndexedDocs = append(b.Rag.IndexedDocs, docs...)
	})
	return appendErr
}

// ── helpers ────────────────────────────────────────────────

func collectContent(blocks []domain.Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		if strings.TrimSpace(blk.Content) == "" {
			continue
		}
		title := blk.Title
		if title == "" {
			title = string(blk.Type)
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", title, blk.Content)
	}
	return strings.TrimSpace(b.String())
}

func buildChatSystem(instruction, context string) string {
	var b strings.Builder
	b.WriteString("You are a thinking partner on a visual canvas.")
	if instruction != "" {
		b.WriteString("\n\nInstruction: " + instruction)
	}
	if context != "" {
		b.WriteString("\n\nConnected context:\n" + context)
	}
	return b.String()
}

func renderHistory(history []domain.ChatMessage) string {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	return b.String()
}

// decodeDataURL splits a data URL into raw bytes and mime type.
func decodeDataURL(dataURL string) (data []byte, mime string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", fmt.Errorf("not a data URL")
	}
	rest := dataURL[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return nil, "", fmt.Errorf("missing base64 payload")
	}
	mime = rest[:sep]
	data, err = base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty payload")
	}
	return data, mime, nil
}
