package app

import (
	"encoding/base64"
	"fmt"
)

// ── Pipelines ──────────────────────────────────────────────
//
// Wails runs each bound call on its own goroutine, so pipelines execute
// synchronously here: the frontend promise resolves when the pipeline is
// done, while progress events keep the canvas live in the meantime.
// Precondition violations come back as errors with no mutation.

// TranscribeAudio transcribes a recorded audio data URL into the block's
// content.
func (a *App) TranscribeAudio(blockID, audioDataURL string) error {
	return a.pipelines.TranscribeAudio(a.ctx, blockID, audioDataURL)
}

// RefineBlock runs refinement over the block's connected inputs.
func (a *App) RefineBlock(blockID string) error {
	return a.pipelines.Refine(a.ctx, blockID)
}

// SendChatMessage appends the user message and requests a model reply.
func (a *App) SendChatMessage(blockID, message string) error {
	return a.pipelines.Chat(a.ctx, blockID, message)
}

// AskRag answers a question against the block's bound knowledge base.
func (a *App) AskRag(blockID, question string) error {
	return a.pipelines.RagChat(a.ctx, blockID, question)
}

// IngestURL fetches and summarizes the block's bound URL.
func (a *App) IngestURL(blockID string) error {
	return a.pipelines.IngestURL(a.ctx, blockID)
}

// IngestPDF extracts text from an uploaded PDF (base64) and summarizes it
// into the block. The file name becomes the block title.
func (a *App) IngestPDF(blockID, fileName, pdfBase64 string) error {
	data, err := base64.StdEncoding.DecodeString(pdfBase64)
	if err != nil {
		return fmt.Errorf("decode pdf data: %w", err)
	}
	return a.pipelines.IngestPDF(a.ctx, blockID, fileName, data)
}

// IndexInputs snapshots connected blocks into the rag-db block's corpus.
func (a *App) IndexInputs(blockID string) error {
	return a.pipelines.IndexInputs(a.ctx, blockID)
}
