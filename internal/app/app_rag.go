package app

import (
	"weave/internal/domain"
	"weave/internal/ingest"
)

// ── Knowledge bases ────────────────────────────────────────

func (a *App) ListCorpora() ([]domain.RagDatabase, error) {
	return a.rag.ListCorpora()
}

func (a *App) GetCorpus(name string) (*domain.RagDatabase, error) {
	return a.rag.GetCorpus(name)
}

func (a *App) CreateCorpus(name string) (*domain.RagDatabase, error) {
	return a.rag.CreateCorpus(name)
}

func (a *App) DeleteCorpus(name string) error {
	return a.rag.DeleteCorpus(a.ctx, name)
}

// SyncRagBlock refreshes a rag-db block's indexed document list from its
// bound corpus.
func (a *App) SyncRagBlock(blockID string) error {
	return a.rag.SyncBlock(a.ctx, blockID)
}

// ListIngestSources returns the registered source specs so the frontend
// can render config forms.
func (a *App) ListIngestSources() []ingest.SourceSpec {
	return ingest.ListSources()
}

// IngestFromSource pulls documents from a registered source into a corpus
// and returns how many landed.
func (a *App) IngestFromSource(corpus, sourceType string, cfg ingest.SourceConfig) (int, error) {
	return a.rag.IngestFromSource(a.ctx, corpus, sourceType, cfg)
}
