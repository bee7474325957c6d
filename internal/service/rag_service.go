package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"weave/internal/domain"
	"weave/internal/index"
	"weave/internal/ingest"
)

// ─────────────────────────────────────────────────────────────
// RAG Service — global corpus registry, ingestion, retrieval
// ─────────────────────────────────────────────────────────────

// Above this many documents a corpus is no longer dumped whole into the
// prompt; keyword retrieval picks the top matches instead.
const fullDumpThreshold = 25

// retrievalTopK is how many documents keyword retrieval returns.
const retrievalTopK = 8

// RagService owns the named corpus registry, ingestion from external
// sources, the keyword index mirror, and scheduled corpus sync for
// rag-db blocks.
type RagService struct {
	corpora domain.RagDatabaseStore
	blocks  domain.BlockStore
	idx     *index.CorpusIndex
	emitter EventEmitter
	log     *zap.Logger
	cron    *cron.Cron
}

// NewRagService creates a RagService.
func NewRagService(corpora domain.RagDatabaseStore, blocks domain.BlockStore, idx *index.CorpusIndex, emitter EventEmitter, log *zap.Logger) *RagService {
	return &RagService{corpora: corpora, blocks: blocks, idx: idx, emitter: emitter, log: log}
}

// CreateCorpus registers a corpus by name. Existing names are reused.
func (s *RagService) CreateCorpus(name string) (*domain.RagDatabase, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: corpus name is empty", ErrPrecondition)
	}
	return s.corpora.CreateDatabase(name)
}

// GetCorpus loads a corpus with its documents.
func (s *RagService) GetCorpus(name string) (*domain.RagDatabase, error) {
	return s.corpora.GetDatabase(name)
}

// ListCorpora returns every registered corpus.
func (s *RagService) ListCorpora() ([]domain.RagDatabase, error) {
	return s.corpora.ListDatabases()
}

// DeleteCorpus removes a corpus and its index entries. Blocks bound to
// the name keep their weak reference; their queries return empty.
func (s *RagService) DeleteCorpus(ctx context.Context, name string) error {
	if err := s.corpora.DeleteDatabase(name); err != nil {
		return err
	}
	if err := s.idx.DeleteCorpus(name); err != nil {
		s.log.Warn("corpus index cleanup failed", zap.String("corpus", name), zap.Error(err))
	}
	s.emitter.Emit(ctx, EventCorpusUpdated, name)
	return nil
}

// AppendToCorpus stores documents and mirrors them into the keyword
// index. Implements ingest.Appender for the inbox watcher.
func (s *RagService) AppendToCorpus(ctx context.Context, corpus string, docs []domain.RagDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.corpora.AppendDocuments(corpus, docs); err != nil {
		return err
	}
	if err := s.idx.IndexAll(corpus, docs); err != nil {
		// Store stays authoritative; the index can be rebuilt.
		s.log.Warn("corpus indexing failed", zap.String("corpus", corpus), zap.Error(err))
	}
	s.emitter.Emit(ctx, EventCorpusUpdated, corpus)
	return nil
}

// IngestFromSource runs a registered ingestion source and appends its
// documents to the corpus.
func (s *RagService) IngestFromSource(ctx context.Context, corpus, sourceType string, cfg ingest.SourceConfig) (int, error) {
	src, err := ingest.GetSource(sourceType)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	docs, err := src.Read(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if err := s.AppendToCorpus(ctx, corpus, docs); err != nil {
		return 0, err
	}
	s.log.Info("source ingested",
		zap.String("corpus", corpus),
		zap.String("source", sourceType),
		zap.Int("documents", len(docs)))
	return len(docs), nil
}

// RetrieveContext builds the knowledge-base text for a question against
// a corpus. Small corpora are dumped whole; larger ones go through
// keyword retrieval so the prompt stays bounded.
func (s *RagService) RetrieveContext(corpus, question string) (string, error) {
	rdb, err := s.corpora.GetDatabase(corpus)
	if err != nil {
		// A dangling corpus reference yields an empty knowledge base.
		return "", nil
	}

	docs := rdb.Docs
	if len(docs) > fullDumpThreshold {
		hits, err := s.idx.Search(corpus, question, retrievalTopK)
		if err != nil {
			s.log.Warn("corpus retrieval failed, falling back to full dump",
				zap.String("corpus", corpus), zap.Error(err))
		} else {
			byID := make(map[string]domain.RagDocument, len(docs))
			for _, d := range docs {
				byID[d.ID] = d
			}
			var picked []domain.RagDocument
			for _, hit := range hits {
				if d, ok := byID[hit.ID]; ok {
					picked = append(picked, d)
				}
			}
			docs = picked
		}
	}

	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "--- Document: %s ---\n%s\n\n", d.Title, d.Content)
	}
	return b.String(), nil
}

// SyncBlock refreshes a rag-db block's document snapshot from its bound
// corpus and stamps lastSynced.
func (s *RagService) SyncBlock(ctx context.Context, blockID string) error {
	b, err := s.blocks.GetBlock(blockID)
	if err != nil {
		return nil // block gone, nothing to sync
	}
	if b.Type != domain.BlockTypeRagDB || b.Rag == nil || b.Rag.DBName == "" {
		return nil
	}

	rdb, err := s.corpora.GetDatabase(b.Rag.DBName)
	if err != nil {
		return nil // dangling reference keeps the stale snapshot
	}

	b.Rag.IndexedDocs = rdb.Docs
	b.Rag.LastSynced = time.Now()
	if err := s.blocks.UpdateBlock(b); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventBlockUpdated, b)
	return nil
}

// StartScheduledSync refreshes every bound rag-db block on the given
// cron schedule (e.g. "@every 15m"). Returns a stop function.
func (s *RagService) StartScheduledSync(ctx context.Context, schedule string, workspaceIDs func() []string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		for _, wsID := range workspaceIDs() {
			blocks, err := s.blocks.ListBlocks(wsID)
			if err != nil {
				continue
			}
			for _, b := range blocks {
				if b.Type != domain.BlockTypeRagDB {
					continue
				}
				if err := s.SyncBlock(ctx, b.ID); err != nil {
					s.log.Warn("scheduled sync failed", zap.String("block", b.ID), zap.Error(err))
				}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	return func() { c.Stop() }, nil
}
