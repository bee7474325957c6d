// Package index provides the Bleve keyword index over corpus documents.
package index

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"weave/internal/domain"
)

// Result is a single retrieval hit.
type Result struct {
	ID    string
	Score float64
}

// CorpusIndex is a Bleve-backed keyword index over retrieval corpus
// documents. Document IDs are namespaced by corpus so corpora can share
// one index directory.
type CorpusIndex struct {
	index bleve.Index
}

// indexedDoc is the Bleve document shape. Corpus travels as a keyword
// field so retrieval can be scoped to one corpus.
type indexedDoc struct {
	Corpus  string `json:"corpus"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Open creates or opens a Bleve index at path. An existing index is
// reused so unchanged documents are not re-indexed across restarts. If
// the mapping changes in code, remove the index directory to force a
// full rebuild.
func Open(path string) (*CorpusIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries
	// match exact words instead of stemmed forms.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("corpus", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open corpus index: %w", openErr)
		}
		return &CorpusIndex{index: idx}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create corpus index: %w", err)
	}
	return &CorpusIndex{index: idx}, nil
}

// Close releases the underlying index.
func (c *CorpusIndex) Close() error {
	return c.index.Close()
}

// Index adds or replaces a corpus document in the index.
func (c *CorpusIndex) Index(corpus string, doc domain.RagDocument) error {
	return c.index.Index(docKey(corpus, doc.ID), indexedDoc{
		Corpus:  corpus,
		Title:   doc.Title,
		Content: doc.Content,
	})
}

// IndexAll indexes a batch of documents in one Bleve batch.
func (c *CorpusIndex) IndexAll(corpus string, docs []domain.RagDocument) error {
	batch := c.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(docKey(corpus, doc.ID), indexedDoc{
			Corpus:  corpus,
			Title:   doc.Title,
			Content: doc.Content,
		}); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	return c.index.Batch(batch)
}

// Search runs a match query scoped to one corpus and returns up to limit
// hits, best score first. Returned IDs are the original document IDs.
func (c *CorpusIndex) Search(corpus, query string, limit int) ([]Result, error) {
	match := bleve.NewMatchQuery(query)
	scope := bleve.NewTermQuery(corpus)
	scope.SetField("corpus")
	conj := bleve.NewConjunctionQuery(scope, match)

	req := bleve.NewSearchRequest(conj)
	req.Size = limit
	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("corpus search: %w", err)
	}

	prefix := corpus + "/"
	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id := hit.ID
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			id = id[len(prefix):]
		}
		out = append(out, Result{ID: id, Score: hit.Score})
	}
	return out, nil
}

// DeleteCorpus removes every indexed document of a corpus.
func (c *CorpusIndex) DeleteCorpus(corpus string) error {
	scope := bleve.NewTermQuery(corpus)
	scope.SetField("corpus")
	req := bleve.NewSearchRequest(scope)
	req.Size = 10000

	results, err := c.index.Search(req)
	if err != nil {
		return fmt.Errorf("corpus lookup: %w", err)
	}
	batch := c.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	return c.index.Batch(batch)
}

func docKey(corpus, id string) string {
	return corpus + "/" + id
}
