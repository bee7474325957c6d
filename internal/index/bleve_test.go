package index

import (
	"path/filepath"
	"testing"

	"weave/internal/domain"
)

func newTestIndex(t *testing.T) *CorpusIndex {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "corpus.bleve"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchScopedToCorpus(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.IndexAll("research", []domain.RagDocument{
		{ID: "a", Title: "bayes", Content: "bayesian inference basics"},
		{ID: "b", Title: "graphs", Content: "directed acyclic graphs"},
	})
	if err != nil {
		t.Fatalf("index research: %v", err)
	}
	if err := idx.Index("personal", domain.RagDocument{ID: "c", Title: "bayes diary", Content: "bayes at home"}); err != nil {
		t.Fatalf("index personal: %v", err)
	}

	hits, err := idx.Search("research", "bayes", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1 (corpus scoped)", len(hits))
	}
	if hits[0].ID != "a" {
		t.Errorf("hit id = %s, want a", hits[0].ID)
	}
}

func TestSearchNoMatch(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Index("research", domain.RagDocument{ID: "a", Content: "quarterly planning"}); err != nil {
		t.Fatalf("index: %v", err)
	}
	hits, err := idx.Search("research", "zanzibar", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %d, want 0", len(hits))
	}
}

func TestDeleteCorpus(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.IndexAll("research", []domain.RagDocument{
		{ID: "a", Content: "alpha document"},
		{ID: "b", Content: "beta document"},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.DeleteCorpus("research"); err != nil {
		t.Fatalf("delete corpus: %v", err)
	}
	hits, err := idx.Search("research", "document", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits after delete = %d, want 0", len(hits))
	}
}
