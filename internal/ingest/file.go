package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"weave/internal/domain"
)

// ── File Source ─────────────────────────────────────────────
// Reads local txt/md/pdf files into corpus documents.

type fileSource struct{}

func init() { RegisterSource(&fileSource{}) }

func (s *fileSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "file",
		Label: "Local File",
		Icon:  "IconFileText",
		ConfigFields: []ConfigField{
			{Key: "path", Label: "File Path", Type: "file", Required: true, Help: "Path to a .txt, .md or .pdf file"},
		},
	}
}

func (s *fileSource) Read(_ context.Context, cfg SourceConfig) ([]domain.RagDocument, error) {
	path := stringField(cfg, "path")
	if path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	return ReadFile(path)
}

// ReadFile turns one local file into a corpus document. Shared with the
// inbox watcher.
func ReadFile(path string) ([]domain.RagDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	name := filepath.Base(path)
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = ExtractPDFText(data)
		if err != nil {
			return nil, err
		}
	case ".txt", ".md", ".markdown", "":
		content = string(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("file %s has no extractable text", name)
	}

	return []domain.RagDocument{{
		SourceID: path,
		Title:    name,
		Content:  content,
		Type:     "file",
	}}, nil
}
