package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	html := `<html><head><title>My Page</title><style>body{color:red}</style></head>
<body><script>alert(1)</script><h1>Heading</h1><p>First &amp; second</p></body></html>`

	title, text := stripHTML(html)
	if title != "My Page" {
		t.Errorf("title = %q, want My Page", title)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Errorf("script/style leaked into text: %q", text)
	}
	if !strings.Contains(text, "Heading") || !strings.Contains(text, "First & second") {
		t.Errorf("visible text missing: %q", text)
	}
}

func TestStripHTMLDropsEachInvisibleElement(t *testing.T) {
	html := `<body><script src="a.js">var x=1</script>one<style>.a{}</style>two` +
		`<noscript>enable js</noscript>three</body>`

	_, text := stripHTML(html)
	for _, leaked := range []string{"var x=1", ".a{}", "enable js"} {
		if strings.Contains(text, leaked) {
			t.Errorf("%q leaked into text: %q", leaked, text)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(text, want) {
			t.Errorf("%q missing from text: %q", want, text)
		}
	}
}

func TestReadFileMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Title\n\nsome notes"), 0644); err != nil {
		t.Fatal(err)
	}

	docs, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	if docs[0].Title != "notes.md" || docs[0].Type != "file" {
		t.Errorf("doc = %+v", docs[0])
	}
	if !strings.Contains(docs[0].Content, "some notes") {
		t.Errorf("content = %q", docs[0].Content)
	}
}

func TestReadFileUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.exe")
	if err := os.WriteFile(path, []byte{0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestSourceRegistry(t *testing.T) {
	for _, typ := range []string{"file", "url", "database"} {
		if _, err := GetSource(typ); err != nil {
			t.Errorf("source %q not registered: %v", typ, err)
		}
	}
	if _, err := GetSource("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown source type")
	}
}

func TestFileSourceRequiresPath(t *testing.T) {
	src, err := GetSource("file")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Read(context.Background(), SourceConfig{}); err == nil {
		t.Error("expected error without path")
	}
}
