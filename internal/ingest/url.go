package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"weave/internal/domain"
)

// ── URL Source ──────────────────────────────────────────────
// Fetches a web page and strips it down to readable text.

type urlSource struct {
	client *http.Client
}

func init() {
	RegisterSource(&urlSource{client: &http.Client{Timeout: 30 * time.Second}})
}

func (s *urlSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "url",
		Label: "Web Page",
		Icon:  "IconWorldWww",
		ConfigFields: []ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL of the page to ingest"},
		},
	}
}

func (s *urlSource) Read(ctx context.Context, cfg SourceConfig) ([]domain.RagDocument, error) {
	rawURL := stringField(cfg, "url")
	if rawURL == "" {
		return nil, fmt.Errorf("url source requires a url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "weave/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, text := stripHTML(string(body))
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("page %s has no extractable text", rawURL)
	}
	if title == "" {
		title = rawURL
	}

	return []domain.RagDocument{{
		SourceID: rawURL,
		Title:    title,
		Content:  text,
		Type:     "url",
	}}, nil
}

var (
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropRe    = regexp.MustCompile(`(?is)<(?:script|style|noscript|head)[^>]*>.*?</(?:script|style|noscript|head)>`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
	spacesRe  = regexp.MustCompile(`[ \t]{2,}`)
	entityMap = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ")
)

// stripHTML is a deliberately simple tag stripper. It keeps the visible
// text and drops scripts, styles and markup.
func stripHTML(html string) (title, text string) {
	if m := titleRe.FindStringSubmatch(html); len(m) > 1 {
		title = strings.TrimSpace(entityMap.Replace(m[1]))
	}
	html = dropRe.ReplaceAllString(html, " ")
	html = tagRe.ReplaceAllString(html, "\n")
	html = entityMap.Replace(html)

	var lines []string
	for _, line := range strings.Split(html, "\n") {
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	text = blankRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return title, text
}
