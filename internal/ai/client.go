package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────
// Completer — the single seam between pipelines and the provider
// ─────────────────────────────────────────────────────────────

// Completer is the text generation interface the pipelines depend on.
// Services receive this interface rather than a concrete client so tests
// can substitute a fake with scripted responses.
type Completer interface {
	// GenerateText produces a completion for a system + user prompt pair.
	GenerateText(ctx context.Context, system, user string) (string, error)
	// GenerateWithAttachment sends a prompt plus inline binary data
	// (audio, image, pdf) for multimodal processing.
	GenerateWithAttachment(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
	// GenerateGrounded asks the provider to process a remote resource by
	// URL (web pages, video links) without downloading it locally.
	GenerateGrounded(ctx context.Context, prompt, url string) (string, error)
}

// Config holds provider connection settings. Zero values fall back to
// env vars and built-in defaults.
type Config struct {
	BaseURL    string `yaml:"baseUrl"`
	APIKey     string `yaml:"apiKey"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeoutSec"`
	MaxRetries int    `yaml:"maxRetries"`
}

// Client is an HTTP Completer speaking the chat-completions protocol.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
}

// NewClient creates a Client from cfg, filling gaps from the environment.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("WEAVE_API_KEY"))
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key: set WEAVE_API_KEY or config apiKey")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("WEAVE_API_BASE")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 120
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *imageURLField `json:"image_url,omitempty"`
}

type imageURLField struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GenerateText(ctx context.Context, system, user string) (string, error) {
	msgs := []chatMessage{}
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})
	return c.complete(ctx, msgs)
}

func (c *Client) GenerateWithAttachment(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	msgs := []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURLField{URL: dataURL}},
		},
	}}
	return c.complete(ctx, msgs)
}

func (c *Client) GenerateGrounded(ctx context.Context, prompt, url string) (string, error) {
	// Provider-side URL grounding: the resource reference travels in the
	// prompt, the provider fetches it.
	return c.GenerateText(ctx, "", prompt+"\n\nResource: "+url)
}

func (c *Client) complete(ctx context.Context, msgs []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("completion request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// 429 and 5xx are transient, retry; anything else 4xx is final
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(respBody, 200))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(respBody, 200))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("provider returned no choices")
		}
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}
	return "", lastErr
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
