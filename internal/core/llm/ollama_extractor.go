package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/precisesoft/DocQueryAI/internal/core"
)

// OllamaExtractor calls Ollama's native generate API for structured vision
// extraction. The native surface accepts base64 page images plus a JSON
// schema passed as the `format` grammar, which the OpenAI-compatible layer
// does not expose.
type OllamaExtractor struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaExtractor builds a client for the native API, e.g.
// http://localhost:11434/api. Extraction calls can include model warmup, so
// the timeout is generous.
func NewOllamaExtractor(baseURL string) *OllamaExtractor {
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	return &OllamaExtractor{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Minute},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Format  map[string]any  `json:"format,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// Extract runs one non-streaming structured generation and returns the raw
// model output, expected to be a JSON document conforming to req.Format.
func (c *OllamaExtractor) Extract(ctx context.Context, req core.ExtractRequest) (string, error) {
	payload := generateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Images:  req.Images,
		Format:  req.Format,
		Stream:  false,
		Options: generateOptions{Temperature: req.Temperature},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call extraction model: %w: %v", core.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction model returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("bad json from extraction model: %w", err)
	}
	return parsed.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ core.ExtractionModel = (*OllamaExtractor)(nil)
