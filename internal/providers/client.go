// Package providers talks to the upstream AI provider. All four modalities
// go through the chat/completions surface; the API key is supplied per
// call because each model descriptor carries its own credential.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client sends chat-completion style requests to an OpenAI-compatible
// endpoint
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientConfig holds provider client configuration
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// NewClient creates a new provider client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Message is a single chat message. Content is either a plain string or an
// array of typed parts (text plus image references).
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextPart tags a text element inside a mixed content array
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ImagePart tags an image reference inside a mixed content array
type ImagePart struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// ImageURL wraps an image reference
type ImageURL struct {
	URL string `json:"url"`
}

// ImageConfig carries image-generation parameters
type ImageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// ChatRequest is the outbound request body
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Modalities  []string     `json:"modalities,omitempty"`
	ImageConfig *ImageConfig `json:"image_config,omitempty"`
}

// ChatResponse carries the raw provider body plus normalized usage counts
type ChatResponse struct {
	StatusCode   int
	Body         []byte
	InputTokens  int64
	OutputTokens int64
	Latency      time.Duration
}

// Chat sends a completion request authorized with the given API key
func (c *Client) Chat(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s",
			resp.StatusCode, truncate(respBody, 512))
	}

	usage := extractUsage(respBody)

	return &ChatResponse{
		StatusCode:   resp.StatusCode,
		Body:         respBody,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Latency:      time.Since(start),
	}, nil
}

// usageInfo holds normalized token counts from the response
type usageInfo struct {
	InputTokens  int64
	OutputTokens int64
}

// extractUsage pulls token counts out of the response body. Providers use
// either prompt/completion or input/output field names; both are handled.
// A response with no usage block yields zero counts, which billing treats
// as "skip" rather than an error.
func extractUsage(body []byte) usageInfo {
	var response struct {
		Usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
			// OpenAI format (alternative field names)
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return usageInfo{}
	}

	usage := usageInfo{
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}

	if usage.InputTokens == 0 && response.Usage.PromptTokens > 0 {
		usage.InputTokens = response.Usage.PromptTokens
	}
	if usage.OutputTokens == 0 && response.Usage.CompletionTokens > 0 {
		usage.OutputTokens = response.Usage.CompletionTokens
	}

	return usage
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
