package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/textlens/pkg/providers"
)

// DefaultBaseURL is the Anthropic API, overridable with ANTHROPIC_BASE_URL
const DefaultBaseURL = "https://api.anthropic.com/v1"

// Provider implements the Anthropic Claude vision provider
type Provider struct{}

// Response represents an Anthropic API response
type Response struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// New creates a new Claude provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "claude"
}

// ValidateConfig validates the Claude configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	if config.Model == "" {
		return fmt.Errorf("claude requires a model")
	}
	return nil
}

// ExtractText extracts text from an image using Claude's messages API
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, image providers.Image) (providers.Extraction, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return providers.Extraction{}, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	// Claude uses "media_type" instead of "mime_type"
	requestBody := map[string]any{
		"model":      config.Model,
		"max_tokens": 4096,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "image",
						"source": map[string]any{
							"type":       "base64",
							"media_type": image.MIMEType,
							"data":       image.Base64(),
						},
					},
					{
						"type": "text",
						"text": config.Prompt,
					},
				},
			},
		},
	}

	if config.Temperature > 0 {
		requestBody["temperature"] = config.Temperature
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(baseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
	if err != nil {
		return providers.Extraction{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := &http.Client{Timeout: providers.TimeoutOr(config, 120*time.Second)}
	resp, err := client.Do(req)
	if err != nil {
		return providers.Extraction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return providers.Extraction{}, fmt.Errorf("claude API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var claudeResp Response
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return providers.Extraction{}, err
	}

	if len(claudeResp.Content) == 0 {
		return providers.Extraction{}, fmt.Errorf("no response from Claude")
	}

	var extractedText string
	found := false
	for _, content := range claudeResp.Content {
		if content.Type == "text" {
			extractedText = content.Text
			found = true
			break
		}
	}
	if !found {
		return providers.Extraction{}, fmt.Errorf("no text content in Claude response")
	}

	return providers.Extraction{
		Text: providers.ProcessResponse(p, extractedText),
		Usage: providers.UsageInfo{
			InputTokens:  claudeResp.Usage.InputTokens,
			OutputTokens: claudeResp.Usage.OutputTokens,
		},
	}, nil
}
