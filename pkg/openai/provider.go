package openai

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

// DefaultBaseURL is the public OpenAI API, overridable with OPENAI_BASE_URL
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider implements the OpenAI vision provider
type Provider struct{}

// Response represents an OpenAI API response
type Response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// New creates a new OpenAI provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// ValidateConfig validates the OpenAI configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if config.Model == "" {
		return fmt.Errorf("openai requires a model")
	}
	return nil
}

// ExtractText extracts text from an image using OpenAI's chat completions API
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, image providers.Image) (providers.Extraction, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return providers.Extraction{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	requestJSON, err := json.Marshal(chatRequest{
		Model: config.Model,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: config.Prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", image.MIMEType, image.Base64())}},
				},
			},
		},
		Temperature: config.Temperature,
	})
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
	if err != nil {
		return providers.Extraction{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: providers.TimeoutOr(config, 120*time.Second)}
	resp, err := client.Do(req)
	if err != nil {
		return providers.Extraction{}, err
	}
	defer resp.Body.Close()

	// Read response body once for both parsing and error logging
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return providers.Extraction{}, fmt.Errorf("openAI API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var openaiResp Response
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(body))
	}

	if len(openaiResp.Choices) == 0 {
		return providers.Extraction{}, fmt.Errorf("no response from OpenAI - body: %s", providers.TruncateBody(body))
	}

	return providers.Extraction{
		Text: providers.ProcessResponse(p, openaiResp.Choices[0].Message.Content),
		Usage: providers.UsageInfo{
			InputTokens:  openaiResp.Usage.PromptTokens,
			OutputTokens: openaiResp.Usage.CompletionTokens,
		},
	}, nil
}
