package ollama

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

// DefaultURL is used when OLLAMA_URL is not set
const DefaultURL = "http://localhost:11434"

// DefaultModel is used when the model profile does not name one
const DefaultModel = "llava"

// Provider implements the Ollama local provider
type Provider struct{}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response        *string `json:"response"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// New creates a new Ollama provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

// ValidateConfig validates the Ollama configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if config.Prompt == "" {
		return fmt.Errorf("ollama requires a prompt")
	}
	return nil
}

// ExtractText extracts text from an image using the Ollama generate API
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, image providers.Image) (providers.Extraction, error) {
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	requestJSON, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: config.Prompt,
		Images: []string{image.Base64()},
		Stream: false,
		Options: map[string]any{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimSuffix(ollamaURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
	if err != nil {
		return providers.Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	// local inference is slow, so the fallback timeout is generous
	client := &http.Client{Timeout: providers.TimeoutOr(config, 300*time.Second)}
	resp, err := client.Do(req)
	if err != nil {
		return providers.Extraction{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return providers.Extraction{}, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var ollamaResp generateResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return providers.Extraction{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if ollamaResp.Response == nil {
		return providers.Extraction{}, fmt.Errorf("no response from Ollama")
	}

	return providers.Extraction{
		Text: providers.ProcessResponse(p, *ollamaResp.Response),
		Usage: providers.UsageInfo{
			InputTokens:  ollamaResp.PromptEvalCount,
			OutputTokens: ollamaResp.EvalCount,
		},
	}, nil
}
