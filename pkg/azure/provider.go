package azure

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

// Provider implements the Azure Computer Vision Read provider
type Provider struct {
	// PollInterval is the delay between operation status checks
	PollInterval time.Duration
	// MaxPolls bounds how long an analysis is waited for
	MaxPolls int
}

type word struct {
	Text       string  `json:"text"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

type line struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Words   []word `json:"words"`
}

type readResponse struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		// v3.2
		ReadResults []struct {
			Lines []line `json:"lines"`
		} `json:"readResults"`
		// v4.0
		Pages []struct {
			Lines []line `json:"lines"`
			Words []word `json:"words"`
		} `json:"pages"`
	} `json:"analyzeResult"`
}

// New creates a new Azure provider
func New() *Provider {
	return &Provider{PollInterval: time.Second, MaxPolls: 30}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "azure"
}

// ValidateConfig validates the Azure configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	endpoint := os.Getenv("AZURE_OCR_ENDPOINT")
	apiKey := os.Getenv("AZURE_OCR_API_KEY")

	if endpoint == "" || apiKey == "" {
		return fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}
	return nil
}

// ExtractText extracts text from an image using the Azure Read API. Azure
// reports a 0-1 confidence for each word; the extraction carries their mean.
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, image providers.Image) (providers.Extraction, error) {
	endpoint := os.Getenv("AZURE_OCR_ENDPOINT")
	apiKey := os.Getenv("AZURE_OCR_API_KEY")

	if endpoint == "" || apiKey == "" {
		return providers.Extraction{}, fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}

	readURL := fmt.Sprintf("%s/vision/v3.2/read/analyze", strings.TrimSuffix(endpoint, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, readURL, bytes.NewReader(image.Data))
	if err != nil {
		return providers.Extraction{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	client := &http.Client{Timeout: providers.TimeoutOr(config, 60*time.Second)}
	resp, err := client.Do(req)
	if err != nil {
		return providers.Extraction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return providers.Extraction{}, fmt.Errorf("azure OCR API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return providers.Extraction{}, fmt.Errorf("no operation location returned from Azure OCR")
	}

	return p.poll(ctx, client, operationURL, apiKey)
}

func (p *Provider) poll(ctx context.Context, client *http.Client, operationURL, apiKey string) (providers.Extraction, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	maxPolls := p.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}

	for attempts := 0; attempts < maxPolls; attempts++ {
		select {
		case <-ctx.Done():
			return providers.Extraction{}, ctx.Err()
		case <-time.After(interval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return providers.Extraction{}, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return providers.Extraction{}, err
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			continue
		}

		var result readResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return providers.Extraction{}, err
		}

		switch result.Status {
		case "succeeded":
			return extraction(result), nil
		case "failed":
			return providers.Extraction{}, fmt.Errorf("azure OCR analysis failed")
		case "running", "notStarted":
		default:
			return providers.Extraction{}, fmt.Errorf("invalid response format from Azure OCR")
		}
	}

	return providers.Extraction{}, fmt.Errorf("azure OCR operation timed out")
}

// extraction flattens a v3.2 or v4.0 read result
func extraction(result readResponse) providers.Extraction {
	if result.AnalyzeResult == nil {
		return providers.Extraction{}
	}

	var texts []string
	var sum float64
	var count int
	addLines := func(lines []line) {
		for _, l := range lines {
			if l.Text != "" {
				texts = append(texts, l.Text)
			} else if l.Content != "" {
				texts = append(texts, l.Content)
			}
			for _, w := range l.Words {
				sum += w.Confidence
				count++
			}
		}
	}

	if len(result.AnalyzeResult.ReadResults) > 0 {
		for _, rr := range result.AnalyzeResult.ReadResults {
			addLines(rr.Lines)
		}
	} else {
		for _, page := range result.AnalyzeResult.Pages {
			addLines(page.Lines)
			for _, w := range page.Words {
				sum += w.Confidence
				count++
			}
		}
	}

	out := providers.Extraction{Text: strings.Join(texts, "\n")}
	if count > 0 {
		out.Confidence = sum / float64(count)
		out.HasConfidence = true
	}
	return out
}
