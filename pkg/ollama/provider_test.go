package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/textlens/pkg/providers"
)

func TestProvider_Name(t *testing.T) {
	p := New()
	if p.Name() != "ollama" {
		t.Errorf("Expected name 'ollama', got '%s'", p.Name())
	}
}

func TestProvider_ValidateConfig(t *testing.T) {
	p := New()

	if err := p.ValidateConfig(providers.Config{Prompt: "Extract text"}); err != nil {
		t.Errorf("Expected no error for Ollama validation, got: %v", err)
	}
	if err := p.ValidateConfig(providers.Config{}); err == nil {
		t.Error("Expected error for missing prompt")
	}
}

func TestProvider_ExtractText(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		expectedText   string
		expectError    bool
		errorContains  string
	}{
		{
			name:       "successful response",
			statusCode: http.StatusOK,
			serverResponse: `{
				"model": "llava",
				"response": "This is text extracted by Ollama",
				"prompt_eval_count": 12,
				"eval_count": 7,
				"done": true
			}`,
			expectedText: "This is text extracted by Ollama",
		},
		{
			name:       "response with cleaning needed",
			statusCode: http.StatusOK,
			serverResponse: `{
				"model": "llava",
				"response": "I can see text that says: Important document content",
				"done": true
			}`,
			expectedText: "Important document content",
		},
		{
			name:       "empty transcription is not an error",
			statusCode: http.StatusOK,
			serverResponse: `{
				"model": "llava",
				"response": "",
				"done": true
			}`,
			expectedText: "",
		},
		{
			name:           "API error response",
			statusCode:     http.StatusInternalServerError,
			serverResponse: `{"error": "Model not found"}`,
			expectError:    true,
			errorContains:  "ollama API error",
		},
		{
			name:           "missing response field",
			statusCode:     http.StatusOK,
			serverResponse: `{"model": "llava", "done": true}`,
			expectError:    true,
			errorContains:  "no response from Ollama",
		},
		{
			name:           "malformed JSON",
			statusCode:     http.StatusOK,
			serverResponse: `{"invalid": json}`,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST request, got %s", r.Method)
				}
				if !strings.HasSuffix(r.URL.Path, "/api/generate") {
					t.Errorf("Expected /api/generate path, got %s", r.URL.Path)
				}

				var reqBody generateRequest
				if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
					t.Errorf("Failed to decode request body: %v", err)
				} else {
					if reqBody.Model != "llava" {
						t.Errorf("Expected model llava, got %q", reqBody.Model)
					}
					if len(reqBody.Images) != 1 || reqBody.Images[0] != "dGVzdCBpbWFnZSBkYXRh" {
						t.Errorf("Unexpected images %v", reqBody.Images)
					}
					if reqBody.Stream {
						t.Error("Expected stream to be false")
					}
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.serverResponse)); err != nil {
					t.Errorf("Failed to write response: %v", err)
				}
			}))
			defer server.Close()

			t.Setenv("OLLAMA_URL", server.URL)

			p := New()
			config := providers.Config{
				Provider:    "ollama",
				Prompt:      "Extract all text from this image",
				Temperature: 0.3,
			}
			image := providers.Image{Data: []byte("test image data"), MIMEType: "image/png"}

			result, err := p.ExtractText(context.Background(), config, image)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if result.Text != tt.expectedText {
				t.Errorf("Expected text '%s', got '%s'", tt.expectedText, result.Text)
			}
			if result.HasConfidence {
				t.Error("Ollama does not report confidence")
			}
		})
	}
}
