package vision

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/rpc/status"

	"github.com/lehigh-university-libraries/textlens/pkg/providers"
)

func TestProvider_ValidateConfig(t *testing.T) {
	t.Setenv("GOOGLE_VISION_API_KEY", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if err := New().ValidateConfig(providers.Config{}); err == nil {
		t.Error("expected error without credentials")
	}
	t.Setenv("GOOGLE_VISION_API_KEY", "key")
	if err := New().ValidateConfig(providers.Config{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProvider_ExtractText(t *testing.T) {
	tests := []struct {
		name               string
		resp               *visionpb.BatchAnnotateImagesResponse
		callErr            error
		expectedText       string
		expectedConfidence float64
		expectConfidence   bool
		errorContains      string
	}{
		{
			name: "document text with page confidence",
			resp: &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{
					FullTextAnnotation: &visionpb.TextAnnotation{
						Text:  "HELLO\n",
						Pages: []*visionpb.Page{{Confidence: 0.5}, {Confidence: 1}},
					},
				}},
			},
			expectedText:       "HELLO",
			expectedConfidence: 0.75,
			expectConfidence:   true,
		},
		{
			name: "no text found",
			resp: &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{}},
			},
		},
		{
			name: "per-image error",
			resp: &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{
					Error: &status.Status{Code: 3, Message: "bad image"},
				}},
			},
			errorContains: "bad image",
		},
		{
			name:          "empty batch",
			resp:          &visionpb.BatchAnnotateImagesResponse{},
			errorContains: "no response from Google Vision",
		},
		{
			name:          "rpc failure",
			callErr:       errors.New("permission denied"),
			errorContains: "google vision API error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_VISION_API_KEY", "key")
			t.Setenv("GOOGLE_VISION_LANGUAGE_HINTS", "en, la")

			var got *visionpb.BatchAnnotateImagesRequest
			p := &Provider{annotate: func(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...option.ClientOption) (*visionpb.BatchAnnotateImagesResponse, error) {
				got = req
				if len(opts) != 1 {
					t.Errorf("expected api key client option, got %d options", len(opts))
				}
				return tt.resp, tt.callErr
			}}

			result, err := p.ExtractText(context.Background(), providers.Config{}, providers.Image{Data: []byte("png"), MIMEType: "image/png"})

			if got == nil || len(got.Requests) != 1 {
				t.Fatal("expected exactly one annotate request")
			}
			if f := got.Requests[0].GetFeatures(); len(f) != 1 || f[0].GetType() != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
				t.Errorf("unexpected features %v", f)
			}
			if hints := got.Requests[0].GetImageContext().GetLanguageHints(); !slices.Equal(hints, []string{"en", "la"}) {
				t.Errorf("language hints = %v", hints)
			}

			if tt.errorContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Text != tt.expectedText {
				t.Errorf("Text = %q, want %q", result.Text, tt.expectedText)
			}
			if result.HasConfidence != tt.expectConfidence {
				t.Errorf("HasConfidence = %v, want %v", result.HasConfidence, tt.expectConfidence)
			}
			if math.Abs(result.Confidence-tt.expectedConfidence) > 1e-6 {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.expectedConfidence)
			}
		})
	}
}
