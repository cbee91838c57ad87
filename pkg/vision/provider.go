package vision

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/textlens/pkg/providers"
)

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...option.ClientOption) (*visionpb.BatchAnnotateImagesResponse, error)

// Provider implements Google Cloud Vision document text detection
type Provider struct {
	annotate annotateFunc
}

// New creates a new Google Cloud Vision provider
func New() *Provider {
	return &Provider{annotate: batchAnnotate}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "vision"
}

// ValidateConfig checks that some form of Google credentials is available
func (p *Provider) ValidateConfig(config providers.Config) error {
	if os.Getenv("GOOGLE_VISION_API_KEY") == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return fmt.Errorf("GOOGLE_VISION_API_KEY or GOOGLE_APPLICATION_CREDENTIALS must be set")
	}
	return nil
}

// CleanResponse keeps Vision output as-is apart from surrounding whitespace.
// Vision is not a chat model so there is no preamble to strip.
func (p *Provider) CleanResponse(response string) string {
	return strings.TrimSpace(response)
}

// ExtractText runs DOCUMENT_TEXT_DETECTION on the image
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, image providers.Image) (providers.Extraction, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	var opts []option.ClientOption
	if key := os.Getenv("GOOGLE_VISION_API_KEY"); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image.Data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	if hints := languageHints(); len(hints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: hints}
	}

	annotate := p.annotate
	if annotate == nil {
		annotate = batchAnnotate
	}
	resp, err := annotate(ctx, req, opts...)
	if err != nil {
		return providers.Extraction{}, fmt.Errorf("google vision API error: %w", err)
	}

	out, err := extraction(resp)
	if err != nil {
		return providers.Extraction{}, err
	}
	out.Text = providers.ProcessResponse(p, out.Text)
	return out, nil
}

func batchAnnotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...option.ClientOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating image annotator client: %w", err)
	}
	defer client.Close()
	return client.BatchAnnotateImages(ctx, req)
}

// extraction maps the first annotate response onto an Extraction. Page
// confidences are averaged; Vision already reports them on the 0-1 scale.
func extraction(resp *visionpb.BatchAnnotateImagesResponse) (providers.Extraction, error) {
	if resp == nil || len(resp.GetResponses()) == 0 {
		return providers.Extraction{}, fmt.Errorf("no response from Google Vision")
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return providers.Extraction{}, fmt.Errorf("google vision error %d: %s", st.GetCode(), st.GetMessage())
	}

	doc := r.GetFullTextAnnotation()
	if doc == nil {
		return providers.Extraction{}, nil
	}

	out := providers.Extraction{Text: doc.GetText()}
	pages := doc.GetPages()
	if len(pages) > 0 {
		var sum float64
		for _, page := range pages {
			sum += float64(page.GetConfidence())
		}
		out.Confidence = sum / float64(len(pages))
		out.HasConfidence = true
	}
	return out, nil
}

func languageHints() []string {
	raw := os.Getenv("GOOGLE_VISION_LANGUAGE_HINTS")
	if raw == "" {
		return nil
	}
	var hints []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hints = append(hints, h)
		}
	}
	return hints
}
