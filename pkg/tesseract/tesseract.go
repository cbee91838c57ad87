//go:build tesseract

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// Available reports whether the tesseract backend is compiled in.
func Available() bool { return true }

// Engine implements recognition.Backend with a fresh gosseract client per
// call. A client is not safe for concurrent use, so none is shared.
type Engine struct {
	opts          Options
	logger        *slog.Logger
	clientFactory func() *gosseract.Client
}

// New constructs the engine and probes the library and language data once,
// so a broken install fails at startup instead of on the first image.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		opts:          opts,
		logger:        logger.With("component", "tesseract"),
		clientFactory: gosseract.NewClient,
	}
	if err := e.probe(); err != nil {
		return nil, &recognition.InitError{Kind: recognition.KindTesseract, Err: err}
	}
	return e, nil
}

func (e *Engine) Kind() recognition.EngineKind { return recognition.KindTesseract }

func (e *Engine) Close() error { return nil }

// Recognize runs tesseract over img. The native call cannot be interrupted,
// so ctx is only checked before it starts.
func (e *Engine) Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognition.Result{}, err
	}

	data, err := img.EncodePNG()
	if err != nil {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindTesseract, Err: err}
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c); err != nil {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindTesseract, Err: err}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindTesseract, Err: fmt.Errorf("set image: %w", err)}
	}

	text, err := c.Text()
	if err != nil {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindTesseract, Err: fmt.Errorf("recognize text: %w", err)}
	}
	plain := strings.TrimSpace(text)
	if plain == "" {
		return recognition.Result{}, nil
	}

	boxes, avg := extractWords(c)
	e.logger.Debug("recognized", "source", img.Source(), "words", len(boxes), "confidence", avg)

	return recognition.Result{
		Text:       plain,
		Confidence: avg,
		Boxes:      boxes,
	}, nil
}

func (e *Engine) configure(c *gosseract.Client) error {
	if err := c.SetLanguage(e.opts.languages()...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if e.opts.PageSegMode >= 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
			return fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if e.opts.Whitelist != "" {
		if err := c.SetWhitelist(e.opts.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	return nil
}

// probe runs the configured client over a blank image. Tesseract loads its
// language data lazily, so this is the earliest point a missing
// traineddata file shows up.
func (e *Engine) probe() error {
	c := e.clientFactory()
	defer c.Close()

	e.logger.Debug("probing tesseract", "version", c.Version(), "languages", e.opts.languages())

	if err := e.configure(c); err != nil {
		return err
	}
	blank := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range blank.Pix {
		blank.Pix[i] = color.White.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		return err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return err
	}
	if _, err := c.Text(); err != nil {
		return fmt.Errorf("tesseract probe: %w", err)
	}
	return nil
}

// extractWords returns word boxes with confidences scaled to [0,1] and
// their mean.
func extractWords(c *gosseract.Client) ([]recognition.BoundingBox, float64) {
	raw, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(raw) == 0 {
		return nil, 0
	}
	boxes := make([]recognition.BoundingBox, 0, len(raw))
	var sum float64
	for _, b := range raw {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		conf := recognition.NormalizeConfidence(b.Confidence, recognition.ScalePercent)
		sum += conf
		boxes = append(boxes, recognition.BoundingBox{
			Text:       word,
			Confidence: conf,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
		})
	}
	if len(boxes) == 0 {
		return nil, 0
	}
	return boxes, sum / float64(len(boxes))
}
