//go:build !tesseract

package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// Available reports whether the tesseract backend is compiled in.
func Available() bool { return false }

// Engine is never constructed in builds without the tesseract tag.
type Engine struct{}

// New always fails: this binary was built without -tags tesseract.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	return nil, fmt.Errorf("tesseract not compiled in (build with -tags tesseract): %w", recognition.ErrEngineUnavailable)
}

func (e *Engine) Kind() recognition.EngineKind { return recognition.KindTesseract }

func (e *Engine) Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error) {
	return recognition.Result{}, recognition.ErrEngineUnavailable
}

func (e *Engine) Close() error { return nil }
