// Package recognition defines the contract every OCR backend implements: the
// image buffer handed in, the result handed back, the typed failures, and the
// single confidence scale used at the boundary.
package recognition

import (
	"context"
	"math"
	"time"
)

// BoundingBox is a recognized word and its position in pixel coordinates.
type BoundingBox struct {
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	X          int     `json:"x" yaml:"x"`
	Y          int     `json:"y" yaml:"y"`
	Width      int     `json:"width" yaml:"width"`
	Height     int     `json:"height" yaml:"height"`
}

// Result is the outcome of one successful recognition call.
// Confidence is always in [0,1] once it leaves the engine registry.
type Result struct {
	Text       string        `json:"text" yaml:"text"`
	Confidence float64       `json:"confidence" yaml:"confidence"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	Engine     EngineKind    `json:"engine,omitempty" yaml:"engine,omitempty"`
	Boxes      []BoundingBox `json:"boxes,omitempty" yaml:"boxes,omitempty"`
}

// Backend is implemented by every recognition engine.
type Backend interface {
	// Kind identifies the backend.
	Kind() EngineKind
	// Recognize extracts text from img. An image without text yields an empty
	// Result with zero confidence rather than an error.
	Recognize(ctx context.Context, img *Image) (Result, error)
	// Close releases resources held since startup.
	Close() error
}

// Scale describes the range a native engine reports confidence in.
type Scale int

const (
	// ScaleUnit is the canonical [0,1] range.
	ScaleUnit Scale = iota
	// ScalePercent is a 0-100 range, as reported by tesseract.
	ScalePercent
)

// NormalizeConfidence maps a native confidence value into [0,1].
// NaN and infinities map to 0; out of range values are clamped.
func NormalizeConfidence(v float64, scale Scale) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if scale == ScalePercent {
		v /= 100
	}
	return math.Max(0, math.Min(1, v))
}

// Normalized returns a copy of r with the result and box confidences clamped
// to [0,1].
func (r Result) Normalized() Result {
	r.Confidence = NormalizeConfidence(r.Confidence, ScaleUnit)
	if len(r.Boxes) > 0 {
		boxes := make([]BoundingBox, len(r.Boxes))
		for i, b := range r.Boxes {
			b.Confidence = NormalizeConfidence(b.Confidence, ScaleUnit)
			boxes[i] = b
		}
		r.Boxes = boxes
	}
	return r
}
