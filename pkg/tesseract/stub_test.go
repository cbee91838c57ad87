//go:build !tesseract

package tesseract

import (
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

func TestStubUnavailable(t *testing.T) {
	if Available() {
		t.Fatal("Available() should be false without the tesseract tag")
	}
	e, err := New(Options{}, nil)
	if e != nil {
		t.Error("expected nil engine")
	}
	if !errors.Is(err, recognition.ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable, got %v", err)
	}
}
