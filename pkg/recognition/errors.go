package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode marks an image that could not be decoded. Recognition is
	// never attempted for such an image.
	ErrImageDecode = errors.New("unsupported or corrupt image")
	// ErrEngineUnavailable means no backend is compiled in or none could start.
	ErrEngineUnavailable = errors.New("no OCR engine available")
	// ErrEngineInit marks a backend whose startup failed (missing model artifact,
	// missing native library, ...).
	ErrEngineInit = errors.New("OCR engine initialization failed")
	// ErrRecognition marks a backend failure during a single call.
	ErrRecognition = errors.New("recognition failed")
	// ErrSuperseded is attached to requests replaced by a newer one. It is
	// never delivered to a sink.
	ErrSuperseded = errors.New("request superseded")
)

// DecodeError reports an image that failed to decode.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrImageDecode }

// InitError reports a backend that could not be started.
type InitError struct {
	Kind EngineKind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s engine: %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrEngineInit }

// RecognitionError reports a backend-specific failure during a call.
type RecognitionError struct {
	Kind EngineKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("recognition: %v", e.Err)
	}
	return fmt.Sprintf("%s recognition: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool { return target == ErrRecognition }

// IsTyped reports whether err already belongs to the error taxonomy.
func IsTyped(err error) bool {
	return errors.Is(err, ErrImageDecode) ||
		errors.Is(err, ErrEngineUnavailable) ||
		errors.Is(err, ErrEngineInit) ||
		errors.Is(err, ErrRecognition) ||
		errors.Is(err, ErrSuperseded)
}
