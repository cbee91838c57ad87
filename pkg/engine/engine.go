// Package engine discovers the compiled-in recognition backends, opens them
// in preference order and exposes the active one behind a single call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/textlens/pkg/model"
	"github.com/lehigh-university-libraries/textlens/pkg/providers"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
	"github.com/lehigh-university-libraries/textlens/pkg/tesseract"
)

// Config selects and configures backends.
type Config struct {
	// Engines is the preference order. Empty means every compiled-in kind in
	// default priority.
	Engines   []recognition.EngineKind
	ModelPath string
	Tesseract tesseract.Options
	// Providers resolves the model artifact's provider. Nil means
	// model.DefaultRegistry().
	Providers *providers.Registry
}

// Factory opens one kind of backend.
type Factory struct {
	Kind recognition.EngineKind
	Open func(ctx context.Context, cfg Config, logger *slog.Logger) (recognition.Backend, error)
}

// Factories returns the backends compiled into this binary, learned model
// first.
func Factories() []Factory {
	fs := []Factory{{Kind: recognition.KindModel, Open: openModel}}
	if tesseract.Available() {
		fs = append(fs, Factory{Kind: recognition.KindTesseract, Open: openTesseract})
	}
	return fs
}

func openModel(_ context.Context, cfg Config, logger *slog.Logger) (recognition.Backend, error) {
	path := cfg.ModelPath
	if path == "" {
		path = model.DefaultPath
	}
	e, err := model.New(path, cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func openTesseract(_ context.Context, cfg Config, logger *slog.Logger) (recognition.Backend, error) {
	e, err := tesseract.New(cfg.Tesseract, logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Status summarizes which engines are usable.
type Status string

const (
	StatusReady         Status = "ready"
	StatusTesseractOnly Status = "tesseract-only"
	StatusModelOnly     Status = "model-only"
	StatusNone          Status = "no-engine-available"
)

// Registry holds the opened backends. It is read-only after New returns and
// safe for concurrent use.
type Registry struct {
	backends []recognition.Backend
	active   recognition.Backend
	causes   map[recognition.EngineKind]error
}

// New opens the compiled-in backends selected by cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Registry, error) {
	return NewWithFactories(ctx, cfg, logger, Factories()...)
}

// NewWithFactories opens backends from an explicit factory list. It fails
// with ErrEngineUnavailable when nothing could be opened, or with the
// InitError itself when a single pinned engine failed.
func NewWithFactories(ctx context.Context, cfg Config, logger *slog.Logger, factories ...Factory) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	if len(factories) == 0 {
		return nil, fmt.Errorf("%w: no backends compiled in", recognition.ErrEngineUnavailable)
	}

	byKind := make(map[recognition.EngineKind]Factory, len(factories))
	var order []recognition.EngineKind
	for _, f := range factories {
		if _, dup := byKind[f.Kind]; dup {
			continue
		}
		byKind[f.Kind] = f
		order = append(order, f.Kind)
	}
	if len(cfg.Engines) > 0 {
		order = cfg.Engines
	}

	r := &Registry{causes: make(map[recognition.EngineKind]error)}
	var errs []error
	for _, kind := range order {
		f, ok := byKind[kind]
		if !ok {
			err := fmt.Errorf("%s engine not compiled in: %w", kind, recognition.ErrEngineUnavailable)
			r.causes[kind] = err
			errs = append(errs, err)
			logger.Warn("engine unavailable", "engine", kind)
			continue
		}
		b, err := f.Open(ctx, cfg, logger)
		if err != nil {
			r.causes[kind] = err
			errs = append(errs, err)
			logger.Warn("engine failed to start", "engine", kind, "err", err)
			continue
		}
		logger.Debug("engine opened", "engine", kind)
		r.backends = append(r.backends, b)
	}

	if len(r.backends) == 0 {
		var initErr *recognition.InitError
		if len(order) == 1 && errors.As(errs[0], &initErr) {
			return nil, errs[0]
		}
		return nil, fmt.Errorf("%w: %w", recognition.ErrEngineUnavailable, errors.Join(errs...))
	}

	r.active = r.backends[0]
	logger.Info("engine selected", "engine", r.active.Kind(), "status", r.Status())
	return r, nil
}

// ActiveEngine returns the backend every call goes to.
func (r *Registry) ActiveEngine() recognition.Backend { return r.active }

// ActiveKind returns the kind of the active backend.
func (r *Registry) ActiveKind() recognition.EngineKind { return r.active.Kind() }

// IsAvailable reports whether a backend of kind was opened.
func (r *Registry) IsAvailable(kind recognition.EngineKind) bool {
	for _, b := range r.backends {
		if b.Kind() == kind {
			return true
		}
	}
	return false
}

// Kinds lists the opened backends in preference order.
func (r *Registry) Kinds() []recognition.EngineKind {
	kinds := make([]recognition.EngineKind, len(r.backends))
	for i, b := range r.backends {
		kinds[i] = b.Kind()
	}
	return kinds
}

// Cause returns why kind is not available, or nil.
func (r *Registry) Cause(kind recognition.EngineKind) error {
	return r.causes[kind]
}

// Status reports which of the two engine families are usable.
func (r *Registry) Status() Status {
	return StatusOf(r.IsAvailable(recognition.KindModel), r.IsAvailable(recognition.KindTesseract))
}

// StatusOf maps engine availability to a Status.
func StatusOf(modelOK, tesseractOK bool) Status {
	switch {
	case modelOK && tesseractOK:
		return StatusReady
	case modelOK:
		return StatusModelOnly
	case tesseractOK:
		return StatusTesseractOnly
	default:
		return StatusNone
	}
}

// Recognize runs the active backend and returns a normalized result: Elapsed
// measured here, Engine stamped, confidences in [0,1]. Backend failures
// outside the error taxonomy come back as *recognition.RecognitionError.
func (r *Registry) Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error) {
	if img == nil {
		return recognition.Result{}, &recognition.DecodeError{Err: errors.New("no image")}
	}
	kind := r.active.Kind()

	start := time.Now()
	res, err := r.active.Recognize(ctx, img)
	elapsed := time.Since(start)

	if err != nil {
		if !recognition.IsTyped(err) {
			err = &recognition.RecognitionError{Kind: kind, Err: err}
		}
		return recognition.Result{}, err
	}

	res = res.Normalized()
	res.Elapsed = elapsed
	res.Engine = kind
	return res, nil
}

// Close closes every opened backend.
func (r *Registry) Close() error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.Kind(), err))
		}
	}
	return errors.Join(errs...)
}
