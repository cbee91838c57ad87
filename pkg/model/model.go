// Package model is the learned-model backend. The model artifact is a YAML
// profile naming a hosted or local vision model; recognition is delegated to
// that model through pkg/providers.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/azure"
	"github.com/lehigh-university-libraries/textlens/pkg/claude"
	"github.com/lehigh-university-libraries/textlens/pkg/gemini"
	"github.com/lehigh-university-libraries/textlens/pkg/ollama"
	"github.com/lehigh-university-libraries/textlens/pkg/openai"
	"github.com/lehigh-university-libraries/textlens/pkg/providers"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
	"github.com/lehigh-university-libraries/textlens/pkg/vision"
)

// DefaultRegistry returns a registry holding every built-in provider.
func DefaultRegistry() *providers.Registry {
	return providers.NewRegistry(
		openai.New(),
		claude.New(),
		gemini.New(),
		azure.New(),
		ollama.New(),
		vision.New(),
	)
}

// Engine implements recognition.Backend on top of a vision model provider.
type Engine struct {
	profile  *Profile
	provider providers.Provider
	config   providers.Config
	logger   *slog.Logger
}

// New loads the artifact at path and resolves its provider in reg. Every
// failure is an *recognition.InitError; nothing is deferred to the first
// call.
func New(path string, reg *providers.Registry, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	profile, err := LoadProfile(path)
	if err != nil {
		return nil, &recognition.InitError{Kind: recognition.KindModel, Err: err}
	}
	return NewFromProfile(profile, reg, logger)
}

// NewFromProfile builds an engine from an already loaded profile.
func NewFromProfile(profile *Profile, reg *providers.Registry, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider, err := reg.Get(profile.Provider)
	if err != nil {
		return nil, &recognition.InitError{Kind: recognition.KindModel, Err: err}
	}

	config := providers.Config{
		Provider:    profile.Provider,
		Model:       profile.Model,
		Prompt:      profile.Prompt,
		Temperature: profile.Temperature,
		Timeout:     profile.TimeoutDuration(),
	}
	if err := provider.ValidateConfig(config); err != nil {
		return nil, &recognition.InitError{Kind: recognition.KindModel, Err: utils.MaskSensitiveError(err)}
	}

	e := &Engine{
		profile:  profile,
		provider: provider,
		config:   config,
		logger:   logger.With("component", "model", "profile", profile.Name),
	}
	e.logger.Info("model artifact loaded", "provider", profile.Provider, "model", profile.Model)
	return e, nil
}

func (e *Engine) Kind() recognition.EngineKind { return recognition.KindModel }

// Profile returns the loaded profile. Callers must not modify it.
func (e *Engine) Profile() *Profile { return e.profile }

func (e *Engine) Close() error { return nil }

// Recognize sends img to the provider as PNG and maps the transcription
// onto a Result.
func (e *Engine) Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognition.Result{}, err
	}

	data, err := img.EncodePNG()
	if err != nil {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindModel, Err: err}
	}

	out, err := e.provider.ExtractText(ctx, e.config, providers.Image{Data: data, MIMEType: "image/png"})
	if err != nil {
		if ctx.Err() != nil {
			return recognition.Result{}, ctx.Err()
		}
		return recognition.Result{}, &recognition.RecognitionError{
			Kind: recognition.KindModel,
			Err:  fmt.Errorf("%s: %w", e.provider.Name(), utils.MaskSensitiveError(err)),
		}
	}

	text := strings.TrimSpace(out.Text)
	res := recognition.Result{Text: text}
	switch {
	case text == "":
		res.Confidence = 0
	case out.HasConfidence:
		res.Confidence = recognition.NormalizeConfidence(out.Confidence, recognition.ScaleUnit)
	default:
		res.Confidence = e.profile.BaselineConfidence()
	}

	e.logger.Debug("recognized",
		"source", img.Source(),
		"chars", len(text),
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
	)
	return res, nil
}
