package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// DefaultPath is where the model artifact is looked for when
// TEXTLENS_MODEL_PATH is not set.
const DefaultPath = "models/textlens-model.yaml"

// DefaultPrompt is sent when the profile does not carry its own.
const DefaultPrompt = "Transcribe all text in this image exactly as it appears. " +
	"Preserve line breaks. Return only the transcription, with no commentary."

// DefaultConfidence is the baseline for providers that report no native score.
const DefaultConfidence = 0.85

// Profile is the model artifact: which vision model performs recognition and
// how it is prompted. It is loaded once and never modified afterwards.
type Profile struct {
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Prompt      string  `yaml:"prompt"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
	// Confidence is reported for non-empty text when the provider has no
	// score of its own.
	Confidence *float64 `yaml:"confidence"`

	timeout time.Duration
}

// LoadProfile reads and validates the artifact at path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	p.Provider = strings.ToLower(strings.TrimSpace(p.Provider))
	if p.Provider == "" {
		return errors.New("model artifact: provider is required")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("model artifact: temperature %v outside [0,2]", p.Temperature)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return fmt.Errorf("model artifact: confidence %v outside [0,1]", *p.Confidence)
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("model artifact: timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("model artifact: timeout must be positive")
		}
		p.timeout = d
	}
	if strings.TrimSpace(p.Prompt) == "" {
		p.Prompt = DefaultPrompt
	}
	if p.Name == "" {
		p.Name = p.Provider
		if p.Model != "" {
			p.Name += "/" + p.Model
		}
	}
	return nil
}

// TimeoutDuration is the parsed per-call timeout, zero when unset.
func (p *Profile) TimeoutDuration() time.Duration {
	return p.timeout
}

// BaselineConfidence returns the configured baseline or DefaultConfidence.
func (p *Profile) BaselineConfidence() float64 {
	if p.Confidence == nil {
		return DefaultConfidence
	}
	return *p.Confidence
}
