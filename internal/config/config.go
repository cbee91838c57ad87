// Package config reads textlens settings from the environment. The CLI loads
// .env first, so values there count as environment too.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/textlens/pkg/engine"
	"github.com/lehigh-university-libraries/textlens/pkg/model"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
	"github.com/lehigh-university-libraries/textlens/pkg/tesseract"
)

const (
	DefaultEngines  = "model,tesseract"
	DefaultWorkers  = 2
	DefaultTimeout  = 2 * time.Minute
	DefaultLogLevel = "INFO"
)

// Config is the resolved runtime configuration.
type Config struct {
	Engines     []recognition.EngineKind
	ModelPath   string
	Languages   []string
	PageSegMode int
	Whitelist   string
	Workers     int
	Timeout     time.Duration
	DatabaseURL string
	LogLevel    string
}

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load reads every key, applies defaults and validates the result.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ModelPath:   model.DefaultPath,
		Languages:   []string{tesseract.DefaultLanguage},
		PageSegMode: -1,
		Workers:     DefaultWorkers,
		Timeout:     DefaultTimeout,
		LogLevel:    DefaultLogLevel,
	}

	engines := DefaultEngines
	overrideString(l.Lookup, "TEXTLENS_ENGINES", &engines)
	kinds, err := recognition.ParseKinds(engines)
	if err != nil {
		return Config{}, fmt.Errorf("config: TEXTLENS_ENGINES: %w", err)
	}
	cfg.Engines = kinds

	overrideString(l.Lookup, "TEXTLENS_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "TESSERACT_WHITELIST", &cfg.Whitelist)
	overrideString(l.Lookup, "DATABASE_URL", &cfg.DatabaseURL)
	overrideString(l.Lookup, "LOG_LEVEL", &cfg.LogLevel)

	if raw, ok := lookup(l.Lookup, "TESSERACT_LANGUAGES"); ok {
		cfg.Languages = tesseract.ParseLanguages(raw)
	}
	if err := overrideInt(l.Lookup, "TESSERACT_PSM", &cfg.PageSegMode); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "TEXTLENS_WORKERS", &cfg.Workers); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup(l.Lookup, "TEXTLENS_TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: TEXTLENS_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges the engines rely on.
func (c Config) Validate() error {
	if len(c.Engines) == 0 {
		return fmt.Errorf("config: no engines configured")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: TEXTLENS_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: TEXTLENS_TIMEOUT must not be negative, got %s", c.Timeout)
	}
	if c.PageSegMode > 13 {
		return fmt.Errorf("config: TESSERACT_PSM must be between 0 and 13, got %d", c.PageSegMode)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return nil
}

// ParseLogLevel maps DEBUG, INFO, WARN or ERROR, in any case, to a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// EngineConfig is the registry configuration. A non-empty only pins the
// registry to that single kind.
func (c Config) EngineConfig(only recognition.EngineKind) engine.Config {
	kinds := c.Engines
	if only != "" {
		kinds = []recognition.EngineKind{only}
	}
	return engine.Config{
		Engines:   kinds,
		ModelPath: c.ModelPath,
		Tesseract: tesseract.Options{
			Languages:   c.Languages,
			PageSegMode: c.PageSegMode,
			Whitelist:   c.Whitelist,
		},
	}
}

func lookup(fn func(string) (string, bool), key string) (string, bool) {
	value, ok := fn(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func overrideString(fn func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(fn, key); ok {
		*target = value
	}
}

func overrideInt(fn func(string) (string, bool), key string, target *int) error {
	raw, ok := lookup(fn, key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = n
	return nil
}
