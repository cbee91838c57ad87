package utils

import (
	"errors"
	"log/slog"
	"os"
	"regexp"
)

const masked = "***MASKED***"

// secretRules are applied in order by MaskSensitiveData.
var secretRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// API keys in URL query parameters: key=, api_key=, apiKey=, api-key=, apikey=
	{regexp.MustCompile(`([?&])(api[_\-]?[kK]ey|key)=([^&\s"]+)`), `${1}${2}=` + masked},
	{regexp.MustCompile(`Bearer\s+([A-Za-z0-9_\-\.]+)`), `Bearer ` + masked},
	// Azure
	{regexp.MustCompile(`Ocp-Apim-Subscription-Key:\s*([^\s]+)`), `Ocp-Apim-Subscription-Key: ` + masked},
	// Anthropic
	{regexp.MustCompile(`x-api-key:\s*([^\s]+)`), `x-api-key: ` + masked},
	// Gemini and Vision
	{regexp.MustCompile(`(?i)x-goog-api-key:\s*([^\s]+)`), `x-goog-api-key: ` + masked},
	// Postgres URL and keyword DSNs
	{regexp.MustCompile(`(postgres(?:ql)?://[^:/@\s]+:)([^@\s]+)@`), `${1}` + masked + `@`},
	{regexp.MustCompile(`(password=)([^\s&]+)`), `${1}` + masked},
}

// MaskSensitiveData masks API keys, tokens and database passwords in s so
// that error messages and URLs can be logged.
func MaskSensitiveData(s string) string {
	if s == "" {
		return s
	}
	for _, rule := range secretRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// MaskSensitiveError wraps an error and masks sensitive data when the error is converted to string
func MaskSensitiveError(err error) error {
	if err == nil {
		return nil
	}
	var already *maskedError
	if errors.As(err, &already) && already == err {
		return err
	}
	return &maskedError{err: err}
}

type maskedError struct {
	err error
}

func (e *maskedError) Error() string {
	return MaskSensitiveData(e.err.Error())
}

func (e *maskedError) Unwrap() error {
	return e.err
}

func ExitOnError(msg string, err error) {
	slog.Error(msg, "err", MaskSensitiveError(err))
	os.Exit(1)
}
