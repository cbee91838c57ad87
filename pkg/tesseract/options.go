// Package tesseract is the traditional OCR backend, a binding to the
// tesseract library through gosseract. It is compiled in only when building
// with -tags tesseract, since it needs cgo and libtesseract.
package tesseract

import (
	"strings"
)

// DefaultLanguage is used when no languages are configured.
const DefaultLanguage = "eng"

// Options configure the tesseract client for every call.
type Options struct {
	// Languages are tesseract language codes, e.g. "chi_sim", "eng".
	Languages []string
	// PageSegMode is passed through as tesseract's --psm. Negative means
	// tesseract's default.
	PageSegMode int
	// Whitelist restricts the recognized characters when set.
	Whitelist string
}

// ParseLanguages splits a "chi_sim+eng" or "chi_sim,eng" list. An empty
// list yields the default language.
func ParseLanguages(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return []string{DefaultLanguage}
	}
	return fields
}

func (o Options) languages() []string {
	if len(o.Languages) == 0 {
		return []string{DefaultLanguage}
	}
	return o.Languages
}
