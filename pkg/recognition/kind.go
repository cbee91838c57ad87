package recognition

import (
	"fmt"
	"strings"
)

// EngineKind identifies one of the recognition backends that can be compiled in.
type EngineKind string

const (
	// KindTesseract is the traditional engine backed by libtesseract.
	KindTesseract EngineKind = "tesseract"
	// KindModel is the learned-model engine driven by a model artifact.
	KindModel EngineKind = "model"
)

// AllKinds returns every known engine kind in default priority order.
func AllKinds() []EngineKind {
	return []EngineKind{KindModel, KindTesseract}
}

func (k EngineKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k EngineKind) Valid() bool {
	switch k {
	case KindTesseract, KindModel:
		return true
	}
	return false
}

// ParseKind converts a user supplied name into an EngineKind
func ParseKind(name string) (EngineKind, error) {
	k := EngineKind(strings.ToLower(strings.TrimSpace(name)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown engine %q (expected one of %s)", name, joinKinds(AllKinds()))
	}
	return k, nil
}

// ParseKinds parses a comma separated preference list such as "model,tesseract".
// Duplicates are dropped, order is preserved.
func ParseKinds(list string) ([]EngineKind, error) {
	var kinds []EngineKind
	seen := make(map[EngineKind]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("engine list %q is empty", list)
	}
	return kinds, nil
}

func joinKinds(kinds []EngineKind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
