package tesseract

import (
	"slices"
	"testing"
)

func TestParseLanguages(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"eng"}},
		{"  ", []string{"eng"}},
		{"eng", []string{"eng"}},
		{"chi_sim+eng", []string{"chi_sim", "eng"}},
		{"deu, fra", []string{"deu", "fra"}},
	}
	for _, tt := range tests {
		if got := ParseLanguages(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("ParseLanguages(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOptionsLanguagesDefault(t *testing.T) {
	if got := (Options{}).languages(); !slices.Equal(got, []string{DefaultLanguage}) {
		t.Errorf("languages() = %v", got)
	}
}
