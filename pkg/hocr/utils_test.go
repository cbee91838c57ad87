package hocr

import (
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

func TestFromResult(t *testing.T) {
	tests := []struct {
		name        string
		result      recognition.Result
		width       int
		height      int
		contains    []string
		notContains []string
	}{
		{
			name:     "empty result",
			result:   recognition.Result{},
			contains: []string{"<!DOCTYPE html", "ocr_page"},
		},
		{
			name: "boxes grouped into lines",
			result: recognition.Result{
				Text: "HELLO WORLD\nBYE",
				Boxes: []recognition.BoundingBox{
					{Text: "WORLD", Confidence: 0.8, X: 60, Y: 10, Width: 40, Height: 20},
					{Text: "HELLO", Confidence: 0.95, X: 10, Y: 12, Width: 40, Height: 20},
					{Text: "BYE", Confidence: 0.5, X: 10, Y: 60, Width: 30, Height: 20},
				},
			},
			width:  800,
			height: 600,
			contains: []string{
				"title='bbox 0 0 800 600'",
				"<span class='ocrx_line' id='line_1' title='bbox 10 10 100 32'>",
				"id='word_1' title='bbox 10 12 50 32; x_wconf 95'>HELLO</span>",
				"id='word_2' title='bbox 60 10 100 30; x_wconf 80'>WORLD</span>",
				"id='line_2' title='bbox 10 60 40 80'",
			},
		},
		{
			name:     "text only",
			result:   recognition.Result{Text: "HELLO there\n\nA & B <c>", Confidence: 0.61},
			contains: []string{"id='line_1'", "id='line_2'", "x_wconf 61'>HELLO</span>", "A</span>", "&amp;", "&lt;c&gt;"},
			notContains: []string{
				"id='line_3'",
				"title='bbox 0 0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromResult(tt.result, tt.width, tt.height)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("FromResult() missing %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("FromResult() unexpectedly contains %q", unwanted)
				}
			}
		})
	}
}

func TestWrapInHOCRDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty content", ""},
		{"simple content", "<span>test</span>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapInHOCRDocument(tt.content, 0, 0)
			if !strings.Contains(result, "<!DOCTYPE html") {
				t.Errorf("WrapInHOCRDocument() missing DOCTYPE")
			}
			if !strings.Contains(result, tt.content) {
				t.Errorf("WrapInHOCRDocument() missing content")
			}
			if !strings.Contains(result, "ocr-system") {
				t.Errorf("WrapInHOCRDocument() missing ocr-system meta")
			}
		})
	}
}

func TestGroupWordsIntoLines(t *testing.T) {
	words := []WordBox{
		{Text: "c", X: 10, Y: 50, Width: 10, Height: 10},
		{Text: "b", X: 30, Y: 11, Width: 10, Height: 10},
		{Text: "a", X: 10, Y: 10, Width: 10, Height: 10},
	}
	lines := GroupWordsIntoLines(words)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text() != "a b" || lines[1].Text() != "c" {
		t.Errorf("lines = %q, %q", lines[0].Text(), lines[1].Text())
	}
	if lines[0].X != 10 || lines[0].Y != 10 || lines[0].Width != 30 || lines[0].Height != 11 {
		t.Errorf("line bbox = %+v", lines[0])
	}
	if words[0].Text != "c" {
		t.Error("input slice was reordered")
	}
	if GroupWordsIntoLines(nil) != nil {
		t.Error("expected nil for no words")
	}
}

func TestGroupWordsIntoLines_OrderIndependent(t *testing.T) {
	// A slanted baseline: each word sits a little lower than the last, so
	// neighbours overlap vertically but the ends of the line do not.
	words := []WordBox{
		{Text: "one", X: 0, Y: 10, Width: 15, Height: 10},
		{Text: "two", X: 20, Y: 14, Width: 15, Height: 10},
		{Text: "three", X: 40, Y: 18, Width: 15, Height: 10},
		{Text: "four", X: 60, Y: 22, Width: 15, Height: 10},
		{Text: "five", X: 0, Y: 60, Width: 15, Height: 10},
		{Text: "six", X: 20, Y: 62, Width: 15, Height: 10},
	}
	want := "one two three four|five six"

	render := func(lines []LineBox) string {
		texts := make([]string, len(lines))
		for i, l := range lines {
			texts[i] = l.Text()
		}
		return strings.Join(texts, "|")
	}

	var permute func(k int)
	permute = func(k int) {
		if k == len(words) {
			if got := render(GroupWordsIntoLines(words)); got != want {
				t.Fatalf("input order %v: got %q, want %q", textsOf(words), got, want)
			}
			return
		}
		for i := k; i < len(words); i++ {
			words[k], words[i] = words[i], words[k]
			permute(k + 1)
			words[k], words[i] = words[i], words[k]
		}
	}
	permute(0)
}

func textsOf(words []WordBox) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

func TestWordsFromBoxes(t *testing.T) {
	got := WordsFromBoxes([]recognition.BoundingBox{
		{Text: "ok", Width: 1, Height: 1},
		{Text: "", Width: 1, Height: 1},
		{Text: "flat", Width: 1, Height: 0},
	})
	if len(got) != 1 || got[0].Text != "ok" {
		t.Errorf("WordsFromBoxes() = %+v", got)
	}
}

func TestFixAmpersands(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "unescaped ampersand",
			input:    "A & B",
			expected: "A &amp; B",
		},
		{
			name:     "already escaped",
			input:    "A &amp; B",
			expected: "A &amp; B",
		},
		{
			name:     "multiple ampersands",
			input:    "A & B & C",
			expected: "A &amp; B &amp; C",
		},
		{
			name:     "valid entity",
			input:    "less than &lt; sign",
			expected: "less than &lt; sign",
		},
		{
			name:     "numeric entity",
			input:    "apostrophe &#39; here",
			expected: "apostrophe &#39; here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fixAmpersands(tt.input)
			if result != tt.expected {
				t.Errorf("fixAmpersands() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestEscapeText(t *testing.T) {
	if got := escapeText("a<b>&amp;c&d"); got != "a&lt;b&gt;&amp;c&amp;d" {
		t.Errorf("escapeText() = %q", got)
	}
}
