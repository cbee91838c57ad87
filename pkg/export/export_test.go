package export

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

func sampleDocument(t *testing.T) Document {
	t.Helper()
	img, err := recognition.NewImage(image.NewGray(image.Rect(0, 0, 120, 40)), "hello.png")
	if err != nil {
		t.Fatal(err)
	}
	res := recognition.Result{
		Text:       "HELLO",
		Confidence: 0.95,
		Elapsed:    10 * time.Millisecond,
		Engine:     recognition.KindTesseract,
		Boxes:      []recognition.BoundingBox{{Text: "HELLO", Confidence: 0.95, X: 5, Y: 5, Width: 50, Height: 20}},
	}
	return NewDocument("hello.png", res, img)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"txt":   FormatText,
		"TEXT":  FormatText,
		"hocr":  FormatHOCR,
		"yml":   FormatYAML,
		" json": FormatJSON,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"out.txt":       FormatText,
		"out":           FormatText,
		"page.hocr":     FormatHOCR,
		"page.HTML":     FormatHOCR,
		"result.yml":    FormatYAML,
		"result.json":   FormatJSON,
		"dir/x.unknown": FormatText,
	}
	for in, want := range tests {
		if got := FormatForPath(in); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrite(t *testing.T) {
	doc := sampleDocument(t)

	t.Run("txt", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatText, doc); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "HELLO\n" {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("hocr", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatHOCR, doc); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"bbox 0 0 120 40", "x_wconf 95", ">HELLO</span>"} {
			if !strings.Contains(out, want) {
				t.Errorf("hocr output missing %q", want)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatJSON, doc); err != nil {
			t.Fatal(err)
		}
		var got Document
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Text != "HELLO" || got.ElapsedMS != 10 || got.Engine != recognition.KindTesseract || got.Width != 120 {
			t.Errorf("decoded %+v", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatYAML, doc); err != nil {
			t.Fatal(err)
		}
		var got Document
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Confidence != 0.95 || len(got.Boxes) != 1 || got.Source != "hello.png" {
			t.Errorf("decoded %+v", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, Format("pdf"), doc); err == nil {
			t.Error("expected error")
		}
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hello.txt")
	if err := WriteFile(path, FormatText, sampleDocument(t)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "HELLO\n" {
		t.Errorf("file contents %q", data)
	}
}
