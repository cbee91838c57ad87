// Package export writes a recognition result to disk or a stream in one of
// the supported formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/textlens/pkg/hocr"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// Format is an output format name.
type Format string

const (
	FormatText Format = "txt"
	FormatHOCR Format = "hocr"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatHOCR, FormatYAML, FormatJSON}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatHOCR, FormatYAML, FormatJSON:
		return f, nil
	case "text":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want txt, hocr, yaml or json)", s)
}

// FormatForPath picks a format from the file extension, defaulting to txt.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hocr", ".html", ".xhtml":
		return FormatHOCR
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Document is the structured form written for yaml and json.
type Document struct {
	Source     string                    `json:"source" yaml:"source"`
	Engine     recognition.EngineKind    `json:"engine" yaml:"engine"`
	Text       string                    `json:"text" yaml:"text"`
	Confidence float64                   `json:"confidence" yaml:"confidence"`
	ElapsedMS  int64                     `json:"elapsed_ms" yaml:"elapsed_ms"`
	Width      int                       `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int                       `json:"height,omitempty" yaml:"height,omitempty"`
	Boxes      []recognition.BoundingBox `json:"boxes,omitempty" yaml:"boxes,omitempty"`
}

// NewDocument builds a Document. img may be nil when page dimensions are
// unknown.
func NewDocument(source string, res recognition.Result, img *recognition.Image) Document {
	d := Document{
		Source:     source,
		Engine:     res.Engine,
		Text:       res.Text,
		Confidence: res.Confidence,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		Boxes:      res.Boxes,
	}
	if img != nil {
		d.Width, d.Height = img.Width(), img.Height()
	}
	return d
}

// Write renders doc in format f to w.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatText:
		text := doc.Text
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		_, err := io.WriteString(w, text)
		return err
	case FormatHOCR:
		res := recognition.Result{Text: doc.Text, Confidence: doc.Confidence, Boxes: doc.Boxes}
		_, err := io.WriteString(w, hocr.FromResult(res, doc.Width, doc.Height))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteFile renders doc to path, creating parent directories.
func WriteFile(path string, f Format, doc Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(file, f, doc); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
