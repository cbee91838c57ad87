// Package imagesource turns a user-chosen file into a decoded recognition.Image.
package imagesource

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// MaxFileSize bounds how much of a file is read before decoding.
const MaxFileSize = 64 << 20

// MaxPixels bounds the raster size a header may declare. A small compressed
// file can claim dimensions whose raster would not fit in memory.
const MaxPixels = 64_000_000

var supportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif"}

// SupportedExtensions lists the file extensions Open accepts.
func SupportedExtensions() []string {
	return slices.Clone(supportedExtensions)
}

// IsSupported reports whether path has an accepted image extension.
func IsSupported(path string) bool {
	return slices.Contains(supportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Open reads and decodes the image at path. Every failure is a
// *recognition.DecodeError.
func Open(path string) (*recognition.Image, error) {
	if !IsSupported(path) {
		return nil, &recognition.DecodeError{
			Path: path,
			Err:  fmt.Errorf("unsupported file extension %q", filepath.Ext(path)),
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &recognition.DecodeError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &recognition.DecodeError{Path: path, Err: fmt.Errorf("is a directory")}
	}
	if info.Size() > MaxFileSize {
		return nil, &recognition.DecodeError{
			Path: path,
			Err:  fmt.Errorf("file is %d bytes, limit is %d", info.Size(), MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &recognition.DecodeError{Path: path, Err: err}
	}
	return Decode(data, path)
}

// Decode decodes an in-memory payload. source is only used for reporting.
func Decode(data []byte, source string) (*recognition.Image, error) {
	if len(data) == 0 {
		return nil, &recognition.DecodeError{Path: source, Err: fmt.Errorf("empty file")}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &recognition.DecodeError{Path: source, Err: err}
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, &recognition.DecodeError{
			Path: source,
			Err:  fmt.Errorf("image is %dx%d (%d pixels), limit is %d", cfg.Width, cfg.Height, px, MaxPixels),
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &recognition.DecodeError{Path: source, Err: err}
	}
	buf, err := recognition.NewImage(img, source)
	if err != nil {
		return nil, &recognition.DecodeError{Path: source, Err: err}
	}
	return buf, nil
}
