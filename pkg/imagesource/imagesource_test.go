package imagesource

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

func writeFixture(t *testing.T, name string, encode func(*bytes.Buffer, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.Black)

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpen(t *testing.T) {
	pngPath := writeFixture(t, "page.png", func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
	bmpPath := writeFixture(t, "page.BMP", func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) })

	for _, path := range []string{pngPath, bmpPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			img, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if img.Width() != 8 || img.Height() != 4 {
				t.Errorf("unexpected size %dx%d", img.Width(), img.Height())
			}
			if img.Source() != path {
				t.Errorf("Source() = %q, want %q", img.Source(), path)
			}
		})
	}
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("definitely not a png"), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	textFile := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(textFile, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	folder := filepath.Join(dir, "folder.png")
	if err := os.Mkdir(folder, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "corrupt payload", path: corrupt},
		{name: "empty file", path: empty},
		{name: "unsupported extension", path: textFile},
		{name: "missing file", path: filepath.Join(dir, "missing.png")},
		{name: "directory", path: folder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Open(tt.path)
			if err == nil {
				t.Fatalf("expected error, got image %v", img)
			}
			if !errors.Is(err, recognition.ErrImageDecode) {
				t.Errorf("expected ErrImageDecode, got %v", err)
			}
			var decodeErr *recognition.DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Path != tt.path {
				t.Errorf("expected DecodeError for %s, got %#v", tt.path, err)
			}
		})
	}
}

// oversizedPNG encodes a 1x1 image and rewrites its IHDR chunk to claim
// width x height, fixing up the chunk checksum.
func oversizedPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// 8-byte signature, 4-byte length, "IHDR", then width and height.
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	data := oversizedPNG(t, 20000, 20000)
	if len(data) > 1024 {
		t.Fatalf("fixture is %d bytes, expected a tiny file", len(data))
	}

	img, err := Decode(data, "huge.png")
	if err == nil {
		t.Fatalf("expected error, got %dx%d image", img.Width(), img.Height())
	}
	if !errors.Is(err, recognition.ErrImageDecode) {
		t.Errorf("expected ErrImageDecode, got %v", err)
	}
	var decodeErr *recognition.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Path != "huge.png" {
		t.Errorf("expected DecodeError for huge.png, got %#v", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("20000x20000")) {
		t.Errorf("error does not name the dimensions: %v", err)
	}

	path := filepath.Join(t.TempDir(), "huge.png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, recognition.ErrImageDecode) {
		t.Errorf("Open: expected ErrImageDecode, got %v", err)
	}
}

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"scan.PNG":     true,
		"photo.jpeg":   true,
		"fax.tif":      true,
		"anim.webp":    true,
		"report.pdf":   false,
		"no_extension": false,
	}
	for path, want := range tests {
		if got := IsSupported(path); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", path, got, want)
		}
	}
}
