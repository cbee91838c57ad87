package recognition

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// ColorFormat describes the pixel layout of an Image.
type ColorFormat int

const (
	// RGBA8 stores four bytes per pixel, non-premultiplied.
	RGBA8 ColorFormat = iota
	// Gray8 stores one byte per pixel.
	Gray8
)

func (f ColorFormat) String() string {
	switch f {
	case RGBA8:
		return "rgba8"
	case Gray8:
		return "gray8"
	default:
		return fmt.Sprintf("ColorFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the number of bytes one pixel occupies.
func (f ColorFormat) BytesPerPixel() int {
	if f == Gray8 {
		return 1
	}
	return 4
}

// Image is a decoded raster owned by a single recognition request.
// It never changes after construction; backends only read from it.
type Image struct {
	pix    []byte
	width  int
	height int
	format ColorFormat
	source string
}

// NewImage copies img into a new immutable buffer. Grayscale sources stay
// grayscale, everything else is converted to RGBA8.
func NewImage(img image.Image, source string) (*Image, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}

	out := &Image{width: b.Dx(), height: b.Dy(), source: source}
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	if g, ok := img.(*image.Gray); ok {
		dst := image.NewGray(rect)
		draw.Draw(dst, rect, g, b.Min, draw.Src)
		out.pix = dst.Pix
		out.format = Gray8
		return out, nil
	}

	dst := image.NewNRGBA(rect)
	draw.Draw(dst, rect, img, b.Min, draw.Src)
	out.pix = dst.Pix
	out.format = RGBA8
	return out, nil
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// Format returns the pixel layout.
func (m *Image) Format() ColorFormat { return m.format }

// Source returns the path the image was decoded from, if any.
func (m *Image) Source() string { return m.source }

// Pixels returns a copy of the raw pixel data, row major with no padding.
func (m *Image) Pixels() []byte {
	return append([]byte(nil), m.pix...)
}

// ToImage returns a standard library image backed by a copy of the pixels.
func (m *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, m.width, m.height)
	if m.format == Gray8 {
		return &image.Gray{Pix: m.Pixels(), Stride: m.width, Rect: rect}
	}
	return &image.NRGBA{Pix: m.Pixels(), Stride: m.width * 4, Rect: rect}
}

// EncodePNG encodes the buffer as PNG. Backends that talk to native libraries
// or remote models use this as their wire format.
func (m *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.ToImage()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
