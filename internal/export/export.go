// Package export converts heightmaps to and from 16-bit grayscale images.
// Heights are clamped to [0, 1] and scaled to the full 16-bit range. Image
// row 0 is the tile's north edge (highest Z), so grid row y lands on image
// row res-1-y.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/talgya/terrasmith/internal/heightmap"
)

// Format is an image container.
type Format string

const (
	FormatTIFF Format = "tiff"
	FormatPNG  Format = "png"
)

// ParseFormat maps a name or file extension to a Format. Empty means TIFF.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "", "tif", "tiff":
		return FormatTIFF, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("export: unknown format %q (use tiff or png)", name)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/tiff"
}

// Image renders g as a 16-bit grayscale image.
func Image(g *heightmap.Grid) *image.Gray16 {
	res := g.Resolution()
	img := image.NewGray16(image.Rect(0, 0, res, res))
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			v := heightmap.Clamp01(g.At(x, y))
			img.SetGray16(x, res-1-y, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	return img
}

// Write encodes g to w in the given format.
func Write(w io.Writer, g *heightmap.Grid, f Format) error {
	img := Image(g)
	switch f {
	case FormatTIFF:
		if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return fmt.Errorf("encode tiff: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		return fmt.Errorf("export: unknown format %q", f)
	}
	return nil
}

// Read decodes a square grayscale TIFF or PNG into a grid. Colour images are
// converted through their luminance.
func Read(r io.Reader) (*heightmap.Grid, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("decode %s: image is %dx%d, want square", format, b.Dx(), b.Dy())
	}
	g, err := heightmap.New(b.Dx())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	res := g.Resolution()
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			c := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+res-1-y)).(color.Gray16)
			g.Set(x, y, float64(c.Y)/math.MaxUint16)
		}
	}
	return g, nil
}
