package export

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/talgya/terrasmith/internal/heightmap"
)

func rampGrid(res int) *heightmap.Grid {
	g := heightmap.MustNew(res)
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			g.Set(x, y, float64(x+y)/float64(2*(res-1)))
		}
	}
	return g
}

func TestImageOrientation(t *testing.T) {
	g := heightmap.MustNew(4)
	g.Set(0, 3, 1) // north-west corner
	g.Set(3, 0, 2) // out of range, clamps to white
	g.Set(1, 1, -1)

	img := Image(g)
	if got := img.Gray16At(0, 0).Y; got != math.MaxUint16 {
		t.Errorf("north-west pixel = %d, want %d", got, math.MaxUint16)
	}
	if got := img.Gray16At(3, 3).Y; got != math.MaxUint16 {
		t.Errorf("clamped pixel = %d, want %d", got, math.MaxUint16)
	}
	if got := img.Gray16At(1, 2).Y; got != 0 {
		t.Errorf("negative height pixel = %d, want 0", got)
	}
}

func TestWriteRead(t *testing.T) {
	g := rampGrid(9)
	for _, f := range []Format{FormatTIFF, FormatPNG} {
		var buf bytes.Buffer
		if err := Write(&buf, g, f); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		back, err := Read(&buf)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if !back.Equal(g, 1.0/math.MaxUint16) {
			t.Errorf("%s: decoded grid differs beyond quantisation", f)
		}
	}
}

func TestReadRejectsNonSquare(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray16(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(&buf); err == nil {
		t.Error("non-square image should be rejected")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTIFF, "TIFF": FormatTIFF, ".tif": FormatTIFF, "png": FormatPNG, ".PNG": FormatPNG}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("jpeg"); err == nil {
		t.Error("jpeg should be rejected")
	}
	if FormatPNG.ContentType() != "image/png" || FormatTIFF.ContentType() != "image/tiff" {
		t.Error("content types")
	}
}
