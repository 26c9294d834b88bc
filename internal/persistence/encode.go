package persistence

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/talgya/terrasmith/internal/heightmap"
)

// EncodeHeights packs a grid's cells row-major as little-endian float64s.
func EncodeHeights(g *heightmap.Grid) []byte {
	values := g.Values()
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeHeights unpacks a blob written by EncodeHeights.
func DecodeHeights(resolution int, blob []byte) (*heightmap.Grid, error) {
	if want := 8 * resolution * resolution; len(blob) != want {
		return nil, fmt.Errorf("decode heights: blob is %d bytes, want %d for resolution %d", len(blob), want, resolution)
	}
	values := make([]float64, resolution*resolution)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return heightmap.FromValues(resolution, values)
}
