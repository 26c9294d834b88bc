// Package entropy supplies the random numbers every stochastic stage draws from.
// Stages never touch a global generator: a Source is passed in explicitly, so a
// seeded Source replays a run exactly.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source is a stream of uniform random numbers.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). n must be > 0.
	Intn(n int) int
}

// Seeded is a deterministic Source backed by math/rand.
type Seeded struct {
	seed int64
	rng  *mrand.Rand
}

// NewSeeded creates a deterministic source. Seed 0 draws a fresh seed from crypto/rand.
func NewSeeded(seed int64) *Seeded {
	if seed == 0 {
		seed = NewSeed()
	}
	return &Seeded{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// Seed returns the seed the source was built with.
func (s *Seeded) Seed() int64 {
	return s.seed
}

func (s *Seeded) Float64() float64 { return s.rng.Float64() }
func (s *Seeded) Intn(n int) int   { return s.rng.Intn(n) }

// Derive returns a new seeded source offset from this one's seed, so that
// independent concerns (per tile, per stage) get independent streams.
func (s *Seeded) Derive(offset int64) *Seeded {
	return NewSeeded(s.seed + offset)
}

// Range returns a uniform float in [min, max). Equal bounds return min.
func Range(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// IntRange returns a uniform int in [min, max). max <= min returns min.
func IntRange(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.Intn(max-min)
}

// Shuffle permutes n elements in place with a Fisher–Yates pass.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		swap(i, j)
	}
}

// NewSeed draws a non-zero seed from crypto/rand.
func NewSeed() int64 {
	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// This should never happen; fall back to a fixed non-zero seed.
			return 1
		}
		seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
		if seed != 0 {
			return seed
		}
	}
}

// CryptoFloat returns a random float using crypto/rand (no seed involved).
func CryptoFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
