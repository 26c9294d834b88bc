package noise

// FBM sums octaves of k at geometrically growing frequency (×lacunarity) and
// shrinking amplitude (×persistence), then divides by the total amplitude used.
// The result therefore stays inside the kernel's [0, 1] range whatever the
// octave count. octaves < 1 yields 0.
func FBM(k Kernel, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	total := 0.0
	frequency := 1.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += k.Eval(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// FBMDefault is two octaves with persistence 0.5 and lacunarity 2.
func FBMDefault(k Kernel, x, y float64) float64 {
	return FBM(k, x, y, 2, 0.5, 2)
}
