package entropy

// Sequence is a scripted Source that replays fixed values in order and wraps
// around. It pins down exact draws in tests and in single-peak placements.
type Sequence struct {
	values []float64
	pos    int
}

// NewSequence creates a Sequence over values, each expected in [0, 1).
// An empty sequence always yields 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func (s *Sequence) Intn(n int) int {
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Draws returns how many values have been consumed.
func (s *Sequence) Draws() int {
	return s.pos
}
