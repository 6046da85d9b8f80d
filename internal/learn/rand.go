package learn

import "math/rand"

// randSource is the thin seam Greedy/EW/SAO explore through, kept as
// an interface only so tests can substitute a fixed sequence.
type randSource interface {
	Intn(n int) int
	Float64() float64
}

func newRand(seed int64) randSource {
	return rand.New(rand.NewSource(seed))
}
