package card

import "math/rand/v2"

// RandomSource yields uniform integers in [0, n).
type RandomSource interface {
	IntN(n int) int
}

// NewRandomSource returns an independently seeded PCG generator. Callers
// build one per turn so no generator state is shared across goroutines.
func NewRandomSource() RandomSource {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededSource returns a deterministic generator for reproducible runs.
func NewSeededSource(seed1, seed2 uint64) RandomSource {
	return rand.New(rand.NewPCG(seed1, seed2))
}
