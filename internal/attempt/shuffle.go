package attempt

import "math/rand/v2"

// Shuffle returns a uniformly random permutation of options using
// Fisher–Yates. The input slice is left untouched. A nil rng uses the
// package-level source.
func Shuffle(options []string, rng *rand.Rand) []string {
	out := make([]string, len(options))
	copy(out, options)

	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
