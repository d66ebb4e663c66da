package weather

import (
	"math/rand/v2"
	"sync"
)

// jitter is a mutex-guarded pseudo-random source shared by the heuristic
// strategy and the synthesizer. A single seeded source makes the whole
// degraded path reproducible in tests.
type jitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// newJitter returns a jitter backed by a randomly seeded generator.
func newJitter() *jitter {
	return &jitter{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// newSeededJitter returns a jitter with a fixed seed for deterministic tests.
func newSeededJitter(seed uint64) *jitter {
	return &jitter{rng: rand.New(rand.NewPCG(seed, seed))}
}

// intBetween returns a uniform integer in [lo, hi], both inclusive.
func (j *jitter) intBetween(lo, hi int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return lo + j.rng.IntN(hi-lo+1)
}

// pick returns a uniformly chosen element of choices.
func (j *jitter) pick(choices []string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return choices[j.rng.IntN(len(choices))]
}
