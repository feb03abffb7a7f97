package tour

import "math/rand"

// NewRandomPopulation builds size independent random permutations over n
// cities. Candidates carry zeroed caches; the evaluator fills them in.
// Deterministic for a seeded rng.
func NewRandomPopulation(n, size int, rng *rand.Rand) []Candidate {
	population := make([]Candidate, size)
	for i := range population {
		population[i] = Candidate{Order: rng.Perm(n)}
	}
	return population
}
