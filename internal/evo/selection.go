package evo

import (
	"math/rand"

	"periplus/internal/tour"
)

// tournamentSelect samples size candidates uniformly with replacement and
// keeps the fittest. ranked must be sorted by fitness descending; a
// tournament spanning the whole population therefore short-circuits to the
// global best, and size 1 degenerates to a uniform random pick.
func tournamentSelect(rng *rand.Rand, ranked []tour.Candidate, size int) tour.Candidate {
	if size >= len(ranked) {
		return ranked[0]
	}
	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < size; i++ {
		challenger := ranked[rng.Intn(len(ranked))]
		if challenger.Fitness > best.Fitness {
			best = challenger
		}
	}
	return best
}
