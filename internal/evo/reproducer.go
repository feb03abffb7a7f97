package evo

import (
	"math/rand"
	"sort"

	"periplus/internal/model"
	"periplus/internal/tour"
)

// reproStats aggregates the recoverable anomalies of one generation.
type reproStats struct {
	eval             evalStats
	invalidOffspring int
}

// reproducer builds generation N+1 from generation N: elitism, tournament
// selection, rate-gated crossover and mutation, invariant repair, and a
// final evaluation pass. It is the sole consumer of the run's rng; only the
// evaluation at the end fans out.
type reproducer struct {
	cfg       model.RunConfig
	cities    []model.City
	crossover Crossover
	mutation  Mutation
	fitness   Fitness
	workers   int
}

func (r *reproducer) nextGeneration(current []tour.Candidate, rng *rand.Rand) ([]tour.Candidate, reproStats) {
	size := r.cfg.PopulationSize

	ranked := make([]tour.Candidate, len(current))
	copy(ranked, current)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})

	var stats reproStats
	next := make([]tour.Candidate, 0, size)

	eliteCount := int(float64(size) * r.cfg.ElitismRate)
	for i := 0; i < eliteCount; i++ {
		next = append(next, ranked[i].Clone())
	}

	for len(next) < size {
		parent1 := tournamentSelect(rng, ranked, r.cfg.TournamentSize)
		parent2 := tournamentSelect(rng, ranked, r.cfg.TournamentSize)

		var order1, order2 []int
		if rng.Float64() < r.cfg.CrossoverRate {
			order1, order2 = r.crossover.Cross(parent1.Order, parent2.Order, rng)
		} else {
			order1 = append([]int(nil), parent1.Order...)
			order2 = append([]int(nil), parent2.Order...)
		}
		if rng.Float64() < r.cfg.MutationRate {
			r.mutation.Mutate(order1, r.cities, rng)
		}
		if rng.Float64() < r.cfg.MutationRate {
			r.mutation.Mutate(order2, r.cities, rng)
		}

		next = append(next, r.childOrFallback(order1, parent1, &stats))
		if len(next) < size {
			// Odd population size drops the second child of the last pair.
			next = append(next, r.childOrFallback(order2, parent2, &stats))
		}
	}

	stats.eval = evaluatePopulation(next, r.cities, r.fitness, r.workers)
	return next, stats
}

// childOrFallback enforces the permutation invariant on an offspring
// ordering. A broken child is replaced by a clone of its parent; the
// anomaly is counted, never propagated.
func (r *reproducer) childOrFallback(order []int, parent tour.Candidate, stats *reproStats) tour.Candidate {
	if err := tour.ValidatePermutation(order, len(r.cities)); err != nil {
		stats.invalidOffspring++
		return parent.Clone()
	}
	return tour.Candidate{Order: order}
}
