package evo

import (
	"sync"

	"periplus/internal/model"
	"periplus/internal/tour"
)

// evalStats counts per-batch anomalies. Both kinds are recoverable: the
// offending candidate gets worst-possible fitness and the sentinel distance,
// and the batch always completes.
type evalStats struct {
	invalidCandidates int
	fitnessFaults     int
}

// evaluatePopulation maps the fitness function over the population with a
// bounded worker pool and writes the results back in place. Candidates are
// independent of each other, so the fan-out carries no ordering guarantee;
// the shared rng is never touched here.
func evaluatePopulation(population []tour.Candidate, cities []model.City, fitness Fitness, workers int) evalStats {
	type result struct {
		idx      int
		fitness  float64
		distance float64
		invalid  bool
		fault    bool
	}

	if workers > len(population) {
		workers = len(population)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	results := make(chan result, len(population))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				order := population[idx].Order
				if err := tour.ValidatePermutation(order, len(cities)); err != nil {
					results <- result{idx: idx, distance: tour.MaxDistance, invalid: true}
					continue
				}
				fit, dist, err := fitness.Evaluate(order, cities)
				if err != nil {
					results <- result{idx: idx, distance: tour.MaxDistance, fault: true}
					continue
				}
				results <- result{idx: idx, fitness: fit, distance: dist}
			}
		}()
	}

	for i := range population {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	var stats evalStats
	for res := range results {
		population[res.idx].Fitness = res.fitness
		population[res.idx].Distance = res.distance
		if res.invalid {
			stats.invalidCandidates++
		}
		if res.fault {
			stats.fitnessFaults++
		}
	}
	return stats
}
