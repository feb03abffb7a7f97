package evo

import (
	"math/rand"

	"periplus/internal/model"
	"periplus/internal/tour"
)

// SwapMutation exchanges two distinct positions.
type SwapMutation struct{}

func (SwapMutation) Name() string { return "swap" }

func (SwapMutation) Mutate(order []int, _ []model.City, rng *rand.Rand) {
	if len(order) < 2 {
		return
	}
	i := rng.Intn(len(order))
	j := rng.Intn(len(order) - 1)
	if j >= i {
		j++
	}
	order[i], order[j] = order[j], order[i]
}

// InversionMutation reverses a random non-empty segment.
type InversionMutation struct{}

func (InversionMutation) Name() string { return "inversion" }

func (InversionMutation) Mutate(order []int, _ []model.City, rng *rand.Rand) {
	if len(order) < 2 {
		return
	}
	a, b := cutPoints(len(order), rng)
	reverse(order, a, b-1)
}

// TwoOptMutation samples candidate 2-opt moves and applies the first one
// that shortens the closed tour. If no sampled move improves, the order is
// left unchanged, so the mutation never lengthens a tour.
type TwoOptMutation struct{}

func (TwoOptMutation) Name() string { return "two_opt" }

func (TwoOptMutation) Mutate(order []int, cities []model.City, rng *rand.Rand) {
	n := len(order)
	if n < 4 {
		return
	}
	const improvementEps = 1e-12
	for attempt := 0; attempt < n; attempt++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i > j {
			i, j = j, i
		}
		// Reversing order[i..j] replaces edges (i-1,i) and (j,j+1).
		if i == j || (i == 0 && j == n-1) {
			continue
		}
		before := order[(i+n-1)%n]
		after := order[(j+1)%n]
		removed := tour.EdgeLength(cities[before], cities[order[i]]) +
			tour.EdgeLength(cities[order[j]], cities[after])
		added := tour.EdgeLength(cities[before], cities[order[j]]) +
			tour.EdgeLength(cities[order[i]], cities[after])
		if added < removed-improvementEps {
			reverse(order, i, j)
			return
		}
	}
}

// reverse flips order[a..b] inclusive.
func reverse(order []int, a, b int) {
	for a < b {
		order[a], order[b] = order[b], order[a]
		a++
		b--
	}
}
