package evo

import (
	"math/rand"

	"periplus/internal/model"
)

// Crossover recombines two parent orderings into two children of the same
// length. Children are new slices; parents are never modified. Permutation
// validity is re-checked by the reproducer, which falls back to parent
// clones rather than letting a broken child into the population.
type Crossover interface {
	Name() string
	Cross(p1, p2 []int, rng *rand.Rand) ([]int, []int)
}

// Mutation perturbs an ordering in place. Length and permutation validity
// must be preserved. Cities are provided for distance-aware variants and
// are read-only.
type Mutation interface {
	Name() string
	Mutate(order []int, cities []model.City, rng *rand.Rand)
}

// Fitness scores an ordering. Distance is the closed-tour length; fitness
// is a monotone decreasing function of it, so higher fitness is always
// better regardless of variant. A returned error marks the single
// candidate as unevaluable; it never aborts a batch.
type Fitness interface {
	Name() string
	Evaluate(order []int, cities []model.City) (fitness, distance float64, err error)
}

// Command is a cooperative control signal observed by the engine at
// generation boundaries.
type Command int

const (
	CommandPause Command = iota + 1
	CommandStop
)
