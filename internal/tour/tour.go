// Package tour holds the permutation-encoded candidate representation and
// the geometric primitives every operator builds on.
package tour

import (
	"errors"
	"fmt"
	"math"

	"periplus/internal/model"
)

// MaxDistance is the sentinel assigned to candidates that cannot be
// evaluated. Any finite tour beats it.
const MaxDistance = math.MaxFloat64

var ErrNotPermutation = errors.New("order is not a permutation")

// Candidate is one permutation-encoded solution. Fitness and Distance are
// caches: they are valid only after the evaluator has processed the
// candidate, and stale after any operator touches Order.
type Candidate struct {
	Order    []int
	Fitness  float64
	Distance float64
}

func (c Candidate) Clone() Candidate {
	return Candidate{
		Order:    append([]int(nil), c.Order...),
		Fitness:  c.Fitness,
		Distance: c.Distance,
	}
}

func (c Candidate) Record() model.CandidateRecord {
	return model.CandidateRecord{
		Order:    append([]int(nil), c.Order...),
		Fitness:  c.Fitness,
		Distance: c.Distance,
	}
}

func FromRecord(rec model.CandidateRecord) Candidate {
	return Candidate{
		Order:    append([]int(nil), rec.Order...),
		Fitness:  rec.Fitness,
		Distance: rec.Distance,
	}
}

// ValidatePermutation checks that order contains every index in [0,n)
// exactly once. Sentinel-wrapped errors, no panics on bad input.
func ValidatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrNotPermutation, len(order), n)
	}
	seen := make([]bool, n)
	for i, v := range order {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: index %d out of range at position %d", ErrNotPermutation, v, i)
		}
		if seen[v] {
			return fmt.Errorf("%w: duplicate index %d", ErrNotPermutation, v)
		}
		seen[v] = true
	}
	return nil
}

// Distance sums consecutive Euclidean edges of the closed tour, including
// the wrap-around edge from the last city back to the first.
func Distance(order []int, cities []model.City) float64 {
	n := len(order)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		a := cities[order[i]]
		b := cities[order[(i+1)%n]]
		sum += math.Hypot(a.X-b.X, a.Y-b.Y)
	}
	return sum
}

// EdgeLength is the single-edge cost between two cities, kept here so that
// local-search deltas use the same metric as full tour sums.
func EdgeLength(a, b model.City) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
