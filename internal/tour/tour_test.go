package tour

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periplus/internal/model"
)

func squareCities() []model.City {
	return []model.City{
		{ID: 0, X: 0, Y: 0},
		{ID: 1, X: 10, Y: 0},
		{ID: 2, X: 10, Y: 10},
		{ID: 3, X: 0, Y: 10},
	}
}

func TestValidatePermutation(t *testing.T) {
	tests := []struct {
		name  string
		order []int
		n     int
		ok    bool
	}{
		{name: "identity", order: []int{0, 1, 2, 3}, n: 4, ok: true},
		{name: "shuffled", order: []int{2, 0, 3, 1}, n: 4, ok: true},
		{name: "too short", order: []int{0, 1, 2}, n: 4, ok: false},
		{name: "too long", order: []int{0, 1, 2, 3, 0}, n: 4, ok: false},
		{name: "duplicate", order: []int{0, 1, 1, 3}, n: 4, ok: false},
		{name: "out of range high", order: []int{0, 1, 2, 4}, n: 4, ok: false},
		{name: "negative", order: []int{0, -1, 2, 3}, n: 4, ok: false},
		{name: "empty against empty", order: nil, n: 0, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePermutation(tc.order, tc.n)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotPermutation)
			}
		})
	}
}

func TestDistanceClosesTheTour(t *testing.T) {
	cities := squareCities()

	// Perimeter of the 10x10 square, wrap-around edge included.
	assert.InDelta(t, 40.0, Distance([]int{0, 1, 2, 3}, cities), 1e-9)

	// Visiting order matters: the crossed tour takes both diagonals.
	crossed := Distance([]int{0, 2, 1, 3}, cities)
	assert.Greater(t, crossed, 40.0)
}

func TestDistanceDegenerateOrders(t *testing.T) {
	cities := squareCities()
	assert.Zero(t, Distance(nil, cities))
	assert.Zero(t, Distance([]int{2}, cities))
	// Two cities: there and back again.
	assert.InDelta(t, 20.0, Distance([]int{0, 1}, cities), 1e-9)
}

func TestEdgeLengthMatchesDistanceMetric(t *testing.T) {
	a := model.City{X: 0, Y: 0}
	b := model.City{X: 3, Y: 4}
	assert.InDelta(t, 5.0, EdgeLength(a, b), 1e-9)
}

func TestCandidateCloneIsIndependent(t *testing.T) {
	original := Candidate{Order: []int{0, 1, 2}, Fitness: 0.5, Distance: 12}
	clone := original.Clone()
	clone.Order[0] = 99

	assert.Equal(t, 0, original.Order[0])
	assert.Equal(t, original.Fitness, clone.Fitness)
	assert.Equal(t, original.Distance, clone.Distance)
}

func TestRecordRoundTrip(t *testing.T) {
	original := Candidate{Order: []int{2, 0, 1}, Fitness: 0.25, Distance: 30}
	restored := FromRecord(original.Record())

	require.Equal(t, original.Order, restored.Order)
	assert.Equal(t, original.Fitness, restored.Fitness)
	assert.Equal(t, original.Distance, restored.Distance)

	restored.Order[0] = 99
	assert.Equal(t, 2, original.Order[0])
}

func TestNewRandomPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	population := NewRandomPopulation(12, 30, rng)
	require.Len(t, population, 30)
	for i, candidate := range population {
		require.NoErrorf(t, ValidatePermutation(candidate.Order, 12), "candidate %d", i)
		assert.Zero(t, candidate.Fitness)
		assert.Zero(t, candidate.Distance)
	}
}

func TestNewRandomPopulationIsSeedDeterministic(t *testing.T) {
	first := NewRandomPopulation(10, 5, rand.New(rand.NewSource(42)))
	second := NewRandomPopulation(10, 5, rand.New(rand.NewSource(42)))
	for i := range first {
		assert.Equal(t, first[i].Order, second[i].Order)
	}
}
