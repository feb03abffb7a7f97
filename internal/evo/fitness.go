package evo

import (
	"fmt"
	"math"

	"periplus/internal/model"
	"periplus/internal/tour"
)

// InverseDistanceFitness scores a tour as 1/(distance+1): bounded in (0,1],
// monotone decreasing in distance.
type InverseDistanceFitness struct{}

func (InverseDistanceFitness) Name() string { return "inverse_distance" }

func (InverseDistanceFitness) Evaluate(order []int, cities []model.City) (float64, float64, error) {
	distance := tour.Distance(order, cities)
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0, 0, fmt.Errorf("non-finite tour distance")
	}
	return 1 / (distance + 1), distance, nil
}
