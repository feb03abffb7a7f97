package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"periplus/internal/model"
)

const coordinateSpan = 100.0

// instanceFile is the on-disk problem format. A bare JSON array of cities
// is accepted as well.
type instanceFile struct {
	Cities []model.City `json:"cities"`
}

// loadCities reads the instance file when a path is given, and otherwise
// generates a random instance of count cities from the given seed.
func loadCities(path string, count int, seed int64) ([]model.City, error) {
	if path == "" {
		return randomInstance(count, seed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}

	var file instanceFile
	if err := json.Unmarshal(data, &file); err != nil {
		var bare []model.City
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("parse instance %s: %w", path, err)
		}
		file.Cities = bare
	}
	if len(file.Cities) < 3 {
		return nil, fmt.Errorf("instance %s has %d cities, need at least 3", path, len(file.Cities))
	}
	return file.Cities, nil
}

func randomInstance(count int, seed int64) ([]model.City, error) {
	if count < 3 {
		return nil, fmt.Errorf("random instance needs at least 3 cities, got %d", count)
	}
	rng := rand.New(rand.NewSource(seed))
	cities := make([]model.City, count)
	for i := range cities {
		cities[i] = model.City{
			ID:   i,
			Name: fmt.Sprintf("city-%d", i),
			X:    rng.Float64() * coordinateSpan,
			Y:    rng.Float64() * coordinateSpan,
		}
	}
	return cities, nil
}
