package evo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrStrategyNotFound = errors.New("strategy not found")

// The strategy families are closed sets: explicitly constructed name->variant
// maps, resolved case-insensitively. An unknown name fails before a run
// starts and the error names every valid choice.

var crossoverRegistry = map[string]Crossover{
	"order": OrderCrossover{},
	"pmx":   PartiallyMappedCrossover{},
	"cycle": CycleCrossover{},
	"edge":  EdgeRecombinationCrossover{},
}

var mutationRegistry = map[string]Mutation{
	"swap":      SwapMutation{},
	"inversion": InversionMutation{},
	"two_opt":   TwoOptMutation{},
}

var fitnessRegistry = map[string]Fitness{
	"inverse_distance": InverseDistanceFitness{},
}

func ResolveCrossover(name string) (Crossover, error) {
	if c, ok := crossoverRegistry[normalizeName(name)]; ok {
		return c, nil
	}
	return nil, notFound("crossover", name, Crossovers())
}

func ResolveMutation(name string) (Mutation, error) {
	if m, ok := mutationRegistry[normalizeName(name)]; ok {
		return m, nil
	}
	return nil, notFound("mutation", name, Mutations())
}

func ResolveFitness(name string) (Fitness, error) {
	if f, ok := fitnessRegistry[normalizeName(name)]; ok {
		return f, nil
	}
	return nil, notFound("fitness", name, Fitnesses())
}

func Crossovers() []string { return sortedNames(crossoverRegistry) }

func Mutations() []string { return sortedNames(mutationRegistry) }

func Fitnesses() []string { return sortedNames(fitnessRegistry) }

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func notFound(family, name string, available []string) error {
	return fmt.Errorf("%w: %s %q (available: %s)",
		ErrStrategyNotFound, family, name, strings.Join(available, ", "))
}

func sortedNames[V any](registry map[string]V) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
