package evo

import "math/rand"

// cutPoints returns a segment [a,b) with 0 <= a < b <= n, never empty.
func cutPoints(n int, rng *rand.Rand) (int, int) {
	a := rng.Intn(n)
	b := rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	return a, b + 1
}

// OrderCrossover (OX) copies a segment from one parent and fills the
// remaining positions with the other parent's cities in tour order,
// starting after the segment.
type OrderCrossover struct{}

func (OrderCrossover) Name() string { return "order" }

func (OrderCrossover) Cross(p1, p2 []int, rng *rand.Rand) ([]int, []int) {
	a, b := cutPoints(len(p1), rng)
	return oxChild(p1, p2, a, b), oxChild(p2, p1, a, b)
}

func oxChild(keep, fill []int, a, b int) []int {
	n := len(keep)
	child := make([]int, n)
	used := make([]bool, n)
	for i := range child {
		child[i] = -1
	}
	for i := a; i < b; i++ {
		child[i] = keep[i]
		used[keep[i]] = true
	}
	pos := b % n
	for i := 0; i < n; i++ {
		gene := fill[(b+i)%n]
		if used[gene] {
			continue
		}
		child[pos] = gene
		used[gene] = true
		pos = (pos + 1) % n
	}
	return child
}

// PartiallyMappedCrossover (PMX) copies a segment and resolves conflicts
// outside it by chasing the segment's positional mapping.
type PartiallyMappedCrossover struct{}

func (PartiallyMappedCrossover) Name() string { return "pmx" }

func (PartiallyMappedCrossover) Cross(p1, p2 []int, rng *rand.Rand) ([]int, []int) {
	a, b := cutPoints(len(p1), rng)
	return pmxChild(p1, p2, a, b), pmxChild(p2, p1, a, b)
}

func pmxChild(keep, other []int, a, b int) []int {
	n := len(keep)
	child := make([]int, n)
	inSegment := make([]bool, n)
	mapped := make([]int, n)
	for i := a; i < b; i++ {
		child[i] = keep[i]
		inSegment[keep[i]] = true
		mapped[keep[i]] = other[i]
	}
	for i := 0; i < n; i++ {
		if i >= a && i < b {
			continue
		}
		gene := other[i]
		for inSegment[gene] {
			gene = mapped[gene]
		}
		child[i] = gene
	}
	return child
}

// CycleCrossover (CX) decomposes the parent pair into positional cycles and
// assigns alternating cycles to each child. Deterministic for a given parent
// pair; the rng is unused.
type CycleCrossover struct{}

func (CycleCrossover) Name() string { return "cycle" }

func (CycleCrossover) Cross(p1, p2 []int, _ *rand.Rand) ([]int, []int) {
	n := len(p1)
	c1 := make([]int, n)
	c2 := make([]int, n)
	position := make([]int, n)
	for i, v := range p1 {
		position[v] = i
	}
	assigned := make([]bool, n)
	cycle := 0
	for start := 0; start < n; start++ {
		if assigned[start] {
			continue
		}
		for i := start; !assigned[i]; i = position[p2[i]] {
			assigned[i] = true
			if cycle%2 == 0 {
				c1[i], c2[i] = p1[i], p2[i]
			} else {
				c1[i], c2[i] = p2[i], p1[i]
			}
		}
		cycle++
	}
	return c1, c2
}

// EdgeRecombinationCrossover builds the union adjacency table of both
// parents and greedily extends a tour toward the neighbor with the fewest
// remaining edges, which preserves as much parental adjacency as possible.
type EdgeRecombinationCrossover struct{}

func (EdgeRecombinationCrossover) Name() string { return "edge" }

func (EdgeRecombinationCrossover) Cross(p1, p2 []int, rng *rand.Rand) ([]int, []int) {
	return erxChild(p1, p2, p1[0], rng), erxChild(p2, p1, p2[0], rng)
}

func erxChild(p1, p2 []int, start int, rng *rand.Rand) []int {
	n := len(p1)
	adjacency := make([]map[int]struct{}, n)
	for i := range adjacency {
		adjacency[i] = make(map[int]struct{}, 4)
	}
	addEdges := func(p []int) {
		for i, v := range p {
			prev := p[(i+n-1)%n]
			next := p[(i+1)%n]
			adjacency[v][prev] = struct{}{}
			adjacency[v][next] = struct{}{}
		}
	}
	addEdges(p1)
	addEdges(p2)

	child := make([]int, 0, n)
	used := make([]bool, n)
	current := start
	for {
		child = append(child, current)
		used[current] = true
		if len(child) == n {
			return child
		}
		for neighbor := range adjacency[current] {
			delete(adjacency[neighbor], current)
		}

		next := -1
		fewest := n + 1
		for neighbor := range adjacency[current] {
			if used[neighbor] {
				continue
			}
			degree := len(adjacency[neighbor])
			if degree < fewest || (degree == fewest && rng.Intn(2) == 0) {
				next = neighbor
				fewest = degree
			}
		}
		if next < 0 {
			// Dead end: jump to a uniformly random unused city.
			offset := rng.Intn(n - len(child))
			for v := 0; v < n; v++ {
				if used[v] {
					continue
				}
				if offset == 0 {
					next = v
					break
				}
				offset--
			}
		}
		current = next
	}
}
