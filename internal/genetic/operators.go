package genetic

import (
	"fmt"
	"math/rand"
)

// Operators implements selection, crossover and mutation over the
// separator encoding. All operators work on copies; parents are never
// modified. The random source is injected for reproducible runs.
type Operators struct {
	rng *rand.Rand
}

func NewOperators(rng *rand.Rand) *Operators {
	return &Operators{rng: rng}
}

// Tournament samples k distinct chromosomes uniformly and returns the
// one with the lowest fitness.
func (o *Operators) Tournament(population []*Chromosome, size int) *Chromosome {
	if size > len(population) {
		size = len(population)
	}
	picked := o.rng.Perm(len(population))[:size]
	best := population[picked[0]]
	for _, i := range picked[1:] {
		if population[i].Fitness < best.Fitness {
			best = population[i]
		}
	}
	return best
}

// Roulette picks proportionally to inverted fitness (lower fitness gets
// a bigger share). A flat population degrades to a uniform pick.
func (o *Operators) Roulette(population []*Chromosome) *Chromosome {
	maxF, minF := population[0].Fitness, population[0].Fitness
	for _, c := range population {
		if c.Fitness > maxF {
			maxF = c.Fitness
		}
		if c.Fitness < minF {
			minF = c.Fitness
		}
	}
	if maxF == minF {
		return population[o.rng.Intn(len(population))]
	}
	var total float64
	for _, c := range population {
		total += maxF - c.Fitness + 1
	}
	pick := o.rng.Float64() * total
	var acc float64
	for _, c := range population {
		acc += maxF - c.Fitness + 1
		if acc >= pick {
			return c
		}
	}
	return population[len(population)-1]
}

// OrderCrossover (OX) recombines the point-only sequences of both
// parents: each child keeps one parent's middle segment and fills the
// rest in the other parent's order. Separators are re-inserted
// proportionally to the source parent's route sizes and the result is
// repaired (the proportional re-slicing can reintroduce duplicates).
func (o *Operators) OrderCrossover(parent1, parent2 *Chromosome) (*Chromosome, *Chromosome) {
	points1 := parent1.Points()
	points2 := parent2.Points()
	size := len(points1)

	c1 := o.rng.Intn(size)
	c2 := c1 + 1 + o.rng.Intn(size-c1)

	child1Points := oxFill(points1, points2, c1, c2)
	child2Points := oxFill(points2, points1, c1, c2)

	child1 := NewChromosome(separatorsFromParent(child1Points, parent1), parent1.NumVehicles)
	child2 := NewChromosome(separatorsFromParent(child2Points, parent2), parent2.NumVehicles)

	child1.Parent1ID, child1.Parent2ID = parent1.ID, parent2.ID
	child2.Parent1ID, child2.Parent2ID = parent1.ID, parent2.ID

	child1.Repair(size, o.rng)
	child2.Repair(size, o.rng)
	return child1, child2
}

// oxFill builds one OX child: the [c1,c2) segment of segSrc spliced at
// c1 into the remaining points taken in orderSrc order.
func oxFill(segSrc, orderSrc []int, c1, c2 int) []int {
	middle := segSrc[c1:c2]
	inMiddle := make(map[int]bool, len(middle))
	for _, p := range middle {
		inMiddle[p] = true
	}
	rest := make([]int, 0, len(orderSrc)-len(middle))
	for _, p := range orderSrc {
		if !inMiddle[p] {
			rest = append(rest, p)
		}
	}
	out := make([]int, 0, len(orderSrc))
	out = append(out, rest[:c1]...)
	out = append(out, middle...)
	out = append(out, rest[c1:]...)
	return out
}

// PMXCrossover copies each parent's [c1,c2) segment unchanged and
// resolves the positions outside it through the segment value mapping.
func (o *Operators) PMXCrossover(parent1, parent2 *Chromosome) (*Chromosome, *Chromosome) {
	points1 := parent1.Points()
	points2 := parent2.Points()
	size := len(points1)

	// One point leaves no cut to draw: the children are plain copies,
	// with their own identity and lineage.
	if size < 2 {
		child1, child2 := parent1.Clone(), parent2.Clone()
		child1.ID, child2.ID = 0, 0
		child1.Mutation, child2.Mutation = "", ""
		child1.Parent1ID, child1.Parent2ID = parent1.ID, parent2.ID
		child2.Parent1ID, child2.Parent2ID = parent1.ID, parent2.ID
		return child1, child2
	}

	c1 := o.rng.Intn(size - 1)
	c2 := c1 + 1 + o.rng.Intn(size-c1)

	child1Points := make([]int, size)
	child2Points := make([]int, size)
	copy(child1Points[c1:c2], points1[c1:c2])
	copy(child2Points[c1:c2], points2[c1:c2])

	map1to2 := make(map[int]int, c2-c1)
	map2to1 := make(map[int]int, c2-c1)
	for i := c1; i < c2; i++ {
		map1to2[points1[i]] = points2[i]
		map2to1[points2[i]] = points1[i]
	}

	for i := 0; i < size; i++ {
		if i >= c1 && i < c2 {
			continue
		}
		v := points2[i]
		for {
			next, ok := map2to1[v]
			if !ok {
				break
			}
			v = next
		}
		child1Points[i] = v

		v = points1[i]
		for {
			next, ok := map1to2[v]
			if !ok {
				break
			}
			v = next
		}
		child2Points[i] = v
	}

	child1 := NewChromosome(separatorsFromParent(child1Points, parent1), parent1.NumVehicles)
	child2 := NewChromosome(separatorsFromParent(child2Points, parent2), parent2.NumVehicles)

	child1.Parent1ID, child1.Parent2ID = parent1.ID, parent2.ID
	child2.Parent1ID, child2.Parent2ID = parent1.ID, parent2.ID

	child1.Repair(size, o.rng)
	child2.Repair(size, o.rng)
	return child1, child2
}

// separatorsFromParent re-inserts separators so route sizes approximate
// the parent's route-size ratios; the last route absorbs the remainder.
// This only approximates the parent structure, repair rebalances when
// the proportional counts collide.
func separatorsFromParent(points []int, parent *Chromosome) []int {
	parentRoutes := parent.Routes()
	if len(parentRoutes) == 0 {
		return points
	}
	total := 0
	for _, r := range parentRoutes {
		total += len(r)
	}
	genes := make([]int, 0, len(points)+len(parentRoutes)-1)
	start := 0
	for _, r := range parentRoutes[:len(parentRoutes)-1] {
		count := int(float64(len(points)) * float64(len(r)) / float64(total))
		if count < 1 {
			count = 1
		}
		end := start + count
		if end > len(points) {
			end = len(points)
		}
		if start < end {
			genes = append(genes, points[start:end]...)
		}
		genes = append(genes, Separator)
		start = end
	}
	genes = append(genes, points[min(start, len(points)):]...)
	return genes
}

// SwapMutation exchanges two random points, leaving separators in place.
func (o *Operators) SwapMutation(c *Chromosome) *Chromosome {
	mutant := c.Clone()
	positions := pointPositions(mutant.Genes)
	if len(positions) < 2 {
		return mutant
	}
	perm := o.rng.Perm(len(positions))
	i, j := positions[perm[0]], positions[perm[1]]
	a, b := mutant.Genes[i], mutant.Genes[j]
	mutant.Genes[i], mutant.Genes[j] = b, a
	mutant.Mutation = fmt.Sprintf("SWAP(%s,%s)", PointLabel(a), PointLabel(b))
	return mutant
}

// InversionMutation reverses the points inside a random window of the
// point-only view. The window may span several routes: separators keep
// their relative offsets inside the window.
func (o *Operators) InversionMutation(c *Chromosome) *Chromosome {
	mutant := c.Clone()
	positions := pointPositions(mutant.Genes)
	if len(positions) < 2 {
		return mutant
	}

	idx1 := o.rng.Intn(len(positions) - 1)
	idx2 := idx1 + 1 + o.rng.Intn(len(positions)-idx1)

	lo := positions[idx1]
	hi := positions[idx2-1]

	var segment []int
	var sepOffsets []int
	for i := lo; i <= hi; i++ {
		if mutant.Genes[i] == Separator {
			sepOffsets = append(sepOffsets, len(segment))
		} else {
			segment = append(segment, mutant.Genes[i])
		}
	}

	for a, b := 0, len(segment)-1; a < b; a, b = a+1, b-1 {
		segment[a], segment[b] = segment[b], segment[a]
	}

	isSep := make(map[int]bool, len(sepOffsets))
	for _, p := range sepOffsets {
		isSep[p] = true
	}
	rebuilt := make([]int, 0, hi-lo+1)
	next := 0
	for pos := 0; pos < len(segment)+len(sepOffsets); pos++ {
		if isSep[pos] {
			rebuilt = append(rebuilt, Separator)
		} else {
			rebuilt = append(rebuilt, segment[next])
			next++
		}
	}
	copy(mutant.Genes[lo:hi+1], rebuilt)
	mutant.Mutation = fmt.Sprintf("INVERSION(%d-%d)", idx1, idx2)
	return mutant
}

// MoveMutation relocates one random point from one route to a random
// position in another. With fewer than two routes it degrades to a swap.
func (o *Operators) MoveMutation(c *Chromosome, numPoints int) *Chromosome {
	mutant := c.Clone()
	routes := mutant.Routes()
	if len(routes) < 2 {
		return o.SwapMutation(mutant)
	}

	src := o.rng.Intn(len(routes))
	dst := o.rng.Intn(len(routes))
	for dst == src {
		dst = o.rng.Intn(len(routes))
	}

	pi := o.rng.Intn(len(routes[src]))
	point := routes[src][pi]
	routes[src] = append(routes[src][:pi], routes[src][pi+1:]...)

	pos := 0
	if len(routes[dst]) > 0 {
		pos = o.rng.Intn(len(routes[dst]) + 1)
	}
	routes[dst] = append(routes[dst][:pos], append([]int{point}, routes[dst][pos:]...)...)

	// Rebuild, dropping the separator of any route left empty.
	genes := mutant.Genes[:0:0]
	for i, route := range routes {
		genes = append(genes, route...)
		if i < len(routes)-1 && len(route) > 0 {
			genes = append(genes, Separator)
		}
	}
	mutant.Genes = genes
	mutant.Mutation = fmt.Sprintf("MOVE(%s: V%d→V%d)", PointLabel(point), src+1, dst+1)
	mutant.Repair(numPoints, o.rng)
	return mutant
}

// Mutate applies one mutation kind chosen by weighted random pick.
func (o *Operators) Mutate(c *Chromosome, kinds []MutationKind, weights []float64, numPoints int) *Chromosome {
	switch pickWeighted(o.rng, kinds, weights) {
	case MutationInversion:
		return o.InversionMutation(c)
	case MutationMove:
		return o.MoveMutation(c, numPoints)
	default:
		return o.SwapMutation(c)
	}
}

func pointPositions(genes []int) []int {
	out := make([]int, 0, len(genes))
	for i, g := range genes {
		if g != Separator {
			out = append(out, i)
		}
	}
	return out
}

// pickWeighted selects an index proportionally to weights, mirroring the
// roulette over operator weights.
func pickWeighted(rng *rand.Rand, kinds []MutationKind, weights []float64) MutationKind {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return kinds[rng.Intn(len(kinds))]
	}
	r := rng.Float64() * sum
	var acc float64
	for i, w := range weights {
		acc += w
		if r <= acc {
			return kinds[i]
		}
	}
	return kinds[len(kinds)-1]
}
