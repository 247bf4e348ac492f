package genetic

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Separator delimits consecutive vehicle routes inside the flat gene
// sequence. Example: [1 3 5 -1 2 4] means vehicle 1 visits 1,3,5 and
// vehicle 2 visits 2,4.
const Separator = -1

// Chromosome is one candidate solution: the ordered routes of all
// vehicles encoded as point indices with separators.
type Chromosome struct {
	Genes       []int
	NumVehicles int

	// Fitness is +Inf until evaluated. Lower is better.
	Fitness   float64
	Breakdown *FitnessBreakdown

	ID         int64
	Generation int
	Parent1ID  int64
	Parent2ID  int64
	Mutation   string
}

// NewChromosome wraps a gene sequence. Fitness starts undefined.
func NewChromosome(genes []int, numVehicles int) *Chromosome {
	return &Chromosome{Genes: genes, NumVehicles: numVehicles, Fitness: math.Inf(1)}
}

// Routes splits the gene sequence on separators. Empty segments are
// dropped, so every returned route is non-empty.
func (c *Chromosome) Routes() [][]int {
	var routes [][]int
	var cur []int
	for _, g := range c.Genes {
		if g == Separator {
			if len(cur) > 0 {
				routes = append(routes, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, g)
	}
	if len(cur) > 0 {
		routes = append(routes, cur)
	}
	return routes
}

// Points returns the point indices in gene order, separators stripped.
func (c *Chromosome) Points() []int {
	out := make([]int, 0, len(c.Genes))
	for _, g := range c.Genes {
		if g != Separator {
			out = append(out, g)
		}
	}
	return out
}

// ActiveVehicles counts the non-empty routes.
func (c *Chromosome) ActiveVehicles() int {
	return len(c.Routes())
}

// IsValid reports whether every point appears exactly once and no two
// separators are adjacent.
func (c *Chromosome) IsValid() bool {
	seen := map[int]bool{}
	for _, g := range c.Genes {
		if g == Separator {
			continue
		}
		if seen[g] {
			return false
		}
		seen[g] = true
	}
	for i := 0; i+1 < len(c.Genes); i++ {
		if c.Genes[i] == Separator && c.Genes[i+1] == Separator {
			return false
		}
	}
	return true
}

/// Repair makes the chromosome valid over the point universe 0..numPoints-1:
// duplicates are dropped (first occurrence wins), missing points are
// appended to randomly chosen routes, and doubled/leading/trailing
// separators are stripped. Repairing a valid chromosome is a no-op.
func (c *Chromosome) Repair(numPoints int, rng *rand.Rand) {
	// Drop duplicate points, keep separators in place.
	seen := map[int]bool{}
	genes := c.Genes[:0:0]
	for _, g := range c.Genes {
		if g == Separator {
			genes = append(genes, g)
			continue
		}
		if !seen[g] {
			seen[g] = true
			genes = append(genes, g)
		}
	}
	c.Genes = genes

	var missing []int
	for p := 0; p < numPoints; p++ {
		if !seen[p] {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		rng.Shuffle(len(missing), func(i, j int) { missing[i], missing[j] = missing[j], missing[i] })
		routes := c.Routes()
		if len(routes) == 0 {
			routes = [][]int{{}}
		}
		for _, p := range missing {
			i := rng.Intn(len(routes))
			routes[i] = append(routes[i], p)
		}
		genes = genes[:0]
		for i, route := range routes {
			genes = append(genes, route...)
			if i < len(routes)-1 {
				genes = append(genes, Separator)
			}
		}
		c.Genes = genes
	}

	// Strip doubled and leading separators.
	cleaned := c.Genes[:0:0]
	prevSep := false
	for _, g := range c.Genes {
		if g == Separator {
			if !prevSep && len(cleaned) > 0 {
				cleaned = append(cleaned, g)
				prevSep = true
			}
			continue
		}
		cleaned = append(cleaned, g)
		prevSep = false
	}
	if n := len(cleaned); n > 0 && cleaned[n-1] == Separator {
		cleaned = cleaned[:n-1]
	}
	c.Genes = cleaned
}

// Clone returns a deep copy. Identity and lineage fields carry over.
func (c *Chromosome) Clone() *Chromosome {
	out := &Chromosome{
		Genes:       append([]int(nil), c.Genes...),
		NumVehicles: c.NumVehicles,
		Fitness:     c.Fitness,
		ID:          c.ID,
		Generation:  c.Generation,
		Parent1ID:   c.Parent1ID,
		Parent2ID:   c.Parent2ID,
		Mutation:    c.Mutation,
	}
	if c.Breakdown != nil {
		b := *c.Breakdown
		b.RouteDistances = append([]float64(nil), c.Breakdown.RouteDistances...)
		b.RouteLoads = append([]float64(nil), c.Breakdown.RouteLoads...)
		out.Breakdown = &b
	}
	return out
}

// Descriptor renders the routes as "V1:[A,B] | V2:[C]".
func (c *Chromosome) Descriptor() string {
	routes := c.Routes()
	parts := make([]string, 0, len(routes))
	for i, route := range routes {
		labels := make([]string, len(route))
		for j, p := range route {
			labels[j] = PointLabel(p)
		}
		parts = append(parts, fmt.Sprintf("V%d:[%s]", i+1, strings.Join(labels, ",")))
	}
	return strings.Join(parts, " | ")
}

func (c *Chromosome) String() string {
	return fmt.Sprintf("Chromosome(fitness=%.2f, routes=%d, genes=%s)", c.Fitness, c.ActiveVehicles(), c.Descriptor())
}

// PointLabel maps a point index to a short label: 0-25 -> A-Z,
// 26-51 -> A1-Z1, and so on.
func PointLabel(index int) string {
	letter := string(rune('A' + index%26))
	if cycle := index / 26; cycle > 0 {
		return fmt.Sprintf("%s%d", letter, cycle)
	}
	return letter
}

// NewRandomChromosome builds a valid random chromosome. Points are
// shuffled and split into near-equal contiguous blocks, one per vehicle;
// with fewer points than vehicles the extra vehicles stay idle.
func NewRandomChromosome(numPoints, numVehicles int, rng *rand.Rand) *Chromosome {
	points := rng.Perm(numPoints)

	var genes []int
	if numPoints >= numVehicles {
		per := numPoints / numVehicles
		rem := numPoints % numVehicles
		start := 0
		for v := 0; v < numVehicles; v++ {
			end := start + per
			if v < rem {
				end++
			}
			genes = append(genes, points[start:end]...)
			if v < numVehicles-1 {
				genes = append(genes, Separator)
			}
			start = end
		}
	} else {
		genes = append(genes, points...)
		if n := min(numVehicles-1, numPoints-1); n > 0 {
			for _, pos := range randSample(rng, 1, len(genes), n) {
				genes = append(genes, 0)
				copy(genes[pos+1:], genes[pos:])
				genes[pos] = Separator
			}
		}
	}

	c := NewChromosome(genes, numVehicles)
	c.Repair(numPoints, rng)
	return c
}

// randSample picks k distinct ints from [lo, hi), returned in descending
// order so in-place insertions do not shift pending positions.
func randSample(rng *rand.Rand, lo, hi, k int) []int {
	n := hi - lo
	perm := rng.Perm(n)
	out := make([]int, 0, k)
	for _, v := range perm[:k] {
		out = append(out, lo+v)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] > out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
