package genetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"routega/internal/model"
)

// State of the engine lifecycle.
type State int

const (
	StateUninitialized State = iota
	StatePopulationReady
	StateEvolving
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StatePopulationReady:
		return "population_ready"
	case StateEvolving:
		return "evolving"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// GenerationCallback is invoked synchronously after generation 0 and
// after every evolved generation.
type GenerationCallback func(e *Engine, generation int, best *Chromosome, avgFitness float64)

// Engine owns the population and drives the generational loop. The
// population slice is replaced wholesale each generation; nothing
// outside the engine mutates it.
type Engine struct {
	points   []model.Point
	vehicles []model.Vehicle
	cfg      Config

	eval    *Evaluator
	ops     *Operators
	tracker *Tracker
	rng     *rand.Rand

	population []*Chromosome
	best       *Chromosome
	generation int
	stagnant   int
	state      State

	bestHistory []float64
	avgHistory  []float64
	divHistory  []float64
}

// NewEngine validates all construction input eagerly (the only failure
// point: once built, evolution cannot fail) and wires the evaluator,
// operators and tracker together.
func NewEngine(points []model.Point, vehicles []model.Vehicle, depot model.GeoPoint, cfg Config, sink Sink) (*Engine, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no delivery points")
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("no vehicles")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	eval, err := NewEvaluator(points, vehicles, depot, cfg.Weights)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return &Engine{
		points:   points,
		vehicles: vehicles,
		cfg:      cfg,
		eval:     eval,
		ops:      NewOperators(rng),
		tracker:  NewTracker(cfg.ImprovementThreshold, sink),
		rng:      rng,
	}, nil
}

// Initialize builds, evaluates and sorts the seed population.
func (e *Engine) Initialize() {
	e.population = make([]*Chromosome, e.cfg.PopulationSize)
	for i := range e.population {
		e.population[i] = NewRandomChromosome(len(e.points), len(e.vehicles), e.rng)
	}
	e.evaluateAll(e.population)
	for _, c := range e.population {
		e.tracker.RecordSeed(c)
	}
	e.sortPopulation()
	e.best = e.population[0].Clone()
	e.state = StatePopulationReady
}

// Run evolves the configured number of generations and returns the
// best chromosome found. The callback fires after generation 0 and
// after every generation. Cancellation is cooperative: the context is
// checked once per generation boundary, never mid-operator.
func (e *Engine) Run(ctx context.Context, callback GenerationCallback) (*Chromosome, error) {
	if e.state == StateUninitialized {
		e.Initialize()
	}
	e.state = StateEvolving

	e.recordGeneration(0)
	if callback != nil {
		callback(e, 0, e.best, e.avgHistory[len(e.avgHistory)-1])
	}

	for gen := 1; gen <= e.cfg.NumGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			e.state = StateTerminated
			return e.best, err
		}
		e.generation = gen
		e.evolveGeneration()
		e.recordGeneration(gen)
		if callback != nil {
			callback(e, gen, e.best, e.avgHistory[len(e.avgHistory)-1])
		}
		if e.shouldStop() {
			break
		}
	}

	e.state = StateTerminated
	return e.best, nil
}

// shouldStop applies the optional early-stopping policies. Both are off
// by default so runs consume the whole generation budget.
func (e *Engine) shouldStop() bool {
	if e.cfg.StopAfterStagnation > 0 && e.stagnant >= e.cfg.StopAfterStagnation {
		return true
	}
	if e.cfg.StopBelowImprovement > 0 && len(e.bestHistory) >= 10 {
		ref := e.bestHistory[len(e.bestHistory)-10]
		if ref > 0 && (ref-e.best.Fitness)/ref < e.cfg.StopBelowImprovement {
			return true
		}
	}
	return false
}

// evolveGeneration produces the next population: elites survive as deep
// copies, the rest comes from selection, crossover and mutation over
// the previous population.
func (e *Engine) evolveGeneration() {
	eliteCount := int(float64(e.cfg.PopulationSize) * e.cfg.ElitismRate)
	next := make([]*Chromosome, 0, e.cfg.PopulationSize)
	for _, c := range e.population[:eliteCount] {
		next = append(next, c.Clone())
	}

	type crossRec struct{ p1, p2, c1, c2 *Chromosome }
	type mutRec struct {
		original, mutated *Chromosome
		slot              int
	}
	var crossed []crossRec
	var children []*Chromosome
	var pending []*Chromosome // children awaiting evaluation

	for len(next)+len(children) < e.cfg.PopulationSize {
		parent1, parent2 := e.selectParents()

		var child1, child2 *Chromosome
		if e.rng.Float64() < e.cfg.CrossoverRate {
			if e.cfg.Crossover == CrossoverPMX {
				child1, child2 = e.ops.PMXCrossover(parent1, parent2)
			} else {
				child1, child2 = e.ops.OrderCrossover(parent1, parent2)
			}
			crossed = append(crossed, crossRec{parent1, parent2, child1, child2})
			pending = append(pending, child1, child2)
		} else {
			child1, child2 = parent1.Clone(), parent2.Clone()
		}
		children = append(children, child1)
		if len(next)+len(children) < e.cfg.PopulationSize {
			children = append(children, child2)
		}
	}

	// Barrier: crossover children need fitness before mutation records
	// can state a before/after.
	e.evaluateAll(pending)
	for _, cr := range crossed {
		e.tracker.RecordCrossover(e.generation, cr.p1, cr.p2, cr.c1, cr.c2, e.cfg.Crossover)
	}

	var mutations []mutRec
	pending = pending[:0]
	for i, child := range children {
		if e.rng.Float64() < e.cfg.MutationRate {
			mutant := e.ops.Mutate(child, e.cfg.MutationKinds, e.cfg.MutationWeights, len(e.points))
			mutant.Fitness = math.Inf(1)
			mutant.Breakdown = nil
			mutant.ID = 0
			mutations = append(mutations, mutRec{original: child, mutated: mutant, slot: i})
			pending = append(pending, mutant)
		}
	}
	e.evaluateAll(pending)
	for _, m := range mutations {
		e.tracker.RecordMutation(e.generation, m.original, m.mutated)
		children[m.slot] = m.mutated
	}

	next = append(next, children...)
	e.population = next[:e.cfg.PopulationSize]
	e.sortPopulation()

	if current := e.population[0]; current.Fitness < e.best.Fitness {
		e.best = current.Clone()
		e.stagnant = 0
	} else {
		e.stagnant++
	}
}

// selectParents picks two parents with the configured strategy,
// retrying parent2 up to 10 times when it shares parent1's id.
func (e *Engine) selectParents() (*Chromosome, *Chromosome) {
	pick := func() *Chromosome {
		if e.cfg.Selection == SelectionRoulette {
			return e.ops.Roulette(e.population)
		}
		return e.ops.Tournament(e.population, e.cfg.TournamentSize)
	}
	parent1 := pick()
	parent2 := pick()
	for attempts := 0; parent2.ID == parent1.ID && attempts < 10; attempts++ {
		parent2 = pick()
	}
	return parent1, parent2
}

// evaluateAll scores every chromosome, on a bounded worker pool when
// configured. The distance cache is read-only and each chromosome's
// fitness write is independent, so evaluation parallelizes cleanly.
func (e *Engine) evaluateAll(chroms []*Chromosome) {
	if e.cfg.Workers <= 1 || len(chroms) < 2 {
		for _, c := range chroms {
			e.eval.Evaluate(c)
		}
		return
	}
	workers := e.cfg.Workers
	if workers > len(chroms) {
		workers = len(chroms)
	}
	jobs := make(chan *Chromosome)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for c := range jobs {
				e.eval.Evaluate(c)
			}
		}()
	}
	for _, c := range chroms {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
}

func (e *Engine) sortPopulation() {
	sort.SliceStable(e.population, func(i, j int) bool {
		return e.population[i].Fitness < e.population[j].Fitness
	})
}

func (e *Engine) recordGeneration(gen int) {
	var sum float64
	for _, c := range e.population {
		sum += c.Fitness
	}
	avg := sum / float64(len(e.population))
	diversity := e.tracker.Diversity(e.population)

	e.bestHistory = append(e.bestHistory, e.best.Fitness)
	e.avgHistory = append(e.avgHistory, avg)
	e.divHistory = append(e.divHistory, diversity)

	e.tracker.RecordGeneration(gen, e.population, e.best, avg, diversity)
}

// Best returns the all-time best chromosome.
func (e *Engine) Best() *Chromosome { return e.best }

// Generation returns the index of the last evolved generation.
func (e *Engine) Generation() int { return e.generation }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Tracker exposes the genealogy tracker for reporting consumers.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Population returns a snapshot copy of the current population.
func (e *Engine) Population() []*Chromosome {
	return append([]*Chromosome(nil), e.population...)
}

// BestHistory returns best fitness per recorded generation.
func (e *Engine) BestHistory() []float64 { return append([]float64(nil), e.bestHistory...) }

// AvgHistory returns average fitness per recorded generation.
func (e *Engine) AvgHistory() []float64 { return append([]float64(nil), e.avgHistory...) }

// DiversityHistory returns diversity per recorded generation.
func (e *Engine) DiversityHistory() []float64 { return append([]float64(nil), e.divHistory...) }

// BestSolutionDetails reports per-route metrics for the best chromosome.
func (e *Engine) BestSolutionDetails() SolutionDetails {
	return e.eval.DetailedMetrics(e.best)
}

// Statistics summarizes operator usage and configuration.
type Statistics struct {
	CurrentGeneration int            `json:"currentGeneration"`
	TotalCrossovers   int            `json:"totalCrossovers"`
	TotalMutations    int            `json:"totalMutations"`
	MutationKinds     map[string]int `json:"mutationTypes"`
	CrossoverKinds    map[string]int `json:"crossoverTypes"`
	SelectionType     SelectionKind  `json:"selectionType"`
	CrossoverType     CrossoverKind  `json:"crossoverType"`
	MutationRate      float64        `json:"mutationRate"`
	CrossoverRate     float64        `json:"crossoverRate"`
	PopulationSize    int            `json:"populationSize"`
}

func (e *Engine) Statistics() Statistics {
	mk := make(map[string]int, len(e.tracker.MutationKinds))
	for k, v := range e.tracker.MutationKinds {
		mk[k] = v
	}
	ck := make(map[string]int, len(e.tracker.CrossoverKinds))
	for k, v := range e.tracker.CrossoverKinds {
		ck[k] = v
	}
	return Statistics{
		CurrentGeneration: e.generation,
		TotalCrossovers:   e.tracker.Crossovers,
		TotalMutations:    e.tracker.Mutations,
		MutationKinds:     mk,
		CrossoverKinds:    ck,
		SelectionType:     e.cfg.Selection,
		CrossoverType:     e.cfg.Crossover,
		MutationRate:      e.cfg.MutationRate,
		CrossoverRate:     e.cfg.CrossoverRate,
		PopulationSize:    e.cfg.PopulationSize,
	}
}
