package genetic

import "fmt"

// MutationKind enumerates the closed set of mutation operators.
type MutationKind string

const (
	MutationSwap      MutationKind = "swap"
	MutationInversion MutationKind = "inversion"
	MutationMove      MutationKind = "move"
)

// CrossoverKind selects the recombination operator.
type CrossoverKind string

const (
	CrossoverOrder CrossoverKind = "order"
	CrossoverPMX   CrossoverKind = "pmx"
)

// SelectionKind selects the parent-choice strategy.
type SelectionKind string

const (
	SelectionTournament SelectionKind = "tournament"
	SelectionRoulette   SelectionKind = "roulette"
)

// Config holds every tunable of the evolution engine. Validated once at
// engine construction; the engine never fails afterwards.
type Config struct {
	PopulationSize int     `json:"populationSize" yaml:"population_size"`
	NumGenerations int     `json:"numGenerations" yaml:"num_generations"`
	CrossoverRate  float64 `json:"crossoverRate" yaml:"crossover_rate"`
	MutationRate   float64 `json:"mutationRate" yaml:"mutation_rate"`
	ElitismRate    float64 `json:"elitismRate" yaml:"elitism_rate"`
	TournamentSize int     `json:"tournamentSize" yaml:"tournament_size"`

	Weights Weights `json:"fitnessWeights" yaml:"fitness_weights"`

	MutationKinds   []MutationKind `json:"mutationTypes" yaml:"mutation_types"`
	MutationWeights []float64      `json:"mutationWeights" yaml:"mutation_weights"`
	Crossover       CrossoverKind  `json:"crossoverType" yaml:"crossover_type"`
	Selection       SelectionKind  `json:"selectionType" yaml:"selection_type"`

	// Seed of the injected random source; 0 means time-based.
	Seed int64 `json:"seed,omitempty" yaml:"seed"`

	// Workers > 1 enables parallel fitness evaluation inside one
	// generation. The sorted-population rebuild stays the barrier.
	Workers int `json:"workers,omitempty" yaml:"workers"`

	// Optional early stopping. Both default off: runs use the full
	// generation budget unless a caller opts in.
	StopAfterStagnation  int     `json:"stopAfterStagnation,omitempty" yaml:"stop_after_stagnation"`
	StopBelowImprovement float64 `json:"stopBelowImprovement,omitempty" yaml:"stop_below_improvement"`

	// ImprovementThreshold is the significant-event fraction (default 0.05).
	ImprovementThreshold float64 `json:"improvementThreshold,omitempty" yaml:"improvement_threshold"`
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		PopulationSize:       100,
		NumGenerations:       500,
		CrossoverRate:        0.8,
		MutationRate:         0.3,
		ElitismRate:          0.1,
		TournamentSize:       3,
		Weights:              DefaultWeights(),
		MutationKinds:        []MutationKind{MutationSwap, MutationInversion, MutationMove},
		MutationWeights:      []float64{0.4, 0.3, 0.3},
		Crossover:            CrossoverOrder,
		Selection:            SelectionTournament,
		ImprovementThreshold: 0.05,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0 (got %d)", c.PopulationSize)
	}
	if c.NumGenerations <= 0 {
		return fmt.Errorf("number of generations must be > 0 (got %d)", c.NumGenerations)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return fmt.Errorf("crossover rate must be in [0,1] (got %v)", c.CrossoverRate)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0,1] (got %v)", c.MutationRate)
	}
	if c.ElitismRate < 0 || c.ElitismRate > 1 {
		return fmt.Errorf("elitism rate must be in [0,1] (got %v)", c.ElitismRate)
	}
	if c.TournamentSize <= 0 {
		return fmt.Errorf("tournament size must be > 0 (got %d)", c.TournamentSize)
	}
	if err := c.Weights.validate(); err != nil {
		return err
	}
	if len(c.MutationKinds) == 0 {
		return fmt.Errorf("at least one mutation type is required")
	}
	if len(c.MutationKinds) != len(c.MutationWeights) {
		return fmt.Errorf("mutation types and weights must match (%d types, %d weights)",
			len(c.MutationKinds), len(c.MutationWeights))
	}
	for _, k := range c.MutationKinds {
		switch k {
		case MutationSwap, MutationInversion, MutationMove:
		default:
			return fmt.Errorf("unknown mutation type %q", k)
		}
	}
	for _, w := range c.MutationWeights {
		if w < 0 {
			return fmt.Errorf("mutation weights must be >= 0 (got %v)", w)
		}
	}
	switch c.Crossover {
	case CrossoverOrder, CrossoverPMX:
	default:
		return fmt.Errorf("unknown crossover type %q", c.Crossover)
	}
	switch c.Selection {
	case SelectionTournament, SelectionRoulette:
	default:
		return fmt.Errorf("unknown selection type %q", c.Selection)
	}
	if c.StopAfterStagnation < 0 {
		return fmt.Errorf("stagnation limit must be >= 0 (got %d)", c.StopAfterStagnation)
	}
	if c.StopBelowImprovement < 0 || c.StopBelowImprovement >= 1 {
		return fmt.Errorf("improvement stop threshold must be in [0,1) (got %v)", c.StopBelowImprovement)
	}
	return nil
}
