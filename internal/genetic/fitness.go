package genetic

import (
	"fmt"

	"routega/internal/model"
)

// Weights scales each fitness component. Lower total fitness is better.
type Weights struct {
	Distance    float64 `json:"distance" yaml:"distance"`
	Capacity    float64 `json:"capacity" yaml:"capacity"`
	Autonomy    float64 `json:"autonomy" yaml:"autonomy"`
	Priority    float64 `json:"priority" yaml:"priority"`
	Balance     float64 `json:"balance" yaml:"balance"`
	NumVehicles float64 `json:"numVehicles" yaml:"num_vehicles"`
}

// DefaultWeights mirrors the tuning the optimizer ships with.
func DefaultWeights() Weights {
	return Weights{
		Distance:    1.0,
		Capacity:    10.0,
		Autonomy:    10.0,
		Priority:    5.0,
		Balance:     2.0,
		NumVehicles: 3.0,
	}
}

func (w Weights) validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"distance", w.Distance},
		{"capacity", w.Capacity},
		{"autonomy", w.Autonomy},
		{"priority", w.Priority},
		{"balance", w.Balance},
		{"num_vehicles", w.NumVehicles},
	} {
		if f.v < 0 {
			return fmt.Errorf("fitness weight %q must be >= 0 (got %v)", f.name, f.v)
		}
	}
	return nil
}

// FitnessBreakdown is the per-component decomposition stored on every
// evaluated chromosome.
type FitnessBreakdown struct {
	TotalDistance   float64   `json:"totalDistance"`
	CapacityPenalty float64   `json:"capacityPenalty"`
	AutonomyPenalty float64   `json:"autonomyPenalty"`
	PriorityPenalty float64   `json:"priorityPenalty"`
	BalancePenalty  float64   `json:"balancePenalty"`
	ActiveVehicles  int       `json:"numVehicles"`
	RouteDistances  []float64 `json:"routeDistances"`
	RouteLoads      []float64 `json:"routeLoads"`
}

// Evaluator computes the multi-criteria fitness of a chromosome.
// Vehicles are assigned round-robin by route index.
type Evaluator struct {
	points   []model.Point
	vehicles []model.Vehicle
	matrix   *DistanceMatrix
	weights  Weights
}

func NewEvaluator(points []model.Point, vehicles []model.Vehicle, depot model.GeoPoint, weights Weights) (*Evaluator, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("evaluator needs at least one delivery point")
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("evaluator needs at least one vehicle")
	}
	if err := weights.validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		points:   points,
		vehicles: vehicles,
		matrix:   NewDistanceMatrix(points, depot),
		weights:  weights,
	}, nil
}

// Matrix exposes the shared read-only distance cache.
func (e *Evaluator) Matrix() *DistanceMatrix { return e.matrix }

// Evaluate scores the chromosome and stores both the scalar fitness and
// the component breakdown on it.
func (e *Evaluator) Evaluate(c *Chromosome) float64 {
	routes := c.Routes()

	b := &FitnessBreakdown{
		RouteDistances: make([]float64, 0, len(routes)),
		RouteLoads:     make([]float64, 0, len(routes)),
	}

	for ri, route := range routes {
		vehicle := e.vehicles[ri%len(e.vehicles)]

		dist := e.matrix.RouteDistance(route)
		b.RouteDistances = append(b.RouteDistances, dist)
		b.TotalDistance += dist

		if over := dist - vehicle.AutonomyKm; over > 0 {
			b.AutonomyPenalty += over * over
		}

		var weight, volume float64
		for _, p := range route {
			weight += e.points[p].WeightKg
			volume += e.points[p].VolumeM3
		}
		b.RouteLoads = append(b.RouteLoads, weight)

		if over := weight - vehicle.CapacityKg; over > 0 {
			b.CapacityPenalty += over * over
		}
		// Volume overruns are weighted ten times heavier: volume is the
		// harder constraint to work around in the field.
		if over := volume - vehicle.CapacityM3; over > 0 {
			b.CapacityPenalty += over * over * 10
		}

		// Critical points belong in the first third of a route, high
		// priority in the first two thirds.
		for pos, p := range route {
			switch e.points[p].Priority {
			case model.PriorityCritical:
				if pos > len(route)/3 {
					b.PriorityPenalty += 100 * float64(pos) / float64(len(route))
				}
			case model.PriorityHigh:
				if pos > 2*len(route)/3 {
					b.PriorityPenalty += 50 * float64(pos) / float64(len(route))
				}
			}
		}
	}

	// Load imbalance: population variance of per-route loads.
	if n := len(b.RouteLoads); n > 0 {
		var sum float64
		for _, l := range b.RouteLoads {
			sum += l
		}
		avg := sum / float64(n)
		var variance float64
		for _, l := range b.RouteLoads {
			variance += (l - avg) * (l - avg)
		}
		b.BalancePenalty = variance / float64(n)
	}

	b.ActiveVehicles = len(routes)

	fitness := e.weights.Distance*b.TotalDistance +
		e.weights.Capacity*b.CapacityPenalty +
		e.weights.Autonomy*b.AutonomyPenalty +
		e.weights.Priority*b.PriorityPenalty +
		e.weights.Balance*b.BalancePenalty +
		e.weights.NumVehicles*float64(b.ActiveVehicles)

	c.Breakdown = b
	c.Fitness = fitness
	return fitness
}

// RouteDetail describes one vehicle route of a finished solution.
type RouteDetail struct {
	VehicleID       int      `json:"vehicleId"`
	VehicleName     string   `json:"vehicleName"`
	NumDeliveries   int      `json:"numDeliveries"`
	DistanceKm      float64  `json:"distanceKm"`
	AutonomyKm      float64  `json:"autonomyKm"`
	LoadKg          float64  `json:"loadKg"`
	CapacityKg      float64  `json:"capacityKg"`
	CapacityUsage   float64  `json:"capacityUsagePct"`
	EstimatedCost   float64  `json:"estimatedCost,omitempty"`
	EstimatedHours  float64  `json:"estimatedHours,omitempty"`
	Points          []string `json:"points"`
}

// SolutionDetails is the full report derived from a chromosome.
type SolutionDetails struct {
	Fitness            float64       `json:"fitness"`
	TotalDistanceKm    float64       `json:"totalDistanceKm"`
	NumVehiclesUsed    int           `json:"numVehiclesUsed"`
	CapacityViolations bool          `json:"capacityViolations"`
	AutonomyViolations bool          `json:"autonomyViolations"`
	PriorityViolations bool          `json:"priorityViolations"`
	AvgRouteDistanceKm float64       `json:"avgRouteDistanceKm"`
	MaxRouteDistanceKm float64       `json:"maxRouteDistanceKm"`
	MinRouteDistanceKm float64       `json:"minRouteDistanceKm"`
	AvgVehicleLoadKg   float64       `json:"avgVehicleLoadKg"`
	TotalDeliveries    int           `json:"totalDeliveries"`
	Routes             []RouteDetail `json:"routes"`
}

// DetailedMetrics derives per-route usage from the stored breakdown,
// evaluating first only if the breakdown is absent.
func (e *Evaluator) DetailedMetrics(c *Chromosome) SolutionDetails {
	if c.Breakdown == nil {
		e.Evaluate(c)
	}
	b := c.Breakdown
	routes := c.Routes()

	d := SolutionDetails{
		Fitness:            c.Fitness,
		TotalDistanceKm:    b.TotalDistance,
		NumVehiclesUsed:    b.ActiveVehicles,
		CapacityViolations: b.CapacityPenalty > 0,
		AutonomyViolations: b.AutonomyPenalty > 0,
		PriorityViolations: b.PriorityPenalty > 0,
	}

	if n := len(b.RouteDistances); n > 0 {
		var sum float64
		d.MinRouteDistanceKm = b.RouteDistances[0]
		for _, rd := range b.RouteDistances {
			sum += rd
			if rd > d.MaxRouteDistanceKm {
				d.MaxRouteDistanceKm = rd
			}
			if rd < d.MinRouteDistanceKm {
				d.MinRouteDistanceKm = rd
			}
		}
		d.AvgRouteDistanceKm = sum / float64(n)
	}
	if n := len(b.RouteLoads); n > 0 {
		var sum float64
		for _, l := range b.RouteLoads {
			sum += l
		}
		d.AvgVehicleLoadKg = sum / float64(n)
	}

	for ri, route := range routes {
		d.TotalDeliveries += len(route)
		vehicle := e.vehicles[ri%len(e.vehicles)]
		name := vehicle.Name
		if name == "" {
			name = fmt.Sprintf("Vehicle %d", ri%len(e.vehicles)+1)
		}
		rd := RouteDetail{
			VehicleID:     ri%len(e.vehicles) + 1,
			VehicleName:   name,
			NumDeliveries: len(route),
			AutonomyKm:    vehicle.AutonomyKm,
			CapacityKg:    vehicle.CapacityKg,
			Points:        make([]string, len(route)),
		}
		if ri < len(b.RouteDistances) {
			rd.DistanceKm = b.RouteDistances[ri]
		}
		if ri < len(b.RouteLoads) {
			rd.LoadKg = b.RouteLoads[ri]
			if vehicle.CapacityKg > 0 {
				rd.CapacityUsage = rd.LoadKg / vehicle.CapacityKg * 100
			}
		}
		if vehicle.CostPerKm > 0 {
			rd.EstimatedCost = rd.DistanceKm * vehicle.CostPerKm
		}
		if vehicle.AverageSpeedKmh > 0 {
			rd.EstimatedHours = rd.DistanceKm / vehicle.AverageSpeedKmh
		}
		for j, p := range route {
			rd.Points[j] = PointLabel(p)
		}
		d.Routes = append(d.Routes, rd)
	}

	return d
}
