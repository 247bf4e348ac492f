package genetic

import (
	"math"
	"testing"

	"routega/internal/model"
)

var testDepot = model.GeoPoint{Lat: 40.0, Lng: -3.0}

func testPoint(id int, lat, lng, weight float64) model.Point {
	return model.Point{
		ID:       id,
		Location: model.GeoPoint{Lat: lat, Lng: lng},
		Priority: model.PriorityMedium,
		WeightKg: weight,
	}
}

func bigVehicle() model.Vehicle {
	return model.Vehicle{ID: 1, CapacityKg: 1e6, CapacityM3: 1e6, AutonomyKm: 1e6}
}

func TestHaversine(t *testing.T) {
	a := model.GeoPoint{Lat: 40, Lng: -3}
	if d := HaversineKm(a, a); d != 0 {
		t.Fatalf("zero distance: got %v", d)
	}
	// One degree of latitude is roughly 111.2 km.
	b := model.GeoPoint{Lat: 41, Lng: -3}
	d := HaversineKm(a, b)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("1 degree latitude: got %v km", d)
	}
	if d2 := HaversineKm(b, a); math.Abs(d-d2) > 1e-9 {
		t.Fatalf("asymmetric: %v vs %v", d, d2)
	}
}

func TestDistanceMatrix(t *testing.T) {
	points := []model.Point{
		testPoint(1, 40.1, -3.0, 1),
		testPoint(2, 40.2, -3.1, 1),
		testPoint(3, 40.0, -3.2, 1),
	}
	m := NewDistanceMatrix(points, testDepot)

	for i := range points {
		for j := range points {
			want := HaversineKm(points[i].Location, points[j].Location)
			if got := m.Distance(i, j); math.Abs(got-want) > 1e-9 {
				t.Fatalf("Distance(%d,%d)=%v, want %v", i, j, got, want)
			}
		}
		want := HaversineKm(testDepot, points[i].Location)
		if got := m.Distance(Depot, i); math.Abs(got-want) > 1e-9 {
			t.Fatalf("depot distance to %d: got %v, want %v", i, got, want)
		}
	}

	// A route closes the loop: depot -> 0 -> 1 -> 2 -> depot.
	route := []int{0, 1, 2}
	want := m.Distance(Depot, 0) + m.Distance(0, 1) + m.Distance(1, 2) + m.Distance(2, Depot)
	if got := m.RouteDistance(route); math.Abs(got-want) > 1e-9 {
		t.Fatalf("RouteDistance: got %v, want %v", got, want)
	}
	if got := m.RouteDistance(nil); got != 0 {
		t.Fatalf("empty route: got %v", got)
	}
}

func TestEvaluateSingleVehicle(t *testing.T) {
	points := []model.Point{
		testPoint(1, 40.1, -3.0, 5),
		testPoint(2, 40.2, -3.1, 5),
		testPoint(3, 40.0, -3.2, 5),
	}
	eval, err := NewEvaluator(points, []model.Vehicle{bigVehicle()}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	c := NewChromosome([]int{0, 1, 2}, 1)
	fitness := eval.Evaluate(c)

	wantDist := eval.Matrix().RouteDistance([]int{0, 1, 2})
	if math.Abs(c.Breakdown.TotalDistance-wantDist) > 1e-9 {
		t.Fatalf("total distance: got %v, want %v", c.Breakdown.TotalDistance, wantDist)
	}
	// Single roomy vehicle: only distance and the vehicle-count term remain.
	want := wantDist + 3.0
	if math.Abs(fitness-want) > 1e-9 {
		t.Fatalf("fitness: got %v, want %v", fitness, want)
	}
	if c.Fitness != fitness {
		t.Fatalf("fitness not stored on chromosome")
	}
}

func TestCapacityPenaltyQuadratic(t *testing.T) {
	vehicle := model.Vehicle{ID: 1, CapacityKg: 10, CapacityM3: 1e6, AutonomyKm: 1e6}
	for _, tc := range []struct {
		weight float64
		want   float64
	}{
		{10, 0},
		{15, 25},
		{20, 100},
	} {
		points := []model.Point{testPoint(1, 40.1, -3.0, tc.weight)}
		eval, err := NewEvaluator(points, []model.Vehicle{vehicle}, testDepot, DefaultWeights())
		if err != nil {
			t.Fatal(err)
		}
		c := NewChromosome([]int{0}, 1)
		eval.Evaluate(c)
		if math.Abs(c.Breakdown.CapacityPenalty-tc.want) > 1e-9 {
			t.Fatalf("weight %v: capacity penalty %v, want %v", tc.weight, c.Breakdown.CapacityPenalty, tc.want)
		}
	}
}

func TestVolumeOverageWeighted(t *testing.T) {
	vehicle := model.Vehicle{ID: 1, CapacityKg: 1e6, CapacityM3: 1, AutonomyKm: 1e6}
	p := testPoint(1, 40.1, -3.0, 1)
	p.VolumeM3 = 3 // over by 2
	eval, err := NewEvaluator([]model.Point{p}, []model.Vehicle{vehicle}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	c := NewChromosome([]int{0}, 1)
	eval.Evaluate(c)
	if math.Abs(c.Breakdown.CapacityPenalty-40) > 1e-9 {
		t.Fatalf("volume penalty: got %v, want 40", c.Breakdown.CapacityPenalty)
	}
}

func TestAutonomyPenalty(t *testing.T) {
	vehicle := model.Vehicle{ID: 1, CapacityKg: 1e6, CapacityM3: 1e6, AutonomyKm: 0.001}
	points := []model.Point{testPoint(1, 40.5, -3.0, 1)}
	eval, err := NewEvaluator(points, []model.Vehicle{vehicle}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	c := NewChromosome([]int{0}, 1)
	eval.Evaluate(c)
	if c.Breakdown.AutonomyPenalty <= 0 {
		t.Fatalf("expected autonomy penalty, got %v", c.Breakdown.AutonomyPenalty)
	}
}

func TestPriorityPenalty(t *testing.T) {
	points := []model.Point{
		testPoint(1, 40.1, -3.0, 1),
		testPoint(2, 40.2, -3.0, 1),
		testPoint(3, 40.3, -3.0, 1),
		testPoint(4, 40.4, -3.0, 1),
	}
	points[3].Priority = model.PriorityCritical
	eval, err := NewEvaluator(points, []model.Vehicle{bigVehicle()}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}

	// Critical point last in a 4-stop route: position 3 past the first
	// third, penalty 100*3/4.
	late := NewChromosome([]int{0, 1, 2, 3}, 1)
	eval.Evaluate(late)
	if math.Abs(late.Breakdown.PriorityPenalty-75) > 1e-9 {
		t.Fatalf("late critical: penalty %v, want 75", late.Breakdown.PriorityPenalty)
	}

	early := NewChromosome([]int{3, 0, 1, 2}, 1)
	eval.Evaluate(early)
	if early.Breakdown.PriorityPenalty != 0 {
		t.Fatalf("early critical: penalty %v, want 0", early.Breakdown.PriorityPenalty)
	}
}

func TestBalancePenaltyVariance(t *testing.T) {
	points := []model.Point{
		testPoint(1, 40.1, -3.0, 10),
		testPoint(2, 40.2, -3.0, 2),
	}
	eval, err := NewEvaluator(points, []model.Vehicle{bigVehicle(), bigVehicle()}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	c := NewChromosome([]int{0, -1, 1}, 2)
	eval.Evaluate(c)
	// Loads 10 and 2, mean 6: population variance 16.
	if math.Abs(c.Breakdown.BalancePenalty-16) > 1e-9 {
		t.Fatalf("balance penalty: got %v, want 16", c.Breakdown.BalancePenalty)
	}
}

func TestDetailedMetrics(t *testing.T) {
	points := []model.Point{
		testPoint(1, 40.1, -3.0, 5),
		testPoint(2, 40.2, -3.1, 3),
	}
	vehicle := model.Vehicle{
		ID: 1, Name: "Van 1", CapacityKg: 100, CapacityM3: 10,
		AutonomyKm: 500, CostPerKm: 2, AverageSpeedKmh: 50,
	}
	eval, err := NewEvaluator(points, []model.Vehicle{vehicle}, testDepot, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	c := NewChromosome([]int{0, 1}, 1)
	d := eval.DetailedMetrics(c)

	if d.NumVehiclesUsed != 1 || d.TotalDeliveries != 2 {
		t.Fatalf("vehicles=%d deliveries=%d", d.NumVehiclesUsed, d.TotalDeliveries)
	}
	if d.CapacityViolations || d.AutonomyViolations || d.PriorityViolations {
		t.Fatalf("unexpected violations: %+v", d)
	}
	if len(d.Routes) != 1 {
		t.Fatalf("routes: %d", len(d.Routes))
	}
	r := d.Routes[0]
	if r.VehicleName != "Van 1" || r.LoadKg != 8 {
		t.Fatalf("route: %+v", r)
	}
	if math.Abs(r.CapacityUsage-8) > 1e-9 {
		t.Fatalf("capacity usage: %v", r.CapacityUsage)
	}
	if math.Abs(r.EstimatedCost-r.DistanceKm*2) > 1e-9 {
		t.Fatalf("cost: %v for %v km", r.EstimatedCost, r.DistanceKm)
	}
	if math.Abs(r.EstimatedHours-r.DistanceKm/50) > 1e-9 {
		t.Fatalf("hours: %v for %v km", r.EstimatedHours, r.DistanceKm)
	}
}

func TestNewEvaluatorValidation(t *testing.T) {
	if _, err := NewEvaluator(nil, []model.Vehicle{bigVehicle()}, testDepot, DefaultWeights()); err == nil {
		t.Fatal("expected error for zero points")
	}
	if _, err := NewEvaluator([]model.Point{testPoint(1, 40, -3, 1)}, nil, testDepot, DefaultWeights()); err == nil {
		t.Fatal("expected error for zero vehicles")
	}
	bad := DefaultWeights()
	bad.Distance = -1
	if _, err := NewEvaluator([]model.Point{testPoint(1, 40, -3, 1)}, []model.Vehicle{bigVehicle()}, testDepot, bad); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
