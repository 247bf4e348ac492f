package model

// Core domain types consumed by the optimizer.

// Priority levels for a delivery, ordered from most to least urgent.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight returns the numeric weight of the priority used by fitness scoring.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 10
	case PriorityHigh:
		return 5
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// MaxDelayHours returns the maximum acceptable delay for the priority.
func (p Priority) MaxDelayHours() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 6
	default:
		return 24
	}
}

// Valid reports whether p is one of the recognized priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a delivery point. Immutable once loaded.
type Point struct {
	ID             int      `json:"id"`
	Name           string   `json:"name,omitempty"`
	Location       GeoPoint `json:"location"`
	Address        string   `json:"address,omitempty"`
	Priority       Priority `json:"priority"`
	WeightKg       float64  `json:"weightKg"`
	VolumeM3       float64  `json:"volumeM3"`
	ServiceTimeMin int      `json:"serviceTimeMin,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Vehicle describes a delivery vehicle. Immutable per run; load and
// distance accounting happens inside fitness evaluation, never here.
type Vehicle struct {
	ID              int     `json:"id"`
	Name            string  `json:"name,omitempty"`
	CapacityKg      float64 `json:"capacityKg"`
	CapacityM3      float64 `json:"capacityM3"`
	AutonomyKm      float64 `json:"autonomyKm"`
	CostPerKm       float64 `json:"costPerKm,omitempty"`
	AverageSpeedKmh float64 `json:"averageSpeedKmh,omitempty"`
}
