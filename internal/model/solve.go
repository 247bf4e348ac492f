package model

// SolveRequest is the payload accepted by POST /v1/solve.
type SolveRequest struct {
	Points   []Point        `json:"points"`
	Vehicles []Vehicle      `json:"vehicles"`
	Depot    GeoPoint       `json:"depot"`
	Config   map[string]any `json:"config,omitempty"`
	Async    bool           `json:"async,omitempty"`
}

// GenerationSnapshot is the event published to stream consumers after
// every generation. Carries the minimum per-generation record plus the
// best chromosome's route descriptor.
type GenerationSnapshot struct {
	RunID          string  `json:"runId"`
	Generation     int     `json:"generation"`
	BestFitness    float64 `json:"bestFitness"`
	AvgFitness     float64 `json:"avgFitness"`
	WorstFitness   float64 `json:"worstFitness"`
	Diversity      float64 `json:"diversity"`
	BestDescriptor string  `json:"bestDescriptor"`
	ActiveVehicles int     `json:"numActiveVehicles"`
}
