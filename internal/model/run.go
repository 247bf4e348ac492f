package model

import "encoding/json"

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// Run is the persisted record of one optimization run.
type Run struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"createdAt"`
	CompletedAt string          `json:"completedAt,omitempty"`
	NumPoints   int             `json:"numPoints"`
	NumVehicles int             `json:"numVehicles"`
	Generations int             `json:"generations"`
	BestFitness float64         `json:"bestFitness,omitempty"`
	Error       string          `json:"error,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Statistics  json.RawMessage `json:"statistics,omitempty"`
}

// GenerationRecord is the per-generation log entry. Appended once per
// generation; never updated.
type GenerationRecord struct {
	Generation      int     `json:"generation"`
	Timestamp       string  `json:"timestamp"`
	BestFitness     float64 `json:"bestFitness"`
	AvgFitness      float64 `json:"avgFitness"`
	WorstFitness    float64 `json:"worstFitness"`
	Diversity       float64 `json:"diversity"`
	BestID          int64   `json:"bestChromosomeId"`
	BestGenes       string  `json:"bestGenes"`
	ActiveVehicles  int     `json:"numActiveVehicles"`
	FitnessDetails  any     `json:"fitnessComponents,omitempty"`
}

// Significant event types.
const (
	EventSignificantImprovement = "SIGNIFICANT_IMPROVEMENT"
	EventBeneficialMutation     = "BENEFICIAL_MUTATION"
)

type SignificantEvent struct {
	Generation   int            `json:"generation"`
	Timestamp    string         `json:"timestamp"`
	EventType    string         `json:"eventType"`
	ChromosomeID int64          `json:"chromosomeId"`
	Genes        string         `json:"genes"`
	Fitness      float64        `json:"fitness"`
	Details      map[string]any `json:"details,omitempty"`
}

// Genealogy entry types.
const (
	OriginSeed      = "seed"
	OriginCrossover = "crossover"
	OriginMutation  = "mutation"
)

// GenealogyEntry records the origin of one chromosome.
type GenealogyEntry struct {
	ID            int64   `json:"id"`
	Generation    int     `json:"generation"`
	Type          string  `json:"type"`
	Parent1ID     int64   `json:"parent1Id,omitempty"`
	Parent2ID     int64   `json:"parent2Id,omitempty"`
	ParentID      int64   `json:"parentId,omitempty"`
	MutationType  string  `json:"mutationType,omitempty"`
	Genes         string  `json:"genes"`
	GenesBefore   string  `json:"genesBefore,omitempty"`
	Fitness       float64 `json:"fitness"`
	FitnessBefore float64 `json:"fitnessBefore,omitempty"`
	FitnessChange float64 `json:"fitnessChange,omitempty"`
}

// Subscription is a webhook subscriber for run events.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
