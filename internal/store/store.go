package store

import (
	"context"
	"encoding/json"
	"errors"

	"routega/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, status, cursor string, limit int) (items []model.Run, nextCursor string, err error)
	MarkRunRunning(ctx context.Context, id string) error
	CompleteRun(ctx context.Context, id string, bestFitness float64, generations int, details, statistics json.RawMessage) error
	FailRun(ctx context.Context, id, errMsg string) error
	CancelRun(ctx context.Context, id string) error

	// Evolution history
	AppendGeneration(ctx context.Context, runID string, rec model.GenerationRecord) error
	ListGenerations(ctx context.Context, runID string, fromGeneration, limit int) ([]model.GenerationRecord, error)
	AppendEvent(ctx context.Context, runID string, ev model.SignificantEvent) error
	ListEvents(ctx context.Context, runID string) ([]model.SignificantEvent, error)

	// Genealogy
	SaveGenealogy(ctx context.Context, runID string, entries map[int64]model.GenealogyEntry) error
	GetGenealogy(ctx context.Context, runID string) (map[int64]model.GenealogyEntry, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	SubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")
