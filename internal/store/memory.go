package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"routega/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	runs        map[string]model.Run
	runOrder    []string // creation order, newest appended last
	generations map[string][]model.GenerationRecord
	events      map[string][]model.SignificantEvent
	genealogies map[string]map[int64]model.GenealogyEntry
	subs        map[string]model.Subscription
	subOrder    []string
}

func NewMemory() *Memory {
	return &Memory{
		runs:        map[string]model.Run{},
		generations: map[string][]model.GenerationRecord{},
		events:      map[string][]model.SignificantEvent{},
		genealogies: map[string]map[int64]model.GenealogyEntry{},
		subs:        map[string]model.Subscription{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunPending
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns pages newest-first; the cursor is the last seen run id.
func (m *Memory) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	ids := make([]string, len(m.runOrder))
	for i, id := range m.runOrder {
		ids[len(ids)-1-i] = id
	}
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Run{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		r := m.runs[ids[i]]
		if status == "" || r.Status == status {
			out = append(out, r)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) MarkRunRunning(ctx context.Context, id string) error {
	return m.setStatus(id, model.RunRunning, "")
}

func (m *Memory) CompleteRun(ctx context.Context, id string, bestFitness float64, generations int, details, statistics json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = model.RunCompleted
	r.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	r.BestFitness = bestFitness
	r.Generations = generations
	r.Details = details
	r.Statistics = statistics
	m.runs[id] = r
	return nil
}

func (m *Memory) FailRun(ctx context.Context, id, errMsg string) error {
	return m.setStatus(id, model.RunFailed, errMsg)
}

func (m *Memory) CancelRun(ctx context.Context, id string) error {
	return m.setStatus(id, model.RunCanceled, "")
}

func (m *Memory) setStatus(id, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if errMsg != "" {
		r.Error = errMsg
	}
	if status == model.RunFailed || status == model.RunCanceled {
		r.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.runs[id] = r
	return nil
}

func (m *Memory) AppendGeneration(ctx context.Context, runID string, rec model.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[runID] = append(m.generations[runID], rec)
	return nil
}

func (m *Memory) ListGenerations(ctx context.Context, runID string, fromGeneration, limit int) ([]model.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 1000
	}
	out := []model.GenerationRecord{}
	for _, rec := range m.generations[runID] {
		if rec.Generation < fromGeneration {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) AppendEvent(ctx context.Context, runID string, ev model.SignificantEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[runID] = append(m.events[runID], ev)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, runID string) ([]model.SignificantEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SignificantEvent{}, m.events[runID]...), nil
}

func (m *Memory) SaveGenealogy(ctx context.Context, runID string, entries map[int64]model.GenealogyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[int64]model.GenealogyEntry, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	m.genealogies[runID] = cp
	return nil
}

func (m *Memory) GetGenealogy(ctx context.Context, runID string) (map[int64]model.GenealogyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.genealogies[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make(map[int64]model.GenealogyEntry, len(g))
	for k, v := range g {
		cp[k] = v
	}
	return cp, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	m.subs[sub.ID] = sub
	m.subOrder = append(m.subOrder, sub.ID)
	return sub, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subOrder))
	for _, id := range m.subOrder {
		if s, ok := m.subs[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) SubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, id := range m.subOrder {
		s, ok := m.subs[id]
		if !ok {
			continue
		}
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	for i, sid := range m.subOrder {
		if sid == id {
			m.subOrder = append(m.subOrder[:i], m.subOrder[i+1:]...)
			break
		}
	}
	return nil
}
