package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"routega/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	run, err := m.CreateRun(ctx, model.Run{NumPoints: 8, NumVehicles: 3})
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.Status != model.RunPending || run.CreatedAt == "" {
		t.Fatalf("created run: %+v", run)
	}

	if err := m.MarkRunRunning(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.RunRunning {
		t.Fatalf("status: %s", got.Status)
	}

	details := json.RawMessage(`{"fitness":42.5}`)
	stats := json.RawMessage(`{"totalCrossovers":10}`)
	if err := m.CompleteRun(ctx, run.ID, 42.5, 500, details, stats); err != nil {
		t.Fatal(err)
	}
	got, _ = m.GetRun(ctx, run.ID)
	if got.Status != model.RunCompleted || got.BestFitness != 42.5 || got.Generations != 500 {
		t.Fatalf("completed run: %+v", got)
	}
	if got.CompletedAt == "" || string(got.Details) != string(details) {
		t.Fatalf("completed run: %+v", got)
	}

	if _, err := m.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing run: %v", err)
	}
	if err := m.FailRun(ctx, "missing", "boom"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fail missing: %v", err)
	}
}

func TestMemoryFailAndCancel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})

	if err := m.FailRun(ctx, run.ID, "evaluator blew up"); err != nil {
		t.Fatal(err)
	}
	got, _ := m.GetRun(ctx, run.ID)
	if got.Status != model.RunFailed || got.Error != "evaluator blew up" || got.CompletedAt == "" {
		t.Fatalf("failed run: %+v", got)
	}

	run2, _ := m.CreateRun(ctx, model.Run{})
	if err := m.CancelRun(ctx, run2.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = m.GetRun(ctx, run2.ID)
	if got.Status != model.RunCanceled {
		t.Fatalf("canceled run: %+v", got)
	}
}

func TestMemoryListRunsPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 5; i++ {
		r, _ := m.CreateRun(ctx, model.Run{})
		ids = append(ids, r.ID)
	}

	// Newest first.
	page1, next, err := m.ListRuns(ctx, "", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 || page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Fatalf("page1: %+v", page1)
	}
	if next == "" {
		t.Fatal("expected next cursor")
	}

	page2, _, err := m.ListRuns(ctx, "", next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 || page2[0].ID != ids[2] {
		t.Fatalf("page2: %+v", page2)
	}

	// Status filter.
	m.MarkRunRunning(ctx, ids[1])
	running, _, err := m.ListRuns(ctx, model.RunRunning, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 1 || running[0].ID != ids[1] {
		t.Fatalf("running filter: %+v", running)
	}
}

func TestMemoryGenerationsAndEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})

	for g := 0; g < 10; g++ {
		if err := m.AppendGeneration(ctx, run.ID, model.GenerationRecord{Generation: g, BestFitness: float64(100 - g)}); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := m.ListGenerations(ctx, run.ID, 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].Generation != 5 || recs[2].Generation != 7 {
		t.Fatalf("generations: %+v", recs)
	}

	if err := m.AppendEvent(ctx, run.ID, model.SignificantEvent{Generation: 3, EventType: model.EventBeneficialMutation}); err != nil {
		t.Fatal(err)
	}
	evs, err := m.ListEvents(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].EventType != model.EventBeneficialMutation {
		t.Fatalf("events: %+v", evs)
	}
}

func TestMemoryGenealogy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})

	entries := map[int64]model.GenealogyEntry{
		1: {ID: 1, Type: model.OriginSeed},
		2: {ID: 2, Type: model.OriginCrossover, Parent1ID: 1},
	}
	if err := m.SaveGenealogy(ctx, run.ID, entries); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetGenealogy(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[2].Parent1ID != 1 {
		t.Fatalf("genealogy: %+v", got)
	}

	// Returned map is a copy.
	got[3] = model.GenealogyEntry{ID: 3}
	again, _ := m.GetGenealogy(ctx, run.ID)
	if len(again) != 2 {
		t.Fatal("genealogy map leaked")
	}

	if _, err := m.GetGenealogy(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing genealogy: %v", err)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	s1, err := m.CreateSubscription(ctx, model.Subscription{URL: "https://a.example/hook", Events: []string{model.EventSignificantImprovement}})
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := m.CreateSubscription(ctx, model.Subscription{URL: "https://b.example/hook", Events: []string{"*"}})

	all, _ := m.ListSubscriptions(ctx)
	if len(all) != 2 {
		t.Fatalf("subscriptions: %+v", all)
	}

	matched, _ := m.SubscriptionsForEvent(ctx, model.EventSignificantImprovement)
	if len(matched) != 2 {
		t.Fatalf("improvement subscribers: %+v", matched)
	}
	matched, _ = m.SubscriptionsForEvent(ctx, model.EventBeneficialMutation)
	if len(matched) != 1 || matched[0].ID != s2.ID {
		t.Fatalf("wildcard only: %+v", matched)
	}

	if err := m.DeleteSubscription(ctx, s1.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, s1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}
