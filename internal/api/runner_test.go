package api

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"routega/internal/model"
	"routega/internal/store"
)

func TestOperatorKindCollapsesTags(t *testing.T) {
	cases := map[string]string{
		"SWAP(A,B)":      "SWAP",
		"INVERSION(0-3)": "INVERSION",
		"MOVE(C: V1→V2)": "MOVE",
		"order":          "order",
		"pmx":            "pmx",
		"":               "",
	}
	for tag, want := range cases {
		if got := operatorKind(tag); got != want {
			t.Errorf("operatorKind(%q) = %q, want %q", tag, got, want)
		}
	}
}

func TestSinkPublishesGenerationSnapshots(t *testing.T) {
	st := store.NewMemory()
	run, err := st.CreateRun(context.Background(), model.Run{NumPoints: 1, NumVehicles: 1})
	if err != nil {
		t.Fatal(err)
	}
	broker := NewBroker()
	ch := broker.Subscribe(run.ID)
	defer broker.Unsubscribe(run.ID, ch)

	sink := &runSink{
		runID:   run.ID,
		store:   st,
		broker:  broker,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
	sink.WriteGeneration(model.GenerationRecord{
		Generation:     0,
		BestFitness:    12.5,
		AvgFitness:     20,
		WorstFitness:   31,
		Diversity:      0.4,
		BestGenes:      "V1:[A]",
		ActiveVehicles: 1,
	})

	select {
	case evt := <-ch:
		if evt.Type != "generation" {
			t.Fatalf("event type = %q", evt.Type)
		}
		snap, ok := evt.Data.(model.GenerationSnapshot)
		if !ok {
			t.Fatalf("event data is %T, want GenerationSnapshot", evt.Data)
		}
		if snap.RunID != run.ID || snap.Generation != 0 || snap.BestFitness != 12.5 {
			t.Errorf("snapshot = %+v", snap)
		}
		if snap.BestDescriptor != "V1:[A]" || snap.ActiveVehicles != 1 {
			t.Errorf("snapshot = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("generation event never published")
	}

	recs, err := st.ListGenerations(context.Background(), run.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].BestFitness != 12.5 {
		t.Fatalf("persisted records = %+v", recs)
	}
}
