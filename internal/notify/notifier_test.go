package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"routega/internal/model"
	"routega/internal/store"
)

func TestPublishSignsAndDelivers(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	_, err := mem.CreateSubscription(context.Background(), model.Subscription{
		URL:    srv.URL,
		Events: []string{model.EventSignificantImprovement},
		Secret: "secret",
	})
	if err != nil {
		t.Fatal(err)
	}

	n := New(mem)
	n.HTTP = srv.Client()
	n.Publish(context.Background(), "run-1", model.SignificantEvent{
		Generation: 12,
		EventType:  model.EventSignificantImprovement,
		Fitness:    88.5,
	})

	if gotType != model.EventSignificantImprovement {
		t.Fatalf("event type header: %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("bad signature %q", gotSig)
	}

	var payload struct {
		Type  string                 `json:"type"`
		RunID string                 `json:"runId"`
		Data  model.SignificantEvent `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.RunID != "run-1" || payload.Data.Generation != 12 {
		t.Fatalf("payload: %+v", payload)
	}
}

func TestPublishSkipsNonMatchingEvents(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	mem.CreateSubscription(context.Background(), model.Subscription{
		URL:    srv.URL,
		Events: []string{model.EventSignificantImprovement},
	})

	n := New(mem)
	n.HTTP = srv.Client()
	n.Publish(context.Background(), "run-1", model.SignificantEvent{EventType: model.EventBeneficialMutation})
	if calls.Load() != 0 {
		t.Fatalf("delivered a non-matching event %d times", calls.Load())
	}
}

func TestPublishRetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	mem.CreateSubscription(context.Background(), model.Subscription{
		URL:    srv.URL,
		Events: []string{"*"},
	})

	n := New(mem)
	n.HTTP = srv.Client()
	n.Publish(context.Background(), "run-1", model.SignificantEvent{EventType: model.EventBeneficialMutation})
	if calls.Load() != 2 {
		t.Fatalf("expected retry then success, got %d calls", calls.Load())
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := SignHMAC("s3cret", body)
	if !VerifyHMAC("s3cret", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatal("wrong secret accepted")
	}
	if VerifyHMAC("s3cret", []byte("tampered"), sig) {
		t.Fatal("tampered body accepted")
	}
	if VerifyHMAC("s3cret", body, "zz-not-hex") {
		t.Fatal("non-hex signature accepted")
	}
}
