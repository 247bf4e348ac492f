// Package notify delivers significant evolution events to webhook
// subscribers. Deliveries are signed with the subscription secret and
// retried with exponential backoff; a dead subscriber never stalls a run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"routega/internal/metrics"
	"routega/internal/model"
	"routega/internal/store"
)

type Notifier struct {
	Store       store.Store
	HTTP        *http.Client
	MaxAttempts int
}

func New(s store.Store) *Notifier {
	return &Notifier{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: 3,
	}
}

// Publish sends the event to every matching subscription. Blocking;
// callers that must not wait run it on their own goroutine.
func (n *Notifier) Publish(ctx context.Context, runID string, ev model.SignificantEvent) {
	subs, err := n.Store.SubscriptionsForEvent(ctx, ev.EventType)
	if err != nil || len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":    fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":  ev.EventType,
		"runId": runID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"data":  ev,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: marshal event: %v", err)
		return
	}
	for _, sub := range subs {
		n.deliver(ctx, sub, ev.EventType, body)
	}
}

func (n *Notifier) deliver(ctx context.Context, sub model.Subscription, eventType string, body []byte) {
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextBackoff(attempt)):
			}
		}
		code, latency, err := n.post(ctx, sub, eventType, body)
		status := "failed"
		if err == nil && code >= 200 && code < 300 {
			status = "delivered"
		}
		metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(latency.Milliseconds()))
		if status == "delivered" {
			return
		}
		if err != nil {
			log.Printf("notify: deliver %s to %s (attempt %d): %v", eventType, sub.URL, attempt+1, err)
		} else {
			log.Printf("notify: deliver %s to %s (attempt %d): status %d", eventType, sub.URL, attempt+1, code)
		}
	}
}

func (n *Notifier) post(ctx context.Context, sub model.Subscription, eventType string, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", eventType)
	if sub.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(sub.Secret, body))
	}
	start := time.Now()
	resp, err := n.HTTP.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, latency, nil
}

func nextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Second * time.Duration(1<<(attempt-1))
}
