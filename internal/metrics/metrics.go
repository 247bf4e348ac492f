package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RunsStarted counts optimization runs by how they ended up.
	RunsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_runs_started_total", Help: "Optimization runs started."},
	)
	RunsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_finished_total", Help: "Optimization runs finished by outcome."},
		[]string{"outcome"},
	)
	// RunDuration tracks wall-clock run time in seconds.
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_run_duration_seconds", Help: "Optimization run duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}},
	)
	// Generations counts evolved generations across all runs.
	Generations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_generations_total", Help: "Generations evolved across all runs."},
	)
	// BestFitness is the best fitness of the most recently updated run.
	BestFitness = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "optimizer_best_fitness", Help: "Best fitness of the most recent generation."},
	)
	// OperatorApplications counts crossover and mutation applications by kind.
	OperatorApplications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_operator_applications_total", Help: "Genetic operator applications by operator and kind."},
		[]string{"operator", "kind"},
	)
	// SignificantEvents counts tracker events by type.
	SignificantEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_significant_events_total", Help: "Significant evolution events by type."},
		[]string{"event_type"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds.
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RunsStarted)
		Registry.MustRegister(RunsFinished)
		Registry.MustRegister(RunDuration)
		Registry.MustRegister(Generations)
		Registry.MustRegister(BestFitness)
		Registry.MustRegister(OperatorApplications)
		Registry.MustRegister(SignificantEvents)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
