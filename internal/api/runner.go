package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"routega/internal/genetic"
	"routega/internal/metrics"
	"routega/internal/model"
	"routega/internal/notify"
	"routega/internal/runlog"
	"routega/internal/store"
)

// activeRun is a run currently evolving in this process.
type activeRun struct {
	cancel context.CancelFunc
	engine *genetic.Engine
}

// runSink receives tracker output and fans it out: persistence, run
// log files, stream subscribers, webhooks, metrics. Stream publishes
// are rate limited so a fast engine cannot flood subscribers; the
// persisted history stays complete.
type runSink struct {
	runID    string
	store    store.Store
	log      *runlog.Log
	broker   EventBroker
	notifier *notify.Notifier
	limiter  *rate.Limiter
}

func (k *runSink) WriteGeneration(rec model.GenerationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.store.AppendGeneration(ctx, k.runID, rec); err != nil {
		log.Printf("run %s: persist generation %d: %v", k.runID, rec.Generation, err)
	}
	if k.log != nil {
		k.log.WriteGeneration(rec)
	}
	metrics.Generations.Inc()
	metrics.BestFitness.Set(rec.BestFitness)

	if rec.Generation == 0 || k.limiter.Allow() {
		k.broker.Publish(k.runID, SSEEvent{Type: "generation", Data: model.GenerationSnapshot{
			RunID:          k.runID,
			Generation:     rec.Generation,
			BestFitness:    rec.BestFitness,
			AvgFitness:     rec.AvgFitness,
			WorstFitness:   rec.WorstFitness,
			Diversity:      rec.Diversity,
			BestDescriptor: rec.BestGenes,
			ActiveVehicles: rec.ActiveVehicles,
		}})
	}
}

func (k *runSink) WriteEvent(ev model.SignificantEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.store.AppendEvent(ctx, k.runID, ev); err != nil {
		log.Printf("run %s: persist event: %v", k.runID, err)
	}
	if k.log != nil {
		k.log.WriteEvent(ev)
	}
	metrics.SignificantEvents.WithLabelValues(ev.EventType).Inc()

	k.broker.Publish(k.runID, SSEEvent{Type: "significant_event", Data: map[string]any{
		"runId":        k.runID,
		"generation":   ev.Generation,
		"eventType":    ev.EventType,
		"chromosomeId": ev.ChromosomeID,
		"genes":        ev.Genes,
		"fitness":      ev.Fitness,
		"details":      ev.Details,
	}})
	if k.notifier != nil {
		go k.notifier.Publish(context.Background(), k.runID, ev)
	}
}

// newEngine builds the engine plus its sink and optional run log.
func (s *Server) newEngine(runID string, req model.SolveRequest, cfg genetic.Config) (*genetic.Engine, *runlog.Log, error) {
	var rl *runlog.Log
	if s.RunLogDir != "" {
		var err error
		rl, err = runlog.New(s.RunLogDir)
		if err != nil {
			log.Printf("run %s: run log disabled: %v", runID, err)
			rl = nil
		}
	}
	sink := &runSink{
		runID:    runID,
		store:    s.Store,
		log:      rl,
		broker:   s.Broker,
		notifier: s.Notifier,
		limiter:  rate.NewLimiter(rate.Limit(20), 5),
	}
	engine, err := genetic.NewEngine(req.Points, req.Vehicles, req.Depot, cfg, sink)
	if err != nil {
		if rl != nil {
			rl.Close()
		}
		return nil, nil, err
	}
	return engine, rl, nil
}

// startRun launches the evolution on its own goroutine and registers
// it for cancellation.
func (s *Server) startRun(runID string, engine *genetic.Engine, rl *runlog.Log) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.runs[runID] = &activeRun{cancel: cancel, engine: engine}
	s.mu.Unlock()

	go func() {
		defer cancel()
		_, _, err := s.runOnce(ctx, runID, engine, rl)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("run %s: %v", runID, err)
		}
	}()
}

// runOnce drives the engine to completion and persists the outcome.
// Shared by the async path and the synchronous solve.
func (s *Server) runOnce(ctx context.Context, runID string, engine *genetic.Engine, rl *runlog.Log) (genetic.SolutionDetails, genetic.Statistics, error) {
	defer func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
		if rl != nil {
			rl.Close()
		}
	}()

	metrics.RunsStarted.Inc()
	if err := s.Store.MarkRunRunning(ctx, runID); err != nil {
		log.Printf("run %s: mark running: %v", runID, err)
	}
	started := time.Now()

	best, runErr := engine.Run(ctx, nil)
	elapsed := time.Since(started)
	metrics.RunDuration.Observe(elapsed.Seconds())

	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if runErr != nil {
		outcome := "failed"
		if errors.Is(runErr, context.Canceled) {
			outcome = "canceled"
			if err := s.Store.CancelRun(bg, runID); err != nil {
				log.Printf("run %s: mark canceled: %v", runID, err)
			}
		} else {
			if err := s.Store.FailRun(bg, runID, runErr.Error()); err != nil {
				log.Printf("run %s: mark failed: %v", runID, err)
			}
		}
		metrics.RunsFinished.WithLabelValues(outcome).Inc()
		s.Broker.Publish(runID, SSEEvent{Type: "run." + outcome, Data: map[string]any{
			"runId": runID, "generation": engine.Generation(),
		}})
		return genetic.SolutionDetails{}, genetic.Statistics{}, runErr
	}

	details := engine.BestSolutionDetails()
	stats := engine.Statistics()
	tracker := engine.Tracker()

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		statsJSON = []byte("{}")
	}
	if err := s.Store.CompleteRun(bg, runID, best.Fitness, engine.Generation(), detailsJSON, statsJSON); err != nil {
		log.Printf("run %s: complete: %v", runID, err)
	}
	if err := s.Store.SaveGenealogy(bg, runID, tracker.Genealogy()); err != nil {
		log.Printf("run %s: save genealogy: %v", runID, err)
	}
	if rl != nil {
		if err := rl.WriteGenealogy(tracker.Genealogy()); err != nil {
			log.Printf("run %s: %v", runID, err)
		}
		if err := rl.WriteSummary(tracker.Summary(best, engine.Generation(), elapsed)); err != nil {
			log.Printf("run %s: %v", runID, err)
		}
	}

	for tag, count := range stats.MutationKinds {
		metrics.OperatorApplications.WithLabelValues("mutation", operatorKind(tag)).Add(float64(count))
	}
	for kind, count := range stats.CrossoverKinds {
		metrics.OperatorApplications.WithLabelValues("crossover", kind).Add(float64(count))
	}
	metrics.RunsFinished.WithLabelValues("completed").Inc()

	s.Broker.Publish(runID, SSEEvent{Type: "run.completed", Data: map[string]any{
		"runId":       runID,
		"generation":  engine.Generation(),
		"bestFitness": best.Fitness,
		"bestRoutes":  best.Descriptor(),
		"elapsedSec":  elapsed.Seconds(),
	}})
	return details, stats, nil
}

// operatorKind collapses a mutation tag like "SWAP(A,B)" to its bare
// operator name. Full tags carry point labels, so using them directly
// as metric labels would grow the registry without bound.
func operatorKind(tag string) string {
	if i := strings.IndexByte(tag, '('); i > 0 {
		return tag[:i]
	}
	return tag
}

// cancelRun stops a run executing in this process.
func (s *Server) cancelRun(runID string) bool {
	s.mu.Lock()
	ar := s.runs[runID]
	s.mu.Unlock()
	if ar == nil {
		return false
	}
	ar.cancel()
	return true
}

// lineageOf walks stored genealogy entries from id back to its oldest
// ancestor, mirroring the in-memory tracker walk: crossover entries
// follow parent1, mutations follow their single parent.
func lineageOf(entries map[int64]model.GenealogyEntry, id int64) []model.GenealogyEntry {
	var lineage []model.GenealogyEntry
	cur := id
	for {
		entry, ok := entries[cur]
		if !ok {
			break
		}
		lineage = append([]model.GenealogyEntry{entry}, lineage...)
		switch {
		case entry.Parent1ID != 0:
			cur = entry.Parent1ID
		case entry.ParentID != 0:
			cur = entry.ParentID
		default:
			return lineage
		}
	}
	return lineage
}
