package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"routega/internal/buildinfo"
	"routega/internal/model"
	"routega/internal/store"
)

// SolveHandler handles POST /v1/solve. Synchronous by default; async
// requests get 202 with the run id and stream/poll for progress.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	cfg, err := mergeConfig(s.Defaults, req.Config)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
		return
	}

	run, err := s.Store.CreateRun(r.Context(), model.Run{
		NumPoints:   len(req.Points),
		NumVehicles: len(req.Vehicles),
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	engine, rl, err := s.newEngine(run.ID, req, cfg)
	if err != nil {
		_ = s.Store.FailRun(r.Context(), run.ID, err.Error())
		writeProblem(w, http.StatusBadRequest, "Engine init failed", err.Error(), r.URL.Path)
		return
	}

	if req.Async {
		s.startRun(run.ID, engine, rl)
		writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": model.RunRunning})
		return
	}

	details, stats, err := s.runOnce(r.Context(), run.ID, engine, rl)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeProblem(w, 499, "Client Closed Request", "solve canceled", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
		return
	}
	final, err := s.Store.GetRun(context.Background(), run.ID)
	if err != nil {
		final = run
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":        final,
		"solution":   details,
		"statistics": stats,
	})
}

// RunsHandler handles GET /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRuns(r.Context(), status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles /v1/runs/{id} and its subresources:
// generations, events, events/stream, stream/ws, genealogy,
// genealogy/{chromosomeId}/lineage, cancel.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing run id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) >= 3 && parts[1] == "events" && parts[2] == "stream" {
		s.streamSSE(w, r, id)
		return
	}
	if len(parts) >= 3 && parts[1] == "stream" && parts[2] == "ws" {
		s.streamWS(w, r, id)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, err, "Run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	switch parts[1] {
	case "generations":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		from := 0
		limit := 1000
		if v := r.URL.Query().Get("from"); v != "" {
			from, _ = strconv.Atoi(v)
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		recs, err := s.Store.ListGenerations(r.Context(), id, from, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List generations failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": recs})
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		evs, err := s.Store.ListEvents(r.Context(), id)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List events failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": evs})
	case "genealogy":
		s.genealogyHandler(w, r, id, parts)
	case "cancel":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.cancelRun(id) {
			run, err := s.Store.GetRun(r.Context(), id)
			if err != nil {
				s.writeStoreError(w, r, err, "Run not found")
				return
			}
			writeProblem(w, http.StatusConflict, "Not cancelable",
				fmt.Sprintf("run is %s", run.Status), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"runId": id, "status": model.RunCanceled})
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) genealogyHandler(w http.ResponseWriter, r *http.Request, id string, parts []string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := s.Store.GetGenealogy(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err, "Genealogy not available")
		return
	}
	// /genealogy/{chromosomeId}/lineage
	if len(parts) >= 4 && parts[3] == "lineage" {
		cid, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid chromosome id", parts[2], r.URL.Path)
			return
		}
		lineage := lineageOf(entries, cid)
		if len(lineage) == 0 {
			writeProblem(w, http.StatusNotFound, "Chromosome not found", parts[2], r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chromosomeId": cid, "lineage": lineage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// ConfigHandler returns the engine defaults the server runs with.
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaults": s.Defaults})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var sub model.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if sub.URL == "" || len(sub.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		for _, e := range sub.Events {
			if e != "*" && e != model.EventSignificantImprovement && e != model.EventBeneficialMutation {
				writeProblem(w, http.StatusBadRequest, "Invalid subscription",
					fmt.Sprintf("unknown event type %q", e), r.URL.Path)
				return
			}
		}
		created, err := s.Store.CreateSubscription(r.Context(), sub)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		subs, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": subs})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err, "Subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store.
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, title string) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, title, "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
