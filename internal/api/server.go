package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"

	"routega/internal/auth"
	"routega/internal/genetic"
	"routega/internal/notify"
	"routega/internal/store"
)

type Server struct {
	Store    store.Store
	Notifier *notify.Notifier
	Auth     *auth.Verifier
	Broker   EventBroker

	// Defaults seeds every run's engine configuration.
	Defaults genetic.Config

	// RunLogDir, when set, mirrors run output to append-only files.
	RunLogDir string

	mu   sync.Mutex
	runs map[string]*activeRun
}

// NewServer wires the server from the environment. No DATABASE_URL
// means the in-memory store; no REDIS_URL means the in-process broker.
func NewServer() (*Server, error) {
	var s store.Store
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	defaults, err := LoadDefaults()
	if err != nil {
		return nil, err
	}

	return &Server{
		Store:     s,
		Notifier:  notify.New(s),
		Auth:      auth.NewVerifierFromEnv(),
		Broker:    broker,
		Defaults:  defaults,
		RunLogDir: os.Getenv("RUN_LOG_DIR"),
		runs:      map[string]*activeRun{},
	}, nil
}

// requireAuth verifies the bearer token when auth is enabled. Returns
// false after writing the problem response.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if s.Auth == nil || !s.Auth.Enabled() {
		return true
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
		return false
	}
	tok := strings.TrimSpace(authz[len("Bearer "):])
	if _, err := s.Auth.Verify(tok); err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return false
	}
	return true
}
