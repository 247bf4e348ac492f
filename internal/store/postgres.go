package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"routega/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Ping verifies database connectivity, used by readiness checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Migrate creates the schema when it does not exist yet. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ,
			num_points INT NOT NULL,
			num_vehicles INT NOT NULL,
			generations INT NOT NULL DEFAULT 0,
			best_fitness DOUBLE PRECISION,
			error TEXT,
			details JSONB,
			statistics JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS run_generations (
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			generation INT NOT NULL,
			record JSONB NOT NULL,
			PRIMARY KEY (run_id, generation)
		)`,
		`CREATE TABLE IF NOT EXISTS run_events (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			generation INT NOT NULL,
			event JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_genealogies (
			run_id UUID PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			entries JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL,
			events TEXT[] NOT NULL,
			secret TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunPending
	}
	now := time.Now().UTC()
	run.CreatedAt = now.Format(time.RFC3339)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, num_points, num_vehicles) VALUES ($1,$2,$3,$4,$5)`,
		run.ID, run.Status, now, run.NumPoints, run.NumVehicles)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id::text, status, created_at, completed_at, num_points, num_vehicles, generations,
		        best_fitness, error, details, statistics
		 FROM runs WHERE id=$1`, id)
	return scanRun(row)
}

func (p *Postgres) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	// Cursor is the last seen run id; ordering is newest first.
	var rows *sql.Rows
	var err error
	q := `SELECT id::text, status, created_at, completed_at, num_points, num_vehicles, generations,
	             best_fitness, error, details, statistics
	      FROM runs`
	switch {
	case status != "" && cursor != "":
		rows, err = p.db.QueryContext(ctx, q+` WHERE status=$1 AND created_at < (SELECT created_at FROM runs WHERE id=$2) ORDER BY created_at DESC LIMIT $3`, status, cursor, limit)
	case status != "":
		rows, err = p.db.QueryContext(ctx, q+` WHERE status=$1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	case cursor != "":
		rows, err = p.db.QueryContext(ctx, q+` WHERE created_at < (SELECT created_at FROM runs WHERE id=$1) ORDER BY created_at DESC LIMIT $2`, cursor, limit)
	default:
		rows, err = p.db.QueryContext(ctx, q+` ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []model.Run{}
	var last string
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	var next string
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var r model.Run
	var createdAt time.Time
	var completedAt sql.NullTime
	var bestFitness sql.NullFloat64
	var errMsg sql.NullString
	var details, statistics []byte
	err := row.Scan(&r.ID, &r.Status, &createdAt, &completedAt, &r.NumPoints, &r.NumVehicles,
		&r.Generations, &bestFitness, &errMsg, &details, &statistics)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	if completedAt.Valid {
		r.CompletedAt = completedAt.Time.UTC().Format(time.RFC3339)
	}
	if bestFitness.Valid {
		r.BestFitness = bestFitness.Float64
	}
	r.Error = errMsg.String
	r.Details = details
	r.Statistics = statistics
	return r, nil
}

func (p *Postgres) MarkRunRunning(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, model.RunRunning, "")
}

func (p *Postgres) CompleteRun(ctx context.Context, id string, bestFitness float64, generations int, details, statistics json.RawMessage) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status=$2, completed_at=now(), best_fitness=$3, generations=$4, details=$5, statistics=$6 WHERE id=$1`,
		id, model.RunCompleted, bestFitness, generations, []byte(details), []byte(statistics))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) FailRun(ctx context.Context, id, errMsg string) error {
	return p.setStatus(ctx, id, model.RunFailed, errMsg)
}

func (p *Postgres) CancelRun(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, model.RunCanceled, "")
}

func (p *Postgres) setStatus(ctx context.Context, id, status, errMsg string) error {
	var res sql.Result
	var err error
	if status == model.RunFailed || status == model.RunCanceled {
		res, err = p.db.ExecContext(ctx,
			`UPDATE runs SET status=$2, error=NULLIF($3,''), completed_at=now() WHERE id=$1`, id, status, errMsg)
	} else {
		res, err = p.db.ExecContext(ctx, `UPDATE runs SET status=$2 WHERE id=$1`, id, status)
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendGeneration(ctx context.Context, runID string, rec model.GenerationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO run_generations (run_id, generation, record) VALUES ($1,$2,$3)
		 ON CONFLICT (run_id, generation) DO UPDATE SET record=EXCLUDED.record`,
		runID, rec.Generation, data)
	return err
}

func (p *Postgres) ListGenerations(ctx context.Context, runID string, fromGeneration, limit int) ([]model.GenerationRecord, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT record FROM run_generations WHERE run_id=$1 AND generation >= $2 ORDER BY generation LIMIT $3`,
		runID, fromGeneration, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.GenerationRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec model.GenerationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendEvent(ctx context.Context, runID string, ev model.SignificantEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, generation, event) VALUES ($1,$2,$3)`,
		runID, ev.Generation, data)
	return err
}

func (p *Postgres) ListEvents(ctx context.Context, runID string) ([]model.SignificantEvent, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT event FROM run_events WHERE run_id=$1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SignificantEvent{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ev model.SignificantEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveGenealogy(ctx context.Context, runID string, entries map[int64]model.GenealogyEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO run_genealogies (run_id, entries) VALUES ($1,$2)
		 ON CONFLICT (run_id) DO UPDATE SET entries=EXCLUDED.entries`,
		runID, data)
	return err
}

func (p *Postgres) GetGenealogy(ctx context.Context, runID string) (map[int64]model.GenealogyEntry, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT entries FROM run_genealogies WHERE run_id=$1`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out map[int64]model.GenealogyEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret)
		 VALUES ($1,$2,ARRAY(SELECT jsonb_array_elements_text($3::jsonb)),$4)`,
		sub.ID, sub.URL, events, sub.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, to_jsonb(events), COALESCE(secret,'') FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) SubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, to_jsonb(events), COALESCE(secret,'') FROM subscriptions
		 WHERE $1 = ANY(events) OR '*' = ANY(events)`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
