// Package runlog persists evolution output as append-only files: one
// JSONL stream per run for generations, one for significant events,
// plus a final genealogy dump and a text summary. Log writes never
// block or fail an evolution run; write errors go to the process log.
package runlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"routega/internal/model"
)

// Log writes one run's output streams. Safe for a single writer; the
// engine drives all writes from its own goroutine.
type Log struct {
	dir   string
	stamp string

	mu         sync.Mutex
	evolution  *os.File
	events     *os.File
	enc        *json.Encoder
	eventsEnc  *json.Encoder
	generation int
}

// New opens the evolution and event streams under dir, creating it if
// needed. The timestamp keys all files of one run together.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102_150405")

	evolution, err := os.Create(filepath.Join(dir, "evolution_"+stamp+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("create evolution log: %w", err)
	}
	events, err := os.Create(filepath.Join(dir, "events_"+stamp+".jsonl"))
	if err != nil {
		evolution.Close()
		return nil, fmt.Errorf("create events log: %w", err)
	}

	return &Log{
		dir:       dir,
		stamp:     stamp,
		evolution: evolution,
		events:    events,
		enc:       json.NewEncoder(evolution),
		eventsEnc: json.NewEncoder(events),
	}, nil
}

// Dir returns the directory the run writes into.
func (l *Log) Dir() string { return l.dir }

// Stamp returns the run timestamp shared by all files of this run.
func (l *Log) Stamp() string { return l.stamp }

// WriteGeneration appends one generation record to the evolution stream.
func (l *Log) WriteGeneration(rec model.GenerationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation = rec.Generation
	if err := l.enc.Encode(rec); err != nil {
		log.Printf("runlog: write generation %d: %v", rec.Generation, err)
	}
}

// WriteEvent appends one significant event to the events stream.
func (l *Log) WriteEvent(ev model.SignificantEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.eventsEnc.Encode(ev); err != nil {
		log.Printf("runlog: write event at generation %d: %v", ev.Generation, err)
	}
}

// WriteGenealogy dumps the full genealogy as one indented JSON file.
func (l *Log) WriteGenealogy(genealogy map[int64]model.GenealogyEntry) error {
	entries := make(map[string]model.GenealogyEntry, len(genealogy))
	for id, e := range genealogy {
		entries[fmt.Sprintf("%d", id)] = e
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genealogy: %w", err)
	}
	path := filepath.Join(l.dir, "genealogy_"+l.stamp+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write genealogy: %w", err)
	}
	return nil
}

// WriteSummary writes the final text report.
func (l *Log) WriteSummary(summary string) error {
	path := filepath.Join(l.dir, "summary_"+l.stamp+".txt")
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Close flushes and closes both streams.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.evolution.Close()
	err2 := l.events.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
