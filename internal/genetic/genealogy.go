package genetic

import (
	"time"

	"routega/internal/model"
)

// Sink receives tracker output. Implementations append-only; write
// failures are the sink's problem, evolution never stops for logging.
type Sink interface {
	WriteGeneration(rec model.GenerationRecord)
	WriteEvent(ev model.SignificantEvent)
}

// Tracker observes engine events: it assigns chromosome ids, records
// lineage, counts operator applications, measures diversity and flags
// significant improvements. Writes are single-goroutine (the engine's).
type Tracker struct {
	counter   int64
	genealogy map[int64]model.GenealogyEntry
	history   []model.GenerationRecord
	events    []model.SignificantEvent

	// Improvement fraction that promotes a change to a significant event.
	Threshold float64

	Crossovers     int
	Mutations      int
	CrossoverKinds map[string]int
	MutationKinds  map[string]int

	sink Sink
}

func NewTracker(threshold float64, sink Sink) *Tracker {
	if threshold <= 0 {
		threshold = 0.05
	}
	return &Tracker{
		genealogy:      map[int64]model.GenealogyEntry{},
		Threshold:      threshold,
		CrossoverKinds: map[string]int{},
		MutationKinds:  map[string]int{},
		sink:           sink,
	}
}

// AssignID gives the chromosome the next id. Every chromosome gets an
// id before anything about it is recorded.
func (t *Tracker) AssignID(c *Chromosome) int64 {
	t.counter++
	c.ID = t.counter
	return c.ID
}

// RecordSeed registers a generation-zero chromosome.
func (t *Tracker) RecordSeed(c *Chromosome) {
	if c.ID == 0 {
		t.AssignID(c)
	}
	t.genealogy[c.ID] = model.GenealogyEntry{
		ID:         c.ID,
		Generation: 0,
		Type:       model.OriginSeed,
		Genes:      c.Descriptor(),
		Fitness:    c.Fitness,
	}
}

// RecordCrossover registers both children of a crossover.
func (t *Tracker) RecordCrossover(generation int, parent1, parent2, child1, child2 *Chromosome, kind CrossoverKind) {
	t.Crossovers++
	t.CrossoverKinds[string(kind)]++

	for _, child := range []*Chromosome{child1, child2} {
		if child.ID == 0 {
			t.AssignID(child)
		}
		child.Generation = generation
		t.genealogy[child.ID] = model.GenealogyEntry{
			ID:         child.ID,
			Generation: generation,
			Type:       model.OriginCrossover,
			Parent1ID:  parent1.ID,
			Parent2ID:  parent2.ID,
			Genes:      child.Descriptor(),
			Fitness:    child.Fitness,
		}
	}
}

// RecordMutation registers a mutated chromosome with the fitness swing
// against its direct parent, flagging beneficial mutations.
func (t *Tracker) RecordMutation(generation int, original, mutated *Chromosome) {
	t.Mutations++
	tag := mutated.Mutation
	if tag == "" {
		tag = "UNKNOWN"
	}
	t.MutationKinds[tag]++

	if mutated.ID == 0 {
		t.AssignID(mutated)
	}
	mutated.Generation = generation

	t.genealogy[mutated.ID] = model.GenealogyEntry{
		ID:            mutated.ID,
		Generation:    generation,
		Type:          model.OriginMutation,
		ParentID:      original.ID,
		MutationType:  tag,
		Genes:         mutated.Descriptor(),
		GenesBefore:   original.Descriptor(),
		Fitness:       mutated.Fitness,
		FitnessBefore: original.Fitness,
		FitnessChange: mutated.Fitness - original.Fitness,
	}

	// Guard against zero or negative parent fitness.
	if original.Fitness > 0 {
		improvement := (original.Fitness - mutated.Fitness) / original.Fitness
		if improvement >= t.Threshold {
			t.recordEvent(generation, model.EventBeneficialMutation, mutated, map[string]any{
				"parentId":           original.ID,
				"mutationType":       tag,
				"fitnessBefore":      original.Fitness,
				"fitnessAfter":       mutated.Fitness,
				"improvementPercent": improvement * 100,
			})
		}
	}
}

// RecordGeneration appends the per-generation summary and fires a
// significant event when the best fitness improved enough versus the
// previous generation.
func (t *Tracker) RecordGeneration(generation int, population []*Chromosome, best *Chromosome, avgFitness, diversity float64) {
	worst := best.Fitness
	for _, c := range population {
		if c.Fitness > worst {
			worst = c.Fitness
		}
	}
	rec := model.GenerationRecord{
		Generation:     generation,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		BestFitness:    best.Fitness,
		AvgFitness:     avgFitness,
		WorstFitness:   worst,
		Diversity:      diversity,
		BestID:         best.ID,
		BestGenes:      best.Descriptor(),
		ActiveVehicles: best.ActiveVehicles(),
		FitnessDetails: best.Breakdown,
	}

	if n := len(t.history); n > 0 {
		prev := t.history[n-1].BestFitness
		if prev > 0 {
			improvement := (prev - best.Fitness) / prev
			if improvement >= t.Threshold {
				t.recordEvent(generation, model.EventSignificantImprovement, best, map[string]any{
					"previousFitness":    prev,
					"newFitness":         best.Fitness,
					"improvementPercent": improvement * 100,
					"mutation":           best.Mutation,
				})
			}
		}
	}

	t.history = append(t.history, rec)
	if t.sink != nil {
		t.sink.WriteGeneration(rec)
	}
}

func (t *Tracker) recordEvent(generation int, eventType string, c *Chromosome, details map[string]any) {
	ev := model.SignificantEvent{
		Generation:   generation,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		EventType:    eventType,
		ChromosomeID: c.ID,
		Genes:        c.Descriptor(),
		Fitness:      c.Fitness,
		Details:      details,
	}
	t.events = append(t.events, ev)
	if t.sink != nil {
		t.sink.WriteEvent(ev)
	}
}

// Diversity is the average normalized positional mismatch between the
// point-only sequences of every chromosome pair, clamped to [0,1].
// O(P^2 * N); acceptable for the population sizes the engine runs with.
func (t *Tracker) Diversity(population []*Chromosome) float64 {
	if len(population) < 2 {
		return 0
	}
	views := make([][]int, len(population))
	for i, c := range population {
		views[i] = c.Points()
	}
	var total, pairs float64
	for i := 0; i < len(views); i++ {
		for j := i + 1; j < len(views); j++ {
			mismatch := 0
			n := min(len(views[i]), len(views[j]))
			for k := 0; k < n; k++ {
				if views[i][k] != views[j][k] {
					mismatch++
				}
			}
			total += float64(mismatch)
			pairs++
		}
	}
	maxLen := len(views[0])
	if maxLen == 0 || pairs == 0 {
		return 0
	}
	d := total / pairs / float64(maxLen)
	if d > 1 {
		d = 1
	}
	return d
}

// Lineage walks the ancestry of a chromosome id, oldest ancestor first.
// Crossover entries follow parent1; the walk stops at a seed or at an
// id the genealogy never saw.
func (t *Tracker) Lineage(id int64) []model.GenealogyEntry {
	var lineage []model.GenealogyEntry
	cur := id
	for {
		entry, ok := t.genealogy[cur]
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

// Genealogy returns a copy of every recorded entry.
func (t *Tracker) Genealogy() map[int64]model.GenealogyEntry {
	out := make(map[int64]model.GenealogyEntry, len(t.genealogy))
	for k, v := range t.genealogy {
		out[k] = v
	}
	return out
}

// History returns the recorded per-generation summaries.
func (t *Tracker) History() []model.GenerationRecord {
	return append([]model.GenerationRecord(nil), t.history...)
}

// Events returns the recorded significant events.
func (t *Tracker) Events() []model.SignificantEvent {
	return append([]model.SignificantEvent(nil), t.events...)
}

// Created returns how many chromosomes received ids.
func (t *Tracker) Created() int64 { return t.counter }
