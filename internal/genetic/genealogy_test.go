package genetic

import (
	"testing"

	"routega/internal/model"
)

type captureSink struct {
	generations []model.GenerationRecord
	events      []model.SignificantEvent
}

func (s *captureSink) WriteGeneration(rec model.GenerationRecord) {
	s.generations = append(s.generations, rec)
}

func (s *captureSink) WriteEvent(ev model.SignificantEvent) {
	s.events = append(s.events, ev)
}

func TestAssignIDSequential(t *testing.T) {
	tr := NewTracker(0, nil)
	for want := int64(1); want <= 5; want++ {
		c := NewChromosome([]int{0}, 1)
		if got := tr.AssignID(c); got != want || c.ID != want {
			t.Fatalf("id: got %d, want %d", got, want)
		}
	}
	if tr.Created() != 5 {
		t.Fatalf("created: %d", tr.Created())
	}
}

func TestRecordSeed(t *testing.T) {
	tr := NewTracker(0, nil)
	c := NewChromosome([]int{0, -1, 1}, 2)
	c.Fitness = 12.5
	tr.RecordSeed(c)
	entry, ok := tr.Genealogy()[c.ID]
	if !ok {
		t.Fatal("seed not recorded")
	}
	if entry.Type != model.OriginSeed || entry.Generation != 0 || entry.Fitness != 12.5 {
		t.Fatalf("seed entry: %+v", entry)
	}
}

func TestRecordCrossoverLineage(t *testing.T) {
	tr := NewTracker(0, nil)
	p1 := NewChromosome([]int{0, 1}, 1)
	p2 := NewChromosome([]int{1, 0}, 1)
	tr.RecordSeed(p1)
	tr.RecordSeed(p2)

	c1 := NewChromosome([]int{0, 1}, 1)
	c2 := NewChromosome([]int{1, 0}, 1)
	tr.RecordCrossover(3, p1, p2, c1, c2, CrossoverOrder)

	if c1.ID == 0 || c2.ID == 0 || c1.ID == c2.ID {
		t.Fatalf("child ids: %d, %d", c1.ID, c2.ID)
	}
	entry := tr.Genealogy()[c1.ID]
	if entry.Type != model.OriginCrossover || entry.Parent1ID != p1.ID || entry.Parent2ID != p2.ID {
		t.Fatalf("crossover entry: %+v", entry)
	}
	if entry.Generation != 3 || c1.Generation != 3 {
		t.Fatalf("generation not stamped: %+v", entry)
	}
	if tr.Crossovers != 1 || tr.CrossoverKinds["order"] != 1 {
		t.Fatalf("crossover counters: %d %v", tr.Crossovers, tr.CrossoverKinds)
	}
}

func TestRecordMutationBeneficialEvent(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(0.05, sink)

	original := NewChromosome([]int{0, 1}, 1)
	original.Fitness = 100
	tr.RecordSeed(original)

	mutated := NewChromosome([]int{1, 0}, 1)
	mutated.Fitness = 80
	mutated.Mutation = "SWAP(A,B)"
	tr.RecordMutation(1, original, mutated)

	if tr.Mutations != 1 || tr.MutationKinds["SWAP(A,B)"] != 1 {
		t.Fatalf("mutation counters: %d %v", tr.Mutations, tr.MutationKinds)
	}
	entry := tr.Genealogy()[mutated.ID]
	if entry.Type != model.OriginMutation || entry.ParentID != original.ID {
		t.Fatalf("mutation entry: %+v", entry)
	}
	if entry.FitnessChange != -20 {
		t.Fatalf("fitness change: %v", entry.FitnessChange)
	}

	// 20% improvement clears the 5% threshold.
	events := tr.Events()
	if len(events) != 1 || events[0].EventType != model.EventBeneficialMutation {
		t.Fatalf("events: %+v", events)
	}
	if len(sink.events) != 1 {
		t.Fatalf("sink events: %d", len(sink.events))
	}

	// A worse mutation fires nothing.
	worse := NewChromosome([]int{0, 1}, 1)
	worse.Fitness = 150
	tr.RecordMutation(2, original, worse)
	if len(tr.Events()) != 1 {
		t.Fatalf("worse mutation fired an event")
	}
}

func TestRecordGenerationSignificantImprovement(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker(0.05, sink)

	best := NewChromosome([]int{0, 1}, 1)
	best.Fitness = 100
	tr.RecordSeed(best)
	pop := []*Chromosome{best}

	tr.RecordGeneration(0, pop, best, 100, 0)
	if len(tr.Events()) != 0 {
		t.Fatalf("first generation cannot be an improvement")
	}

	improved := best.Clone()
	improved.Fitness = 90
	tr.RecordGeneration(1, pop, improved, 90, 0)

	events := tr.Events()
	if len(events) != 1 || events[0].EventType != model.EventSignificantImprovement {
		t.Fatalf("events: %+v", events)
	}
	if len(sink.generations) != 2 {
		t.Fatalf("sink generations: %d", len(sink.generations))
	}
	hist := tr.History()
	if len(hist) != 2 || hist[1].BestFitness != 90 || hist[1].Generation != 1 {
		t.Fatalf("history: %+v", hist)
	}
}

func TestDiversity(t *testing.T) {
	tr := NewTracker(0, nil)

	same := []*Chromosome{
		NewChromosome([]int{0, 1, 2, -1, 3}, 2),
		NewChromosome([]int{0, 1, 2, -1, 3}, 2),
		NewChromosome([]int{0, 1, -1, 2, 3}, 2), // same point order, separator moved
	}
	if d := tr.Diversity(same); d != 0 {
		t.Fatalf("identical orderings: diversity %v", d)
	}

	mixed := []*Chromosome{
		NewChromosome([]int{0, 1, 2, 3}, 1),
		NewChromosome([]int{3, 2, 1, 0}, 1),
	}
	d := tr.Diversity(mixed)
	if d <= 0 || d > 1 {
		t.Fatalf("diversity out of range: %v", d)
	}
	// Fully reversed order mismatches at every position.
	if d != 1 {
		t.Fatalf("reversed pair: diversity %v, want 1", d)
	}

	if d := tr.Diversity(mixed[:1]); d != 0 {
		t.Fatalf("single chromosome: diversity %v", d)
	}
}

func TestLineageWalk(t *testing.T) {
	tr := NewTracker(0, nil)

	seed1 := NewChromosome([]int{0, 1, 2}, 1)
	seed2 := NewChromosome([]int{2, 1, 0}, 1)
	seed1.Fitness, seed2.Fitness = 10, 11
	tr.RecordSeed(seed1)
	tr.RecordSeed(seed2)

	child := NewChromosome([]int{0, 2, 1}, 1)
	child.Fitness = 9
	tr.RecordCrossover(1, seed1, seed2, child, NewChromosome([]int{1, 0, 2}, 1), CrossoverOrder)

	mutant := NewChromosome([]int{2, 0, 1}, 1)
	mutant.Fitness = 8
	mutant.Mutation = "SWAP(A,C)"
	tr.RecordMutation(2, child, mutant)

	lineage := tr.Lineage(mutant.ID)
	if len(lineage) != 3 {
		t.Fatalf("lineage length: %d", len(lineage))
	}
	if lineage[0].ID != seed1.ID || lineage[0].Type != model.OriginSeed {
		t.Fatalf("lineage root: %+v", lineage[0])
	}
	if lineage[1].ID != child.ID || lineage[2].ID != mutant.ID {
		t.Fatalf("lineage order: %+v", lineage)
	}

	if got := tr.Lineage(999); len(got) != 0 {
		t.Fatalf("unknown id lineage: %+v", got)
	}
}
