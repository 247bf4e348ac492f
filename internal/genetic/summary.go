package genetic

import (
	"fmt"
	"strings"
	"time"
)

const rule = "================================================================================"

// Summary renders the final human-readable run report: best solution,
// fitness trajectory milestones and the top significant events.
func (t *Tracker) Summary(best *Chromosome, totalGenerations int, elapsed time.Duration) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("GENETIC EVOLUTION SUMMARY - VRP")
	line(rule)
	line("")
	line("Finished: %s", time.Now().UTC().Format("2006-01-02 15:04:05"))
	line("Elapsed: %.2fs", elapsed.Seconds())
	line("Generations: %d", totalGenerations)
	line("Chromosomes created: %d", t.counter)
	line("")
	line(rule)
	line("BEST SOLUTION")
	line(rule)
	line("Fitness: %.2f", best.Fitness)
	line("ID: %d", best.ID)
	line("Generation: %d", best.Generation)
	line("Routes: %s", best.Descriptor())
	if best.Breakdown != nil {
		bd := best.Breakdown
		line("")
		line("Fitness components:")
		line("  total_distance: %.2f", bd.TotalDistance)
		line("  capacity_penalty: %.2f", bd.CapacityPenalty)
		line("  autonomy_penalty: %.2f", bd.AutonomyPenalty)
		line("  priority_penalty: %.2f", bd.PriorityPenalty)
		line("  balance_penalty: %.2f", bd.BalancePenalty)
		line("  num_vehicles: %d", bd.ActiveVehicles)
	}

	if len(t.history) > 0 {
		line("")
		line(rule)
		line("FITNESS TRAJECTORY")
		line(rule)
		initial := t.history[0].BestFitness
		final := t.history[len(t.history)-1].BestFitness
		line("Initial best: %.2f", initial)
		line("Final best: %.2f", final)
		if initial > 0 {
			line("Total improvement: %.2f%%", (initial-final)/initial*100)
		}
		line("")
		line("Milestones:")
		n := len(t.history)
		for _, idx := range []int{0, n / 4, n / 2, 3 * n / 4, n - 1} {
			if idx < n {
				g := t.history[idx]
				line("  Gen %4d: fitness=%.2f, vehicles=%d", g.Generation, g.BestFitness, g.ActiveVehicles)
			}
		}
	}

	line("")
	line(rule)
	line("SIGNIFICANT EVENTS: %d", len(t.events))
	line(rule)
	shown := t.events
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, ev := range shown {
		line("%d. Gen %d: %s (chromosome %d, fitness %.2f)", i+1, ev.Generation, ev.EventType, ev.ChromosomeID, ev.Fitness)
		if pct, ok := ev.Details["improvementPercent"].(float64); ok {
			line("   improvement: %.2f%%", pct)
		}
	}
	if extra := len(t.events) - len(shown); extra > 0 {
		line("... and %d more events.", extra)
	}
	line(rule)

	return b.String()
}
