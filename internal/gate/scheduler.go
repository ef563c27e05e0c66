package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/run"
)

// GateRunner evaluates a single gate.
type GateRunner interface {
	Run(ctx context.Context, spec models.GateSpec) models.GateResult
}

// Tier is a group of gates that run concurrently.
type Tier struct {
	Number int
	Gates  []models.GateSpec
}

// Names lists the tier's gate names.
func (t Tier) Names() []string {
	names := make([]string, len(t.Gates))
	for i, g := range t.Gates {
		names[i] = g.Name
	}
	return names
}

// Tiers partitions gates by tier number, ascending, with gates ordered by
// name inside a tier.
func Tiers(gates []models.GateSpec) []Tier {
	byTier := map[int][]models.GateSpec{}
	for _, g := range gates {
		byTier[g.Tier] = append(byTier[g.Tier], g)
	}

	numbers := make([]int, 0, len(byTier))
	for n := range byTier {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	tiers := make([]Tier, 0, len(numbers))
	for _, n := range numbers {
		gs := byTier[n]
		sort.Slice(gs, func(i, j int) bool { return gs[i].Name < gs[j].Name })
		tiers = append(tiers, Tier{Number: n, Gates: gs})
	}
	return tiers
}

// Pass is the outcome of one scheduling pass over the gate set.
type Pass struct {
	Results     []models.GateResult
	TiersRun    []int
	BlockedTier int      // -1 when no tier blocked
	Blockers    []string // required gates that failed in BlockedTier
	Interrupted bool     // ctx ended before every tier was attempted
}

// Blocked reports whether a required gate stopped the pass.
func (p Pass) Blocked() bool {
	return p.BlockedTier >= 0
}

// Scheduler runs gate tiers in order.
type Scheduler struct {
	runner GateRunner
	rc     *run.Context
	tracer trace.Tracer
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner GateRunner, rc *run.Context) *Scheduler {
	return &Scheduler{
		runner: runner,
		rc:     rc,
		tracer: otel.Tracer("ralph/gate"),
	}
}

// RunPass runs tiers in ascending order. Every gate of a tier runs to
// completion (or timeout) before the tier is judged. A failed required gate
// records a circuit-breaker failure and ends the pass; later tiers are not
// started. A clean tier records a breaker success.
func (s *Scheduler) RunPass(ctx context.Context, gates []models.GateSpec) Pass {
	pass := Pass{BlockedTier: -1}
	log := s.rc.Log()

	for _, tier := range Tiers(gates) {
		if ctx.Err() != nil {
			pass.Interrupted = true
			break
		}

		log.LogTierStart(tier.Number, tier.Names())
		start := time.Now()
		results := s.runTier(ctx, tier)
		log.LogTierComplete(tier.Number, results, time.Since(start))

		pass.Results = append(pass.Results, results...)
		pass.TiersRun = append(pass.TiersRun, tier.Number)

		var blockers []string
		for i, g := range tier.Gates {
			if g.Required && !results[i].Passed {
				blockers = append(blockers, g.Name)
			}
		}

		if len(blockers) > 0 {
			log.LogWarn(fmt.Sprintf("Required gate(s) failed: %s", strings.Join(blockers, ", ")))
			s.rc.Breaker.RecordFailure()
			pass.BlockedTier = tier.Number
			pass.Blockers = blockers
			break
		}
		s.rc.Breaker.RecordSuccess()
	}

	return pass
}

func (s *Scheduler) runTier(ctx context.Context, tier Tier) []models.GateResult {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("tier.%d", tier.Number), trace.WithAttributes(
		attribute.Int("tier.number", tier.Number),
		attribute.StringSlice("tier.gates", tier.Names()),
	))
	defer span.End()

	results := make([]models.GateResult, len(tier.Gates))
	var wg sync.WaitGroup
	for i, g := range tier.Gates {
		wg.Add(1)
		go func(i int, g models.GateSpec) {
			defer wg.Done()
			results[i] = s.runner.Run(ctx, g)
		}(i, g)
	}
	wg.Wait()
	return results
}
