package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
	"EditorialPlanner/internal/queue"
	"EditorialPlanner/internal/registry"
)

// PlannerDeps wires the recurring planning job.
type PlannerDeps struct {
	Engine      *Engine
	Registry    *registry.Registry
	Driver      ports.Scheduler
	Notifier    ports.Notifier
	HorizonDays int
	Logger      *slog.Logger
}

// Planner runs the allocator for every active publication over the
// planning horizon and sends the operator digest. It is the single
// writer the allocator's concurrency contract expects: one run per
// publication at a time.
type Planner struct {
	engine      *Engine
	registry    *registry.Registry
	driver      ports.Scheduler
	notifier    ports.Notifier
	horizonDays int
	logger      *slog.Logger
}

// NewPlanner constructs the planning job.
func NewPlanner(deps PlannerDeps) *Planner {
	horizon := deps.HorizonDays
	if horizon < 1 {
		horizon = 7
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		engine:      deps.Engine,
		registry:    deps.Registry,
		driver:      deps.Driver,
		notifier:    deps.Notifier,
		horizonDays: horizon,
		logger:      logger,
	}
}

// RunOnce performs a full planning pass as of the given instant. A
// failing publication is logged and skipped; the pass continues so one
// bad grid cannot starve the rest.
func (p *Planner) RunOnce(ctx context.Context, asOf time.Time) error {
	pubs, err := p.registry.Active(ctx)
	if err != nil {
		return fmt.Errorf("list active publications: %w", err)
	}

	start := domain.Midnight(asOf)
	end := start.AddDate(0, 0, p.horizonDays-1)

	var reports []pubReport
	for _, pub := range pubs {
		result, err := p.engine.RunAllocator(ctx, pub.Slug, start, end)
		if err != nil {
			p.logger.Error("allocator run failed", "publication", pub.Slug, "error", err)
			continue
		}
		health, err := p.engine.QueueHealth(ctx, pub.Slug)
		if err != nil {
			p.logger.Error("queue health failed", "publication", pub.Slug, "error", err)
			continue
		}
		reports = append(reports, pubReport{result: result, health: health})
	}

	if p.notifier != nil && len(reports) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigest(reports)); err != nil {
			// Advisory only; a broken notifier never fails planning.
			p.logger.Warn("digest delivery failed", "error", err)
		}
	}
	return nil
}

// Start registers the planning pass with the scheduler driver.
func (p *Planner) Start(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}
	job := func(trigger time.Time) {
		if err := p.RunOnce(ctx, trigger); err != nil {
			p.logger.Error("planning pass failed", "error", err)
		}
	}
	return p.driver.Start(ctx, job)
}

// Stop tears down the scheduler driver.
func (p *Planner) Stop(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}
	return p.driver.Stop(ctx)
}

type pubReport struct {
	result *AllocationResult
	health *queue.Health
}

func buildDigest(reports []pubReport) string {
	var b strings.Builder
	b.WriteString("Editorial planning digest\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "\n*%s* (%s to %s)\n",
			r.result.PublicationSlug,
			r.result.Start.Format(time.DateOnly),
			r.result.End.Format(time.DateOnly))
		fmt.Fprintf(&b, "slotted %d, reserved %d fixed, unfilled %d\n",
			len(r.result.Slotted), len(r.result.Reserved), len(r.result.Unfilled))
		fmt.Fprintf(&b, "queue: %d ideas, %d weeks of buffer, %d stale\n",
			r.health.QueueLength, r.health.WeeksOfBuffer, r.health.StaleCount)
		if r.result.Exhausted {
			b.WriteString("backlog exhausted, score more ideas\n")
		}
	}
	return b.String()
}
