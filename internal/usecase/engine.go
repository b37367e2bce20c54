// Package usecase implements the idea routing state machine and the
// slot allocation algorithm over the storage and configuration ports.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
	"EditorialPlanner/internal/queue"
	"EditorialPlanner/internal/registry"
	"EditorialPlanner/internal/tiering"
)

// EngineDeps wires the engine's collaborators.
type EngineDeps struct {
	Registry     *registry.Registry
	Store        ports.RoutingStore
	Clock        ports.Clock
	Thresholds   tiering.Thresholds
	StaleHorizon time.Duration
	Logger       *slog.Logger
}

// Engine is the synchronous, stateless core: every method is a single
// atomic unit against the store, and nothing here is auto-retried.
type Engine struct {
	registry     *registry.Registry
	store        ports.RoutingStore
	clock        ports.Clock
	thresholds   tiering.Thresholds
	staleHorizon time.Duration
	logger       *slog.Logger
}

// NewEngine constructs the engine.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:     deps.Registry,
		store:        deps.Store,
		clock:        deps.Clock,
		thresholds:   deps.Thresholds,
		staleHorizon: deps.StaleHorizon,
		logger:       logger,
	}
}

// IntakeAttributes are the descriptive inputs the scoring collaborator
// reads later; the engine stores them opaquely.
type IntakeAttributes struct {
	YouTubeVersion     bool
	Audience           string
	TimeSensitivity    string
	Resource           string
	EstimatedLength    string
	IsFoundational     bool
	HasContrarianAngle bool
}

// CreateIntake registers a routing record for a freshly ingested idea.
func (e *Engine) CreateIntake(ctx context.Context, ideaID string, attrs IntakeAttributes) (*domain.IdeaRouting, error) {
	if ideaID == "" {
		return nil, fmt.Errorf("create intake: empty idea id")
	}
	r := &domain.IdeaRouting{
		ID:                 uuid.NewString(),
		IdeaID:             ideaID,
		Status:             domain.StatusIntake,
		YouTubeVersion:     attrs.YouTubeVersion,
		Audience:           attrs.Audience,
		TimeSensitivity:    attrs.TimeSensitivity,
		Resource:           attrs.Resource,
		EstimatedLength:    attrs.EstimatedLength,
		IsFoundational:     attrs.IsFoundational,
		HasContrarianAngle: attrs.HasContrarianAngle,
	}
	if err := e.store.CreateRouting(ctx, r); err != nil {
		return nil, fmt.Errorf("create intake for idea %s: %w", ideaID, err)
	}
	return r, nil
}

// RouteIdea moves an idea's routing from intake to routed, binding it to
// an active publication.
func (e *Engine) RouteIdea(ctx context.Context, ideaID, publicationSlug string) (*domain.IdeaRouting, error) {
	if _, err := e.registry.Resolve(ctx, publicationSlug); err != nil {
		return nil, err
	}
	r, err := e.store.GetRoutingByIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusIntake {
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusRouted}
	}
	patch := domain.RoutingPatch{Status: domain.StatusRouted, RoutedTo: &publicationSlug}
	if err := e.store.TransitionRouting(ctx, r.ID, domain.StatusIntake, patch); err != nil {
		return nil, err
	}
	return e.store.GetRouting(ctx, r.ID)
}

// ScoreIdea records the collaborator's scores, resolves the tier, and
// enqueues the routing, or kills it outright when the tier resolves to
// kill. The status change and the queue mutation are one atomic unit.
func (e *Engine) ScoreIdea(ctx context.Context, routingID string, scores domain.ScoreSet) (*domain.IdeaRouting, error) {
	r, err := e.store.GetRouting(ctx, routingID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusRouted {
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusScored}
	}

	tier, mean, err := tiering.Aggregate(scores, e.thresholds)
	if err != nil {
		return nil, fmt.Errorf("score routing %s: %w", routingID, err)
	}

	if tier == domain.TierKill {
		reason := "scored below threshold"
		patch := domain.RoutingPatch{
			Status:     domain.StatusKilled,
			Scores:     scores,
			Tier:       &tier,
			KillReason: &reason,
		}
		if err := e.store.TransitionRouting(ctx, routingID, domain.StatusRouted, patch); err != nil {
			return nil, err
		}
		e.logger.Info("idea killed by score", "routing", routingID, "mean", mean)
		return e.store.GetRouting(ctx, routingID)
	}

	pub, err := e.registry.Resolve(ctx, r.RoutedTo)
	if err != nil {
		return nil, err
	}

	entry := &domain.EvergreenQueueEntry{
		ID:            uuid.NewString(),
		IdeaRoutingID: routingID,
		PublicationID: pub.ID,
		Tier:          tier,
		Score:         mean,
		AddedAt:       e.clock.Now(),
	}
	err = e.store.Atomically(ctx, func(tx ports.RoutingTx) error {
		patch := domain.RoutingPatch{Status: domain.StatusScored, Scores: scores, Tier: &tier}
		if err := tx.TransitionRouting(ctx, routingID, domain.StatusRouted, patch); err != nil {
			return err
		}
		return tx.CreateQueueEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("idea scored", "routing", routingID, "tier", tier, "mean", mean)
	return e.store.GetRouting(ctx, routingID)
}

// ConfirmSchedule is the external confirmation step: content for a
// slotted idea is finalized, so the routing advances to scheduled.
func (e *Engine) ConfirmSchedule(ctx context.Context, routingID string) (*domain.IdeaRouting, error) {
	r, err := e.store.GetRouting(ctx, routingID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusSlotted {
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusScheduled}
	}
	patch := domain.RoutingPatch{Status: domain.StatusScheduled}
	if err := e.store.TransitionRouting(ctx, routingID, domain.StatusSlotted, patch); err != nil {
		return nil, err
	}
	return e.store.GetRouting(ctx, routingID)
}

// PublishIdea marks a scheduled idea as shipped. Publishing with a
// calendar date still in the future fails with ErrPrematurePublish.
func (e *Engine) PublishIdea(ctx context.Context, routingID string) (*domain.IdeaRouting, error) {
	r, err := e.store.GetRouting(ctx, routingID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusScheduled {
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusPublished}
	}
	today := domain.Midnight(e.clock.Now())
	if r.CalendarDate == nil || r.CalendarDate.After(today) {
		return nil, fmt.Errorf("routing %s scheduled for %v: %w", routingID, r.CalendarDate, domain.ErrPrematurePublish)
	}
	patch := domain.RoutingPatch{Status: domain.StatusPublished}
	if err := e.store.TransitionRouting(ctx, routingID, domain.StatusScheduled, patch); err != nil {
		return nil, err
	}
	return e.store.GetRouting(ctx, routingID)
}

// KillIdea is the editorial override: any non-terminal routing can be
// killed with a reason. An active queue entry goes with it atomically.
func (e *Engine) KillIdea(ctx context.Context, routingID, reason string) (*domain.IdeaRouting, error) {
	if reason == "" {
		return nil, fmt.Errorf("kill routing %s: reason required", routingID)
	}
	r, err := e.store.GetRouting(ctx, routingID)
	if err != nil {
		return nil, err
	}
	if r.Terminal() {
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusKilled}
	}
	now := e.clock.Now()
	err = e.store.Atomically(ctx, func(tx ports.RoutingTx) error {
		patch := domain.RoutingPatch{Status: domain.StatusKilled, KillReason: &reason}
		if err := tx.TransitionRouting(ctx, routingID, r.Status, patch); err != nil {
			return err
		}
		if err := tx.PullQueueEntryForRouting(ctx, routingID, now, "killed"); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("idea killed", "routing", routingID, "reason", reason)
	return e.store.GetRouting(ctx, routingID)
}

// Unschedule is the deliberate release of a calendar binding. A slotted
// routing reverts to scored and re-enters the queue; a killed routing
// only loses the date it held for audit, freeing the slot instance for
// future allocator runs.
func (e *Engine) Unschedule(ctx context.Context, routingID string) (*domain.IdeaRouting, error) {
	r, err := e.store.GetRouting(ctx, routingID)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case domain.StatusKilled:
		patch := domain.RoutingPatch{Status: domain.StatusKilled, ClearCalendarDate: true, ClearSlotID: true}
		if err := e.store.TransitionRouting(ctx, routingID, domain.StatusKilled, patch); err != nil {
			return nil, err
		}
	case domain.StatusSlotted:
		mean, err := r.Scores.Mean()
		if err != nil {
			return nil, fmt.Errorf("unschedule routing %s: %w", routingID, err)
		}
		pub, err := e.registry.Resolve(ctx, r.RoutedTo)
		if err != nil {
			return nil, err
		}
		entry := &domain.EvergreenQueueEntry{
			ID:            uuid.NewString(),
			IdeaRoutingID: routingID,
			PublicationID: pub.ID,
			Tier:          r.Tier,
			Score:         mean,
			AddedAt:       e.clock.Now(),
		}
		err = e.store.Atomically(ctx, func(tx ports.RoutingTx) error {
			patch := domain.RoutingPatch{Status: domain.StatusScored, ClearCalendarDate: true, ClearSlotID: true}
			if err := tx.TransitionRouting(ctx, routingID, domain.StatusSlotted, patch); err != nil {
				return err
			}
			return tx.CreateQueueEntry(ctx, entry)
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, &domain.TransitionError{From: r.Status, To: domain.StatusScored}
	}
	return e.store.GetRouting(ctx, routingID)
}

// QueueHealth reports the advisory buffer diagnostic for a publication.
func (e *Engine) QueueHealth(ctx context.Context, publicationSlug string) (*queue.Health, error) {
	pub, err := e.registry.Resolve(ctx, publicationSlug)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListQueue(ctx, pub.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue for %s: %w", publicationSlug, err)
	}
	h := queue.Measure(*pub, entries, e.clock.Now(), e.staleHorizon)
	return &h, nil
}
