// Package registry resolves publication slugs against the configuration
// store and answers which slot grid a publication plans into.
package registry

import (
	"context"
	"fmt"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
)

// Registry is the engine's view of publication configuration.
type Registry struct {
	store ports.PublicationStore
}

// New wraps a publication store.
func New(store ports.PublicationStore) *Registry {
	return &Registry{store: store}
}

// Resolve returns the active publication for a slug. Unknown slugs fail
// with domain.ErrUnknownPublication, deactivated ones with
// domain.ErrInactivePublication.
func (r *Registry) Resolve(ctx context.Context, slug string) (*domain.Publication, error) {
	pub, err := r.store.GetPublication(ctx, slug)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, fmt.Errorf("publication %q: %w", slug, domain.ErrUnknownPublication)
	}
	if !pub.IsActive {
		return nil, fmt.Errorf("publication %q: %w", slug, domain.ErrInactivePublication)
	}
	return pub, nil
}

// GridFor returns the slot templates a publication plans into. A unified
// publication resolves the referenced publication's grid instead of its
// own, exactly one hop: the referenced publication's own UnifiedWith, if
// any, is not followed.
func (r *Registry) GridFor(ctx context.Context, pub *domain.Publication) ([]domain.CalendarSlot, error) {
	gridPub := pub
	if pub.UnifiedWith != "" {
		shared, err := r.store.GetPublication(ctx, pub.UnifiedWith)
		if err != nil {
			return nil, err
		}
		if shared == nil {
			return nil, fmt.Errorf("unified publication %q: %w", pub.UnifiedWith, domain.ErrUnknownPublication)
		}
		gridPub = shared
	}
	slots, err := r.store.ListSlots(ctx, gridPub.ID)
	if err != nil {
		return nil, fmt.Errorf("list slots for %s: %w", gridPub.Slug, err)
	}
	return slots, nil
}

// Active lists publications available for routing and allocation runs.
func (r *Registry) Active(ctx context.Context) ([]domain.Publication, error) {
	return r.store.ListActivePublications(ctx)
}
