package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"EditorialPlanner/internal/clock"
	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/infrastructure/storage/memory"
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New(clock.Fixed(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	pubs := []domain.Publication{
		{ID: "p-core", Slug: "core", Name: "Core", Type: domain.PublicationNewsletter, WeeklyTarget: 3, IsActive: true},
		{ID: "p-video", Slug: "video", Name: "Video", Type: domain.PublicationVideo, WeeklyTarget: 2, UnifiedWith: "core", IsActive: true},
		{ID: "p-old", Slug: "old", Name: "Old", Type: domain.PublicationNewsletter, WeeklyTarget: 1, IsActive: false},
	}
	for _, p := range pubs {
		if err := store.AddPublication(p); err != nil {
			t.Fatalf("AddPublication: %v", err)
		}
	}
	if err := store.AddSlot(domain.CalendarSlot{
		ID: "core-mon", PublicationID: "p-core", DayOfWeek: time.Monday, TierPriority: 1, IsActive: true,
	}); err != nil {
		t.Fatalf("AddSlot: %v", err)
	}
	return store
}

func TestResolve(t *testing.T) {
	t.Parallel()
	reg := New(seed(t))
	ctx := context.Background()

	pub, err := reg.Resolve(ctx, "core")
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if pub.ID != "p-core" {
		t.Fatalf("resolved wrong publication: %s", pub.ID)
	}

	if _, err := reg.Resolve(ctx, "nope"); !errors.Is(err, domain.ErrUnknownPublication) {
		t.Fatalf("expected ErrUnknownPublication, got %v", err)
	}
	if _, err := reg.Resolve(ctx, "old"); !errors.Is(err, domain.ErrInactivePublication) {
		t.Fatalf("expected ErrInactivePublication, got %v", err)
	}
}

func TestGridForResolvesUnifiedOneHop(t *testing.T) {
	t.Parallel()
	reg := New(seed(t))
	ctx := context.Background()

	video, err := reg.Resolve(ctx, "video")
	if err != nil {
		t.Fatalf("resolve video: %v", err)
	}
	slots, err := reg.GridFor(ctx, video)
	if err != nil {
		t.Fatalf("GridFor: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != "core-mon" {
		t.Fatalf("unified publication must plan into core's grid, got %v", slots)
	}
}

func TestActive(t *testing.T) {
	t.Parallel()
	reg := New(seed(t))

	active, err := reg.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active publications, got %d", len(active))
	}
}
