// Package scheduler drives recurring planning passes.
package scheduler

import (
	"context"
	"time"

	"EditorialPlanner/internal/ports"
)

// Daily fires the job once immediately and then on a fixed interval.
// The allocator is idempotent, so an extra firing after a missed tick
// is harmless.
type Daily struct {
	interval time.Duration
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*Daily)(nil)

// NewDaily builds the driver; a non-positive interval means every 24h.
func NewDaily(interval time.Duration, loc *time.Location) *Daily {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{interval: interval, location: loc}
}

// Start launches the ticking goroutine. Starting twice is a no-op.
func (d *Daily) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || d.stop != nil {
		return nil
	}

	d.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		job(time.Now().In(d.location))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(d.location))
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the ticking goroutine.
func (d *Daily) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}
