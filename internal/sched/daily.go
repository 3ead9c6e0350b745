// Package sched fires a refresh once per day at a fixed hour in a
// civil timezone, re-arming itself after every run.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/listing"
)

// Refresher triggers one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) []listing.Event
}

// Daily schedules a refresh at a target hour in a civil timezone.
type Daily struct {
	refresher Refresher
	hour      int
	loc       *time.Location
	clock     listing.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// New constructs a Daily scheduler.
func New(refresher Refresher, hour int, loc *time.Location, clock listing.Clock, logger *zap.Logger) *Daily {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daily{
		refresher: refresher,
		hour:      hour,
		loc:       loc,
		clock:     clock,
		logger:    logger,
	}
}

// DelayUntil computes the wait until the next occurrence of hour
// o'clock in loc. If that hour has already passed today, the next
// occurrence is tomorrow.
func DelayUntil(now time.Time, hour int, loc *time.Location) time.Duration {
	civil := now.In(loc)
	next := time.Date(civil.Year(), civil.Month(), civil.Day(), hour, 0, 0, 0, loc)
	if !next.After(civil) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(civil)
}

// Start arms the schedule. Calling Start on a running scheduler is a
// no-op.
func (d *Daily) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.armLocked()
}

// Stop clears the schedule.
func (d *Daily) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Daily) armLocked() {
	delay := DelayUntil(d.clock.Now(), d.hour, d.loc)
	d.logger.Info("daily refresh scheduled",
		zap.Duration("delay", delay),
		zap.Int("hour", d.hour),
		zap.String("timezone", d.loc.String()),
	)
	d.timer = time.AfterFunc(delay, d.fire)
}

// fire runs the refresh and unconditionally re-arms. A refresh panic
// is recovered so the schedule never silently stops.
func (d *Daily) fire() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("scheduled refresh panicked", zap.Any("panic", r))
		}
		d.mu.Lock()
		if d.running {
			d.armLocked()
		}
		d.mu.Unlock()
	}()

	d.logger.Info("scheduled refresh firing")
	d.refresher.Refresh(context.Background())
}
