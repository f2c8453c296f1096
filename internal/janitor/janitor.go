// ABOUTME: Periodic sweep runner for expiring in-memory state.
// ABOUTME: Drives session and context-store eviction off the request path on a fixed interval.

package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultInterval is the sweep cadence used when none is configured.
const DefaultInterval = 60 * time.Second

// Sweeper evicts everything expired at now and reports how many items it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweepFunc adapts a function to the Sweeper interface.
type SweepFunc func(now time.Time) int

// Sweep calls f(now).
func (f SweepFunc) Sweep(now time.Time) int {
	return f(now)
}

type target struct {
	name    string
	sweeper Sweeper
}

// Janitor runs registered sweepers on a ticker until stopped.
type Janitor struct {
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	targets []target
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a Janitor. A non-positive interval falls back to DefaultInterval.
func New(interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		interval: interval,
		logger:   logger.With("component", "janitor"),
		now:      time.Now,
	}
}

// Add registers a sweeper under name. Sweepers run in registration order.
func (j *Janitor) Add(name string, s Sweeper) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.targets = append(j.targets, target{name: name, sweeper: s})
}

// Interval returns the configured sweep cadence.
func (j *Janitor) Interval() time.Duration {
	return j.interval
}

// Start launches the sweep loop. Calling Start on a running Janitor is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.loop(loopCtx, j.done)
}

// Stop cancels the sweep loop and waits for it to exit. Safe to call multiple times.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the sweep loop is active.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// RunOnce sweeps every target immediately and returns the total removed.
// A panicking sweeper is logged and counted as removing nothing; the
// remaining targets still run.
func (j *Janitor) RunOnce() int {
	j.mu.Lock()
	targets := make([]target, len(j.targets))
	copy(targets, j.targets)
	j.mu.Unlock()

	now := j.now()
	total := 0
	for _, t := range targets {
		start := time.Now()
		removed, err := sweep(t.sweeper, now)
		if err != nil {
			j.logger.Error("sweep failed", "target", t.name, "error", err)
			continue
		}
		total += removed
		if removed > 0 {
			j.logger.Debug("sweep removed expired items",
				"target", t.name,
				"removed", removed,
				"duration", time.Since(start),
			)
		}
	}
	return total
}

func sweep(s Sweeper, now time.Time) (removed int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sweeper panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return s.Sweep(now), nil
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("janitor stopping")
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}
