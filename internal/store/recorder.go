// ABOUTME: Fire-and-forget interaction recorder in front of a Store
// ABOUTME: Record never blocks a turn; a single worker drains a bounded queue and logs write failures

package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize bounds interactions waiting to be written.
const DefaultQueueSize = 256

// saveTimeout bounds a single write.
const saveTimeout = 5 * time.Second

// Recorder writes interactions asynchronously. A nil *Recorder drops everything.
type Recorder struct {
	store  Store
	queue  chan *Interaction
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder starts a recorder writing to s. queueSize <= 0 uses DefaultQueueSize.
func NewRecorder(s Store, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  s,
		queue:  make(chan *Interaction, queueSize),
		logger: logger.With("component", "recorder"),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues i for writing. It never blocks: when the queue is full or
// the recorder is closed the interaction is dropped and counted.
func (r *Recorder) Record(i Interaction) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- &i:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("interaction queue full, dropping", "platform", i.Platform, "user_id", i.UserID, "dropped_total", n)
	}
}

// Dropped returns how many interactions were discarded without a write attempt.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Failed returns how many writes returned an error.
func (r *Recorder) Failed() int64 {
	if r == nil {
		return 0
	}
	return r.failed.Load()
}

// Close stops accepting interactions and waits for queued ones to be written
// or for ctx to end, whichever is first. It does not close the Store.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for i := range r.queue {
		r.save(i)
	}
}

func (r *Recorder) save(i *Interaction) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.SaveInteraction(ctx, i); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to record interaction",
			"platform", i.Platform,
			"user_id", i.UserID,
			"error", err,
		)
	}
}
