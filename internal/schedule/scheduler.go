// Package schedule hands future-dated reminder descriptors to the
// platform dispatcher at the right wall-clock moment.
//
// Re-derivation runs on every upstream snapshot, so the same descriptor
// arrives here over and over. The scheduler keys everything by dedup
// key and cancels-and-replaces instead of scheduling additively; one
// logical reminder never holds more than one live timer.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/dispatch"
	"freelance-remind/internal/models"
)

// Scheduler registers delayed deliveries with the dispatcher. Key
// tracking lives in the dispatcher's pending registry, which is pruned
// as timers fire; the scheduler gates lifecycle and the past-trigger
// rule.
type Scheduler struct {
	dispatcher *dispatch.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewScheduler creates a Scheduler bound to the dispatcher.
func NewScheduler(dispatcher *dispatch.Dispatcher, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the wall clock. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Schedule registers one descriptor. Descriptors without a trigger, or
// whose trigger has already passed, are a no-op: they stay visible in
// the in-app list but never become an OS-level push.
func (s *Scheduler) Schedule(ctx context.Context, d models.ReminderDescriptor) {
	if !d.HasTrigger() || !d.TriggerAt.After(s.now()) {
		s.logger.Debug().Str("dedup_key", d.DedupKey).Msg("Trigger absent or past; not scheduling")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The dispatcher replaces any pending delivery for this key.
	s.dispatcher.DeliverAt(ctx, d.DedupKey, d.Title, d.Body, d.TriggerAt)
}

// ScheduleBatch registers every schedulable descriptor in a derivation
// result.
func (s *Scheduler) ScheduleBatch(ctx context.Context, descriptors []models.ReminderDescriptor) {
	for _, d := range descriptors {
		s.Schedule(ctx, d)
	}
}

// Cancel stops the pending delivery for a key, typically because its
// owning record was deleted upstream.
func (s *Scheduler) Cancel(key string) {
	s.dispatcher.Cancel(key)
}

// Close cancels every pending delivery. Teardown must not leave a
// timer referencing a record that no longer exists.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.dispatcher.CancelAll()
}
