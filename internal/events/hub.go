// Package events adapts two independent live query streams into one
// continuously updated reminder list.
//
// The agenda and finance subscriptions fire asynchronously and in no
// order relative to each other. Each stream owns its own derived slice;
// the merged view is recomputed by pure concatenation and sort whenever
// either slice changes, so one stream's snapshot is visible without
// waiting for the other.
package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"freelance-remind/internal/derive"
	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/logging"
	"freelance-remind/internal/models"
	"freelance-remind/internal/schedule"
)

// CancelFunc tears down a live subscription.
type CancelFunc func()

// LiveSource is the external live-query collaborator. Each channel
// delivers full snapshots in the order the backing store emits them and
// is closed when the subscription ends.
type LiveSource interface {
	// SubscribeAgenda streams agenda items dated within
	// [today, today+window].
	SubscribeAgenda(ctx context.Context, userID string) (<-chan []models.DomainEvent, CancelFunc, error)
	// SubscribeFinance streams pending finance items with no upper
	// date bound, so overdue items remain visible.
	SubscribeFinance(ctx context.Context, userID string) (<-chan []models.DomainEvent, CancelFunc, error)
}

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel.
	SubscriberBufferSize int
	// Derive controls reminder derivation.
	Derive derive.Options
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SubscriberBufferSize: 16,
		Derive:               derive.DefaultOptions(),
	}
}

// Subscriber receives merged reminder snapshots.
type Subscriber struct {
	ID           string
	Channel      chan []models.ReminderDescriptor
	DroppedCount int
	CreatedAt    time.Time
}

// Hub merges the two live streams, re-derives reminders on every
// snapshot, fans the merged list out to subscribers, and feeds
// schedulable descriptors to the scheduler.
type Hub struct {
	config    HubConfig
	source    LiveSource
	scheduler *schedule.Scheduler
	logger    zerolog.Logger
	now       func() time.Time

	mu          sync.RWMutex
	agenda      []models.ReminderDescriptor
	finance     []models.ReminderDescriptor
	subscribers map[string]*Subscriber
	cancels     []CancelFunc
	started     bool
	stopped     bool

	wg sync.WaitGroup
}

// NewHub creates a hub over the given source and scheduler.
func NewHub(source LiveSource, scheduler *schedule.Scheduler, config HubConfig, logger zerolog.Logger) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		source:      source,
		scheduler:   scheduler,
		logger:      logger,
		now:         time.Now,
		subscribers: make(map[string]*Subscriber),
	}
}

// SetClock overrides the wall clock. Test hook.
func (h *Hub) SetClock(now func() time.Time) {
	h.now = now
}

// Start opens both live subscriptions for the user and begins
// republishing. Idempotent.
func (h *Hub) Start(ctx context.Context, userID string) error {
	h.mu.Lock()
	if h.started || h.stopped {
		h.mu.Unlock()
		if h.stopped {
			return apperrors.ErrHubStopped
		}
		return nil
	}
	h.started = true
	h.mu.Unlock()

	agendaCh, cancelAgenda, err := h.source.SubscribeAgenda(ctx, userID)
	if err != nil {
		return apperrors.NewSubscriptionError("agenda", err)
	}
	financeCh, cancelFinance, err := h.source.SubscribeFinance(ctx, userID)
	if err != nil {
		cancelAgenda()
		return apperrors.NewSubscriptionError("finance", err)
	}

	h.mu.Lock()
	h.cancels = []CancelFunc{cancelAgenda, cancelFinance}
	h.mu.Unlock()

	h.wg.Add(2)
	go h.consume(ctx, "agenda", agendaCh)
	go h.consume(ctx, "finance", financeCh)
	return nil
}

// consume re-runs derivation on every snapshot of one stream and
// republishes the merged list.
func (h *Hub) consume(ctx context.Context, stream string, ch <-chan []models.DomainEvent) {
	defer h.wg.Done()
	logger := logging.WithStream(h.logger, stream)

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			derived := derive.Derive(snapshot, h.now(), h.config.Derive)
			logging.LogDerived(logger, stream, len(snapshot), len(derived))

			h.mu.Lock()
			if stream == "agenda" {
				h.agenda = derived
			} else {
				h.finance = derived
			}
			merged := Merge(h.agenda, h.finance)
			h.mu.Unlock()

			h.scheduler.ScheduleBatch(ctx, derived)
			h.broadcast(merged)
		}
	}
}

// Merge combines two derived slices into the UI-facing list, sorted by
// due date ascending. Pure; neither input is mutated.
func Merge(a, b []models.ReminderDescriptor) []models.ReminderDescriptor {
	merged := make([]models.ReminderDescriptor, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].DueDate < merged[j].DueDate
	})
	return merged
}

// broadcast sends the merged list to all subscribers. Non-blocking:
// slow consumers drop snapshots rather than stalling the stream.
func (h *Hub) broadcast(merged []models.ReminderDescriptor) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Channel <- merged:
		default:
			sub.DroppedCount++
		}
	}
}

// Subscribe registers a consumer of merged snapshots and returns its
// ID and channel. The current merged list is delivered immediately so
// late subscribers do not wait for the next upstream emission.
func (h *Hub) Subscribe() (string, <-chan []models.ReminderDescriptor) {
	sub := &Subscriber{
		ID:        uuid.New().String(),
		Channel:   make(chan []models.ReminderDescriptor, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	current := Merge(h.agenda, h.finance)
	h.mu.Unlock()

	if len(current) > 0 {
		sub.Channel <- current
	}
	return sub.ID, sub.Channel
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Snapshot returns the current merged reminder list.
func (h *Hub) Snapshot() []models.ReminderDescriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Merge(h.agenda, h.finance)
}

// Stop cancels both live subscriptions, closes all subscriber channels
// and shuts the scheduler down so no delayed-delivery timer outlives
// the records that produced it.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	cancels := h.cancels
	h.cancels = nil
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	h.wg.Wait()

	h.mu.Lock()
	for id, sub := range h.subscribers {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	h.scheduler.Close()
}
