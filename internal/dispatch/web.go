package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/logging"
	"freelance-remind/internal/models"
)

// PromptFunc models the browser permission prompt.
type PromptFunc func(ctx context.Context) (bool, error)

// NotifyFunc surfaces a notification on the web capability class.
type NotifyFunc func(title, body string)

// WebDeliverer is the browser-style fallback: immediate delivery gated
// on an already-granted permission, and delayed delivery as plain
// in-process timers. Timers do not survive process exit; that is an
// accepted limitation of this capability class, not a bug.
type WebDeliverer struct {
	prompt PromptFunc
	notify NotifyFunc
	logger zerolog.Logger

	mu      sync.Mutex
	granted bool
	timers  map[string]*time.Timer
	hook    func(key string)
	closed  bool
}

// NewWebDeliverer creates a WebDeliverer. A nil prompt defaults to
// granted; a nil notify surfaces through the structured log.
func NewWebDeliverer(prompt PromptFunc, notify NotifyFunc, logger zerolog.Logger) *WebDeliverer {
	w := &WebDeliverer{
		prompt: prompt,
		notify: notify,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
	if w.prompt == nil {
		w.prompt = func(ctx context.Context) (bool, error) { return true, nil }
	}
	if w.notify == nil {
		w.notify = func(title, body string) {
			logger.Info().Str("title", title).Str("body", body).Msg("Notification")
		}
	}
	return w
}

// Capability returns the web capability class.
func (w *WebDeliverer) Capability() models.Capability {
	return models.CapabilityWeb
}

// RequestPermission runs the prompt and remembers the outcome.
func (w *WebDeliverer) RequestPermission(ctx context.Context) (bool, error) {
	granted, err := w.prompt(ctx)
	w.mu.Lock()
	w.granted = granted && err == nil
	w.mu.Unlock()
	return granted, err
}

// DeliverNow fires only if permission was already granted; it never
// prompts itself.
func (w *WebDeliverer) DeliverNow(ctx context.Context, title, body string) error {
	w.mu.Lock()
	granted := w.granted
	w.mu.Unlock()

	if !granted {
		return nil
	}
	w.notify(title, body)
	logging.LogDelivered(w.logger, string(models.CapabilityWeb), "")
	return nil
}

// DeliverAt arms an in-process timer, replacing any pending timer for
// the same key.
func (w *WebDeliverer) DeliverAt(ctx context.Context, key, title, body string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if prev, ok := w.timers[key]; ok {
		prev.Stop()
	}
	w.timers[key] = time.AfterFunc(time.Until(at), func() {
		w.fire(key, title, body)
	})
	return nil
}

func (w *WebDeliverer) fire(key, title, body string) {
	w.mu.Lock()
	delete(w.timers, key)
	granted := w.granted
	hook := w.hook
	w.mu.Unlock()

	if granted {
		w.notify(title, body)
		logging.LogDelivered(w.logger, string(models.CapabilityWeb), key)
	}
	if hook != nil {
		hook(key)
	}
}

// CancelScheduled stops the pending timer for the key.
func (w *WebDeliverer) CancelScheduled(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[key]; ok {
		t.Stop()
		delete(w.timers, key)
	}
}

// SetCompletionHook registers the registry cleanup callback.
func (w *WebDeliverer) SetCompletionHook(hook func(key string)) {
	w.mu.Lock()
	w.hook = hook
	w.mu.Unlock()
}

// PendingTimers returns the number of armed timers.
func (w *WebDeliverer) PendingTimers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Close stops every pending timer.
func (w *WebDeliverer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for key, t := range w.timers {
		t.Stop()
		delete(w.timers, key)
	}
}

// NoopDeliverer is the silent degrade target when notifications are
// disabled or no capability exists. The in-app list stays correct;
// nothing reaches an OS surface.
type NoopDeliverer struct {
	logger zerolog.Logger
	once   sync.Once
}

// NewNoopDeliverer creates a NoopDeliverer.
func NewNoopDeliverer(logger zerolog.Logger) *NoopDeliverer {
	return &NoopDeliverer{logger: logger}
}

// Capability returns the none capability class.
func (n *NoopDeliverer) Capability() models.Capability {
	return models.CapabilityNone
}

// RequestPermission grants so callers do not log a denial on top of
// the capability-absent log.
func (n *NoopDeliverer) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// DeliverNow logs once and discards.
func (n *NoopDeliverer) DeliverNow(ctx context.Context, title, body string) error {
	n.once.Do(func() {
		n.logger.Warn().Msg("No notification capability; deliveries are discarded")
	})
	return nil
}

// DeliverAt logs once and discards.
func (n *NoopDeliverer) DeliverAt(ctx context.Context, key, title, body string, at time.Time) error {
	return n.DeliverNow(ctx, title, body)
}

// CancelScheduled does nothing.
func (n *NoopDeliverer) CancelScheduled(key string) {}

// SetCompletionHook does nothing; nothing ever fires.
func (n *NoopDeliverer) SetCompletionHook(hook func(key string)) {}

// Close does nothing.
func (n *NoopDeliverer) Close() {}
