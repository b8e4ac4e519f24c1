// Package dispatch abstracts notification delivery across platform
// capability classes. The capability is resolved once at process start;
// every later call goes through the same Deliverer, so there is no
// per-call platform branching.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/logging"
	"freelance-remind/internal/models"
)

// Deliverer is the uniform delivery contract implemented by each
// capability variant.
type Deliverer interface {
	// Capability reports which variant this is.
	Capability() models.Capability
	// RequestPermission asks the platform for notification permission.
	RequestPermission(ctx context.Context) (bool, error)
	// DeliverNow fires a notification immediately.
	DeliverNow(ctx context.Context, title, body string) error
	// DeliverAt registers a one-shot delayed delivery keyed by the
	// dedup key. Scheduling the same key again replaces the pending
	// delivery instead of adding a second one.
	DeliverAt(ctx context.Context, key, title, body string, at time.Time) error
	// CancelScheduled stops a pending delayed delivery, if any.
	CancelScheduled(key string)
	// SetCompletionHook registers a callback invoked after a delayed
	// delivery fires, so the owning registry can forget the key.
	SetCompletionHook(hook func(key string))
	// Close cancels every pending delivery.
	Close()
}

// permissionState tracks the lazy one-shot permission request.
type permissionState int

const (
	permissionUnknown permissionState = iota
	permissionGranted
	permissionDenied
)

// Dispatcher wraps the resolved Deliverer with permission latching and
// the pending-by-dedup-key registry. All registry writes go through it;
// the Scheduler never touches the platform layer directly.
type Dispatcher struct {
	deliverer Deliverer
	logger    zerolog.Logger

	mu         sync.Mutex
	promptOnce sync.Once
	permission permissionState
	pending    map[string]struct{}
}

// NewDispatcher creates a Dispatcher around the given deliverer.
func NewDispatcher(d Deliverer, logger zerolog.Logger) *Dispatcher {
	dp := &Dispatcher{
		deliverer: d,
		logger:    logging.WithCapability(logger, string(d.Capability())),
		pending:   make(map[string]struct{}),
	}
	d.SetCompletionHook(dp.markDone)
	return dp
}

// Capability reports the resolved capability class.
func (dp *Dispatcher) Capability() models.Capability {
	return dp.deliverer.Capability()
}

// ensurePermission requests permission on first use. The request is
// serialized through promptOnce: concurrent first deliveries share a
// single prompt, and late callers block until its outcome is latched.
// A denial is terminal for the session: it is logged once and every
// later delivery becomes a no-op.
func (dp *Dispatcher) ensurePermission(ctx context.Context) bool {
	dp.promptOnce.Do(func() {
		granted, err := dp.deliverer.RequestPermission(ctx)
		if err != nil {
			granted = false
			dp.logger.Warn().Err(err).Msg("Permission request failed")
		}

		dp.mu.Lock()
		if granted {
			dp.permission = permissionGranted
		} else {
			dp.permission = permissionDenied
		}
		dp.mu.Unlock()

		if !granted {
			dp.logger.Warn().Msg("Notification permission denied; degrading to in-app list only")
		}
	})

	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.permission == permissionGranted
}

// DeliverNow fires a notification immediately, requesting permission
// lazily on first use. The variant that actually reaches a surface
// logs the delivery; the dispatcher only logs drops.
func (dp *Dispatcher) DeliverNow(ctx context.Context, title, body string) error {
	if !dp.ensurePermission(ctx) {
		return nil
	}
	if err := dp.deliverer.DeliverNow(ctx, title, body); err != nil {
		logging.LogDropped(dp.logger, "", "deliver_now", err)
	}
	return nil
}

// DeliverAt registers a delayed delivery. An already-pending delivery
// for the same key is replaced, never duplicated. Delivery failures are
// logged and dropped; a missed reminder is lower-severity than a crash.
func (dp *Dispatcher) DeliverAt(ctx context.Context, key, title, body string, at time.Time) error {
	if !dp.ensurePermission(ctx) {
		return nil
	}

	dp.mu.Lock()
	if _, exists := dp.pending[key]; exists {
		dp.deliverer.CancelScheduled(key)
	}
	dp.pending[key] = struct{}{}
	dp.mu.Unlock()

	if err := dp.deliverer.DeliverAt(ctx, key, title, body, at); err != nil {
		dp.mu.Lock()
		delete(dp.pending, key)
		dp.mu.Unlock()
		logging.LogDropped(dp.logger, key, "deliver_at", apperrors.NewDeliveryError(string(dp.Capability()), key, err))
		return nil
	}
	logging.LogScheduled(dp.logger, key, at)
	return nil
}

// Cancel stops a pending delivery for the key.
func (dp *Dispatcher) Cancel(key string) {
	dp.mu.Lock()
	_, exists := dp.pending[key]
	delete(dp.pending, key)
	dp.mu.Unlock()

	if exists {
		dp.deliverer.CancelScheduled(key)
	}
}

// CancelAll stops every pending delivery. Called on teardown so no
// timer outlives the records that produced it.
func (dp *Dispatcher) CancelAll() {
	dp.mu.Lock()
	keys := make([]string, 0, len(dp.pending))
	for key := range dp.pending {
		keys = append(keys, key)
	}
	dp.pending = make(map[string]struct{})
	dp.mu.Unlock()

	for _, key := range keys {
		dp.deliverer.CancelScheduled(key)
	}
}

// PendingCount returns the number of deliveries currently scheduled.
func (dp *Dispatcher) PendingCount() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return len(dp.pending)
}

// markDone removes a key from the registry once its timer fired.
// Variants call this through the completion hook.
func (dp *Dispatcher) markDone(key string) {
	dp.mu.Lock()
	delete(dp.pending, key)
	dp.mu.Unlock()
}

// Close cancels all pending deliveries and releases the deliverer.
func (dp *Dispatcher) Close() {
	dp.CancelAll()
	dp.deliverer.Close()
}

// ResolveOptions configure capability resolution.
type ResolveOptions struct {
	// Force selects a capability explicitly: native, desktop, web,
	// none. Empty resolves automatically.
	Force string
	// Native is the host-provided local notification bridge; nil when
	// the platform has none.
	Native LocalNotificationBridge
	// DesktopCommand is the host notification binary (notify-send,
	// osascript). Empty means no desktop bridge.
	DesktopCommand string
	// WebPrompt models the browser permission prompt for the web
	// fallback. Nil defaults to granted, matching a headless process
	// that owns its own output.
	WebPrompt PromptFunc
	// WebNotify surfaces web-fallback notifications. Nil defaults to
	// structured log output.
	WebNotify NotifyFunc
	Logger    zerolog.Logger
}

// Resolve picks the delivery variant once at startup, in the order
// native, desktop, web. It never fails: with nothing available it
// degrades to the silent variant.
func Resolve(opts ResolveOptions) Deliverer {
	switch opts.Force {
	case "native":
		if opts.Native != nil {
			return NewNativeDeliverer(opts.Native, opts.Logger)
		}
	case "desktop":
		if opts.DesktopCommand != "" {
			return NewDesktopDeliverer(ExecBridge(opts.DesktopCommand), opts.Logger)
		}
		// A forced desktop capability with no bridge still resolves to
		// the desktop variant, which logs and no-ops per call.
		return NewDesktopDeliverer(nil, opts.Logger)
	case "web":
		return NewWebDeliverer(opts.WebPrompt, opts.WebNotify, opts.Logger)
	case "none":
		return NewNoopDeliverer(opts.Logger)
	}

	if opts.Native != nil {
		return NewNativeDeliverer(opts.Native, opts.Logger)
	}
	if opts.DesktopCommand != "" {
		return NewDesktopDeliverer(ExecBridge(opts.DesktopCommand), opts.Logger)
	}
	return NewWebDeliverer(opts.WebPrompt, opts.WebNotify, opts.Logger)
}
