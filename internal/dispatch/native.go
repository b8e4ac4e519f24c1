package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/logging"
	"freelance-remind/internal/models"
)

// LocalNotificationBridge is the host-provided native notification API.
// It takes integer IDs; a Schedule call for an ID that is already
// pending is ignored by the platform, which is what provides duplicate
// suppression on this capability class.
type LocalNotificationBridge interface {
	RequestPermission(ctx context.Context) (bool, error)
	Notify(ctx context.Context, id int32, title, body string) error
	Schedule(ctx context.Context, id int32, title, body string, at time.Time) error
	Cancel(ctx context.Context, id int32) error
}

// NativeDeliverer delivers through a mobile-style local notification
// bridge, translating string dedup keys into stable int32 IDs.
type NativeDeliverer struct {
	bridge LocalNotificationBridge
	logger zerolog.Logger

	mu   sync.Mutex
	ids  map[string]int32
	hook func(key string)
}

// NewNativeDeliverer creates a NativeDeliverer around the bridge.
func NewNativeDeliverer(bridge LocalNotificationBridge, logger zerolog.Logger) *NativeDeliverer {
	return &NativeDeliverer{
		bridge: bridge,
		logger: logger,
		ids:    make(map[string]int32),
	}
}

// Capability returns the native mobile capability class.
func (n *NativeDeliverer) Capability() models.Capability {
	return models.CapabilityNativeMobile
}

// RequestPermission delegates to the bridge.
func (n *NativeDeliverer) RequestPermission(ctx context.Context) (bool, error) {
	return n.bridge.RequestPermission(ctx)
}

// DeliverNow fires an immediate notification with an ID of 0, which is
// reserved for untracked one-shot deliveries.
func (n *NativeDeliverer) DeliverNow(ctx context.Context, title, body string) error {
	if err := n.bridge.Notify(ctx, 0, title, body); err != nil {
		return err
	}
	logging.LogDelivered(n.logger, string(models.CapabilityNativeMobile), "")
	return nil
}

// DeliverAt schedules through the bridge using the hashed key. The
// key-to-ID mapping is remembered so a later cancel resolves to the
// same integer.
func (n *NativeDeliverer) DeliverAt(ctx context.Context, key, title, body string, at time.Time) error {
	id := HashKey(key)

	n.mu.Lock()
	n.ids[key] = id
	n.mu.Unlock()

	return n.bridge.Schedule(ctx, id, title, body, at)
}

// CancelScheduled cancels the pending notification for the key.
func (n *NativeDeliverer) CancelScheduled(key string) {
	n.mu.Lock()
	id, ok := n.ids[key]
	delete(n.ids, key)
	n.mu.Unlock()

	if !ok {
		return
	}
	if err := n.bridge.Cancel(context.Background(), id); err != nil {
		n.logger.Warn().Err(err).Str("dedup_key", key).Int32("id", id).Msg("Native cancel failed")
	}
}

// SetCompletionHook registers the registry cleanup callback.
func (n *NativeDeliverer) SetCompletionHook(hook func(key string)) {
	n.mu.Lock()
	n.hook = hook
	n.mu.Unlock()
}

// Close cancels all tracked notifications.
func (n *NativeDeliverer) Close() {
	n.mu.Lock()
	keys := make([]string, 0, len(n.ids))
	for key := range n.ids {
		keys = append(keys, key)
	}
	n.mu.Unlock()

	for _, key := range keys {
		n.CancelScheduled(key)
	}
}
