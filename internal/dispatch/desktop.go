package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/logging"
	"freelance-remind/internal/models"
)

// BridgeFunc is a host-provided desktop notification hook.
type BridgeFunc func(ctx context.Context, title, body string) error

// ExecBridge builds a BridgeFunc that shells out to a host notifier
// binary. osascript gets an AppleScript snippet; anything else
// (notify-send and friends) receives title and body as arguments.
func ExecBridge(command string) BridgeFunc {
	return func(ctx context.Context, title, body string) error {
		var cmd *exec.Cmd
		if command == "osascript" {
			script := fmt.Sprintf("display notification %q with title %q", body, title)
			cmd = exec.CommandContext(ctx, command, "-e", script)
		} else {
			cmd = exec.CommandContext(ctx, command, title, body)
		}
		return cmd.Run()
	}
}

// DesktopDeliverer delivers through an embedding shell's notification
// bridge. Delayed deliveries run on in-process timers and hand off to
// the bridge when they fire. A missing bridge logs and no-ops rather
// than failing the caller.
type DesktopDeliverer struct {
	bridge BridgeFunc
	logger zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	hook   func(key string)
	closed bool
}

// NewDesktopDeliverer creates a DesktopDeliverer. A nil bridge is
// accepted and degrades every delivery to a logged no-op.
func NewDesktopDeliverer(bridge BridgeFunc, logger zerolog.Logger) *DesktopDeliverer {
	return &DesktopDeliverer{
		bridge: bridge,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Capability returns the desktop capability class.
func (d *DesktopDeliverer) Capability() models.Capability {
	return models.CapabilityDesktop
}

// RequestPermission always grants: the embedding shell owns the real
// permission surface.
func (d *DesktopDeliverer) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// DeliverNow hands the notification to the bridge.
func (d *DesktopDeliverer) DeliverNow(ctx context.Context, title, body string) error {
	if d.bridge == nil {
		d.logger.Warn().Msg("Desktop bridge absent; notification not delivered")
		return nil
	}
	if err := d.bridge(ctx, title, body); err != nil {
		return err
	}
	logging.LogDelivered(d.logger, string(models.CapabilityDesktop), "")
	return nil
}

// DeliverAt arms a one-shot timer that hands off to the bridge.
// Re-arming an existing key replaces its timer.
func (d *DesktopDeliverer) DeliverAt(ctx context.Context, key, title, body string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	if prev, ok := d.timers[key]; ok {
		prev.Stop()
	}
	d.timers[key] = time.AfterFunc(time.Until(at), func() {
		d.fire(key, title, body)
	})
	return nil
}

func (d *DesktopDeliverer) fire(key, title, body string) {
	d.mu.Lock()
	delete(d.timers, key)
	hook := d.hook
	d.mu.Unlock()

	if err := d.DeliverNow(context.Background(), title, body); err != nil {
		d.logger.Warn().Err(err).Str("dedup_key", key).Msg("Desktop delivery failed")
	}
	if hook != nil {
		hook(key)
	}
}

// CancelScheduled stops the pending timer for the key.
func (d *DesktopDeliverer) CancelScheduled(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// SetCompletionHook registers the registry cleanup callback.
func (d *DesktopDeliverer) SetCompletionHook(hook func(key string)) {
	d.mu.Lock()
	d.hook = hook
	d.mu.Unlock()
}

// Close stops every pending timer.
func (d *DesktopDeliverer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
