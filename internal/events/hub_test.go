package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/dispatch"
	"freelance-remind/internal/models"
	"freelance-remind/internal/schedule"
)

// fakeSource is a hand-driven LiveSource: tests push snapshots into
// each stream independently to exercise interleaving.
type fakeSource struct {
	mu               sync.Mutex
	agenda           chan []models.DomainEvent
	finance          chan []models.DomainEvent
	agendaCancelled  bool
	financeCancelled bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		agenda:  make(chan []models.DomainEvent, 8),
		finance: make(chan []models.DomainEvent, 8),
	}
}

func (f *fakeSource) SubscribeAgenda(ctx context.Context, userID string) (<-chan []models.DomainEvent, CancelFunc, error) {
	return f.agenda, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.agendaCancelled {
			f.agendaCancelled = true
			close(f.agenda)
		}
	}, nil
}

func (f *fakeSource) SubscribeFinance(ctx context.Context, userID string) (<-chan []models.DomainEvent, CancelFunc, error) {
	return f.finance, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.financeCancelled {
			f.financeCancelled = true
			close(f.finance)
		}
	}, nil
}

func (f *fakeSource) cancelled() (agenda, finance bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agendaCancelled, f.financeCancelled
}

func grant(ctx context.Context) (bool, error) { return true, nil }

func newTestHub(t *testing.T, source LiveSource) (*Hub, *dispatch.WebDeliverer) {
	t.Helper()
	w := dispatch.NewWebDeliverer(grant, func(title, body string) {}, zerolog.Nop())
	dp := dispatch.NewDispatcher(w, zerolog.Nop())
	scheduler := schedule.NewScheduler(dp, zerolog.Nop())
	hub := NewHub(source, scheduler, DefaultHubConfig(), zerolog.Nop())
	return hub, w
}

func waitForSnapshot(t *testing.T, ch <-chan []models.ReminderDescriptor) []models.ReminderDescriptor {
	t.Helper()
	select {
	case snapshot, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed unexpectedly")
		}
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for merged snapshot")
		return nil
	}
}

func today(offset int) string {
	return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
}

func TestHubMergeDoesNotWaitForBothStreams(t *testing.T) {
	source := newFakeSource()
	hub, _ := newTestHub(t, source)
	defer hub.Stop()

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, updates := hub.Subscribe()

	// Only the agenda stream fires; its result must become visible
	// without the finance stream having emitted anything.
	source.agenda <- []models.DomainEvent{{
		ID: "a1", Source: models.SourceAgenda, Title: "Call", DueDate: today(1),
	}}

	merged := waitForSnapshot(t, updates)
	if len(merged) != 1 || merged[0].DedupKey != "a1" {
		t.Fatalf("unexpected merged list: %+v", merged)
	}
}

func TestHubMergeIsSortedAcrossStreams(t *testing.T) {
	source := newFakeSource()
	hub, _ := newTestHub(t, source)
	defer hub.Stop()

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, updates := hub.Subscribe()

	source.agenda <- []models.DomainEvent{{
		ID: "a-later", Source: models.SourceAgenda, Title: "x", DueDate: today(2),
	}}
	waitForSnapshot(t, updates)

	source.finance <- []models.DomainEvent{{
		ID: "f-sooner", Source: models.SourceFinance, Description: "y", DueDate: today(-1),
		Amount: 10, Direction: models.DirectionExpense, Status: models.StatusPending,
	}}
	merged := waitForSnapshot(t, updates)

	if len(merged) != 2 {
		t.Fatalf("expected union of both streams, got %+v", merged)
	}
	if merged[0].DedupKey != "f-sooner" || merged[1].DedupKey != "a-later" {
		t.Fatalf("expected date-ascending merge, got %+v", merged)
	}
}

func TestHubReplacesStreamSliceOnNewSnapshot(t *testing.T) {
	source := newFakeSource()
	hub, _ := newTestHub(t, source)
	defer hub.Stop()

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, updates := hub.Subscribe()

	source.agenda <- []models.DomainEvent{
		{ID: "a1", Source: models.SourceAgenda, Title: "x", DueDate: today(1)},
		{ID: "a2", Source: models.SourceAgenda, Title: "y", DueDate: today(1)},
	}
	waitForSnapshot(t, updates)

	// The record a2 was deleted upstream; the new snapshot replaces
	// the stream's slice, it does not accumulate.
	source.agenda <- []models.DomainEvent{
		{ID: "a1", Source: models.SourceAgenda, Title: "x", DueDate: today(1)},
	}
	merged := waitForSnapshot(t, updates)
	if len(merged) != 1 || merged[0].DedupKey != "a1" {
		t.Fatalf("snapshot must replace, not append: %+v", merged)
	}
}

func TestHubStopCancelsSubscriptionsAndTimers(t *testing.T) {
	source := newFakeSource()
	hub, w := newTestHub(t, source)

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, updates := hub.Subscribe()

	// A timed agenda event tomorrow arms real delayed-delivery timers.
	source.agenda <- []models.DomainEvent{{
		ID: "a1", Source: models.SourceAgenda, Title: "Call", DueDate: today(1), DueTime: "10:00",
	}}
	waitForSnapshot(t, updates)

	hub.Stop()

	agendaCancelled, financeCancelled := source.cancelled()
	if !agendaCancelled || !financeCancelled {
		t.Fatalf("both subscriptions must be cancelled on teardown: agenda=%v finance=%v",
			agendaCancelled, financeCancelled)
	}
	if got := w.PendingTimers(); got != 0 {
		t.Fatalf("teardown left %d dangling timers", got)
	}

	if _, ok := <-updates; ok {
		// A buffered snapshot may still drain; the channel must close
		// after it.
		if _, ok := <-updates; ok {
			t.Fatal("subscriber channel must be closed after Stop")
		}
	}
}

func TestHubLateSubscriberGetsCurrentList(t *testing.T) {
	source := newFakeSource()
	hub, _ := newTestHub(t, source)
	defer hub.Stop()

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, first := hub.Subscribe()
	source.finance <- []models.DomainEvent{{
		ID: "f1", Source: models.SourceFinance, Description: "y", DueDate: today(0),
		Amount: 5, Direction: models.DirectionIncome, Status: models.StatusPending,
	}}
	waitForSnapshot(t, first)

	_, late := hub.Subscribe()
	merged := waitForSnapshot(t, late)
	if len(merged) != 1 || merged[0].DedupKey != "f1" {
		t.Fatalf("late subscriber should see the current merged list, got %+v", merged)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	source := newFakeSource()
	hub, _ := newTestHub(t, source)
	defer hub.Stop()

	if err := hub.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Unsubscribe")
	}
}
