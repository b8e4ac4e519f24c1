package store

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/events"
	"freelance-remind/internal/models"
)

// PollingSource adapts the local store into the hub's LiveSource
// contract by re-querying the collections on an interval and emitting
// a snapshot whenever the result set changes. It stands in for the
// external document store's live queries during development and tests.
type PollingSource struct {
	store      *Store
	interval   time.Duration
	windowDays int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPollingSource creates a PollingSource over the store.
func NewPollingSource(store *Store, interval time.Duration, windowDays int, logger zerolog.Logger) *PollingSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollingSource{
		store:      store,
		interval:   interval,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the wall clock. Test hook.
func (p *PollingSource) SetClock(now func() time.Time) {
	p.now = now
}

// SubscribeAgenda streams agenda snapshots windowed to
// [today, today+windowDays].
func (p *PollingSource) SubscribeAgenda(ctx context.Context, userID string) (<-chan []models.DomainEvent, events.CancelFunc, error) {
	query := func(ctx context.Context) ([]models.DomainEvent, error) {
		now := p.now()
		from := now.Format("2006-01-02")
		to := now.AddDate(0, 0, p.windowDays).Format("2006-01-02")
		records, err := p.store.ListAgenda(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		out := make([]models.DomainEvent, 0, len(records))
		for _, r := range records {
			out = append(out, models.DomainEvent{
				ID:      r.ID,
				Source:  models.SourceAgenda,
				Title:   r.Title,
				DueDate: r.Date,
				DueTime: r.Time,
			})
		}
		return out, nil
	}
	return p.subscribe(ctx, "agenda", query)
}

// SubscribeFinance streams pending finance snapshots with no upper
// date bound.
func (p *PollingSource) SubscribeFinance(ctx context.Context, userID string) (<-chan []models.DomainEvent, events.CancelFunc, error) {
	query := func(ctx context.Context) ([]models.DomainEvent, error) {
		records, err := p.store.ListPendingFinance(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := make([]models.DomainEvent, 0, len(records))
		for _, r := range records {
			out = append(out, models.DomainEvent{
				ID:          r.ID,
				Source:      models.SourceFinance,
				Title:       r.Description,
				Description: r.Description,
				DueDate:     r.Date,
				Amount:      r.Amount,
				Direction:   models.Direction(r.Type),
				Status:      models.Status(r.Status),
			})
		}
		return out, nil
	}
	return p.subscribe(ctx, "finance", query)
}

// subscribe emits an initial snapshot, then polls and emits only when
// the result set changed. The cancel func stops the loop and closes
// the channel.
func (p *PollingSource) subscribe(ctx context.Context, stream string, query func(ctx context.Context) ([]models.DomainEvent, error)) (<-chan []models.DomainEvent, events.CancelFunc, error) {
	initial, err := query(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []models.DomainEvent, 4)
	ch <- initial

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}

	go func() {
		defer close(ch)
		last := initial
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				snapshot, err := query(ctx)
				if err != nil {
					p.logger.Warn().Err(err).Str("stream", stream).Msg("Live query poll failed")
					continue
				}
				if reflect.DeepEqual(snapshot, last) {
					continue
				}
				last = snapshot
				select {
				case ch <- snapshot:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, cancel, nil
}
