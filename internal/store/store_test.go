package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadSession()
	assert.ErrorIs(t, err, apperrors.ErrNoSession)

	end := time.Now().Add(20 * time.Minute).Truncate(time.Millisecond)
	require.NoError(t, s.SaveSession(models.CountdownSession{Mode: models.ModeWork, EndTime: end}))

	got, err := s.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, models.ModeWork, got.Mode)
	assert.Equal(t, end.UnixMilli(), got.EndTime.UnixMilli())

	// Saving again replaces the single row.
	end2 := end.Add(5 * time.Minute)
	require.NoError(t, s.SaveSession(models.CountdownSession{Mode: models.ModeShortBreak, EndTime: end2}))
	got, err = s.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, models.ModeShortBreak, got.Mode)
	assert.Equal(t, end2.UnixMilli(), got.EndTime.UnixMilli())

	require.NoError(t, s.DeleteSession())
	_, err = s.LoadSession()
	assert.ErrorIs(t, err, apperrors.ErrNoSession)
}

func TestListAgendaWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
	}

	require.NoError(t, s.UpsertAgenda(ctx, "u1", AgendaRecord{ID: "past", Title: "past", Date: day(-1)}))
	require.NoError(t, s.UpsertAgenda(ctx, "u1", AgendaRecord{ID: "today", Title: "today", Date: day(0), Time: "10:00"}))
	require.NoError(t, s.UpsertAgenda(ctx, "u1", AgendaRecord{ID: "in2", Title: "in2", Date: day(2)}))
	require.NoError(t, s.UpsertAgenda(ctx, "u1", AgendaRecord{ID: "in5", Title: "in5", Date: day(5)}))
	require.NoError(t, s.UpsertAgenda(ctx, "other", AgendaRecord{ID: "foreign", Title: "x", Date: day(0)}))

	got, err := s.ListAgenda(ctx, "u1", day(0), day(2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "today", got[0].ID)
	assert.Equal(t, "in2", got[1].ID)
}

func TestListPendingFinance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
	}

	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "overdue", Type: "expense", Status: "pending", Amount: 50, Description: "host", Date: day(-30),
	}))
	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "future", Type: "income", Status: "pending", Amount: 200, Description: "inv", Date: day(10),
	}))
	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "settled", Type: "income", Status: "paid", Amount: 99, Description: "done", Date: day(0),
	}))

	got, err := s.ListPendingFinance(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2, "paid items are filtered out; overdue has no lower bound")
	assert.Equal(t, "overdue", got[0].ID)
	assert.Equal(t, "future", got[1].ID)
}

func TestUpsertReplacesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	today := time.Now().Format("2006-01-02")
	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "f1", Type: "expense", Status: "pending", Amount: 10, Description: "a", Date: today,
	}))
	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "f1", Type: "expense", Status: "paid", Amount: 10, Description: "a", Date: today,
	}))

	got, err := s.ListPendingFinance(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got, "marking paid removes the item from the pending stream")
}

func TestPollingSourceEmitsOnChange(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := NewPollingSource(s, 20*time.Millisecond, 2, zerolog.Nop())

	ch, cancelSub, err := source.SubscribeFinance(ctx, "u1")
	require.NoError(t, err)
	defer cancelSub()

	// Initial snapshot is empty.
	initial := <-ch
	assert.Empty(t, initial)

	today := time.Now().Format("2006-01-02")
	require.NoError(t, s.UpsertFinance(ctx, "u1", FinanceRecord{
		ID: "f1", Type: "expense", Status: "pending", Amount: 10, Description: "a", Date: today,
	}))

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		assert.Equal(t, "f1", snapshot[0].ID)
		assert.Equal(t, models.SourceFinance, snapshot[0].Source)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change snapshot")
	}
}
