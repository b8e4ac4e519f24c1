package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freelance-remind/internal/models"
)

// fixed reference instant: 2026-03-10 13:25 local
var testNow = time.Date(2026, 3, 10, 13, 25, 0, 0, time.Local)

func day(offset int) string {
	return testNow.AddDate(0, 0, offset).Format("2006-01-02")
}

func agendaEvent(id, title, date, clock string) models.DomainEvent {
	return models.DomainEvent{
		ID:      id,
		Source:  models.SourceAgenda,
		Title:   title,
		DueDate: date,
		DueTime: clock,
	}
}

func financeEvent(id string, direction models.Direction, amount float64, desc, date string) models.DomainEvent {
	return models.DomainEvent{
		ID:          id,
		Source:      models.SourceFinance,
		Title:       desc,
		Description: desc,
		DueDate:     date,
		Amount:      amount,
		Direction:   direction,
		Status:      models.StatusPending,
	}
}

func TestDeriveAgendaTimedEvent(t *testing.T) {
	// Client call at 14:00 today, evaluated at 13:25: both the
	// 30-minute lead (13:30) and the exact-time (14:00) reminders are
	// still in the future.
	events := []models.DomainEvent{agendaEvent("a1", "Client call", day(0), "14:00")}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 2)

	early, exact := got[0], got[1]
	assert.Equal(t, "a1_30min", early.DedupKey)
	assert.Equal(t, "a1", exact.DedupKey)
	assert.Contains(t, early.Body, "30 minutos")
	assert.Contains(t, exact.Body, "comienza ya")
	assert.Equal(t, time.Date(2026, 3, 10, 13, 30, 0, 0, time.Local), early.TriggerAt)
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local), exact.TriggerAt)
	assert.Equal(t, models.SeverityUrgent, early.Severity)
	assert.Equal(t, models.SeverityUrgent, exact.Severity)
	assert.Equal(t, RouteAgenda, early.Route)
}

func TestDeriveAgendaLeadAlreadyPassed(t *testing.T) {
	// Event at 13:40; the 13:10 lead is gone, only the exact-time
	// reminder survives. No retroactive firing.
	events := []models.DomainEvent{agendaEvent("a1", "Standup", day(0), "13:40")}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].DedupKey)
	assert.True(t, got[0].HasTrigger())
}

func TestDeriveAgendaEventFullyPast(t *testing.T) {
	events := []models.DomainEvent{agendaEvent("a1", "Retro", day(0), "09:00")}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	assert.False(t, got[0].HasTrigger(), "past events stay display-only")
	assert.Equal(t, models.SeverityUrgent, got[0].Severity)
}

func TestDeriveAgendaSeverity(t *testing.T) {
	tests := []struct {
		name string
		date string
		want models.Severity
	}{
		{"today is urgent", day(0), models.SeverityUrgent},
		{"tomorrow is normal", day(1), models.SeverityNormal},
		{"day after is normal", day(2), models.SeverityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive([]models.DomainEvent{agendaEvent("a1", "x", tt.date, "")}, testNow, DefaultOptions())
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Severity)
		})
	}
}

func TestDeriveAgendaMalformedTime(t *testing.T) {
	// A record with an unparseable HH:MM must not abort the batch:
	// it degrades to a display-only descriptor.
	events := []models.DomainEvent{
		agendaEvent("bad", "Broken", day(0), "25:99"),
		agendaEvent("junk", "Junk", day(0), "ab:cd"),
		agendaEvent("ok", "Fine", day(0), "23:59"),
	}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 4) // 1 + 1 display-only, 2 for the timed event

	byKey := make(map[string]models.ReminderDescriptor)
	for _, d := range got {
		byKey[d.DedupKey] = d
	}
	assert.False(t, byKey["bad"].HasTrigger())
	assert.False(t, byKey["junk"].HasTrigger())
	assert.True(t, byKey["ok"].HasTrigger())
	assert.True(t, byKey["ok_30min"].HasTrigger())
}

func TestDeriveFinanceOverdue(t *testing.T) {
	// An expense due yesterday is urgent, titled as overdue, and
	// carries no 09:00 anchor (that anchor is only for items due
	// today).
	events := []models.DomainEvent{financeEvent("f1", models.DirectionExpense, 50, "hosting", day(-1))}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, models.SeverityUrgent, d.Severity)
	assert.Equal(t, "¡Atrasado!", d.Title)
	assert.Equal(t, "Pagar: $50.00 (hosting)", d.Body)
	assert.False(t, d.HasTrigger())
	assert.Equal(t, RouteFinance, d.Route)
}

func TestDeriveFinanceDueTodayMorningAnchorPassed(t *testing.T) {
	// Evaluated at 13:25, the 09:00 anchor is already behind us:
	// urgent, but no schedulable trigger.
	events := []models.DomainEvent{financeEvent("f1", models.DirectionIncome, 120, "factura", day(0))}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityUrgent, got[0].Severity)
	assert.Equal(t, "Vence hoy", got[0].Title)
	assert.Equal(t, "Cobrar: $120.00 (factura)", got[0].Body)
	assert.False(t, got[0].HasTrigger())
}

func TestDeriveFinanceDueTodayMorningAnchorAhead(t *testing.T) {
	earlyMorning := time.Date(2026, 3, 10, 7, 40, 0, 0, time.Local)
	events := []models.DomainEvent{financeEvent("f1", models.DirectionIncome, 120, "factura", "2026-03-10")}

	got := Derive(events, earlyMorning, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local), got[0].TriggerAt,
		"same-day finance reminders anchor at the fixed morning hour, not at record creation")
}

func TestDeriveFinanceFuture(t *testing.T) {
	events := []models.DomainEvent{financeEvent("f1", models.DirectionExpense, 9.5, "dominio", day(3))}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityNormal, got[0].Severity)
	assert.False(t, got[0].HasTrigger())
}

func TestDeriveSortsByDueDate(t *testing.T) {
	events := []models.DomainEvent{
		financeEvent("f-late", models.DirectionExpense, 1, "late", day(5)),
		agendaEvent("a-soon", "soon", day(1), ""),
		financeEvent("f-overdue", models.DirectionExpense, 1, "old", day(-2)),
	}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 3)
	assert.Equal(t, "f-overdue", got[0].DedupKey)
	assert.Equal(t, "a-soon", got[1].DedupKey)
	assert.Equal(t, "f-late", got[2].DedupKey)
}

func TestDeriveSkipsUnparseableFinanceDate(t *testing.T) {
	events := []models.DomainEvent{
		financeEvent("bad", models.DirectionExpense, 1, "x", "not-a-date"),
		financeEvent("ok", models.DirectionExpense, 1, "y", day(0)),
	}

	got := Derive(events, testNow, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].DedupKey)
}
