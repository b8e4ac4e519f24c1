// Package derive turns raw domain events into reminder descriptors.
//
// Derivation is a pure function of the event snapshot and the current
// instant: it is re-run in full on every snapshot, so it must be total
// (malformed records degrade to display-only descriptors, never errors)
// and deterministic (same snapshot, same keys).
package derive

import (
	"fmt"
	"sort"
	"time"

	"freelance-remind/internal/models"
)

// Route targets for notification deep-links.
const (
	RouteAgenda  = "/agenda"
	RouteFinance = "/finanzas"
)

// Options control derivation anchoring.
type Options struct {
	// LeadTime is how far before a timed agenda event the early
	// reminder fires.
	LeadTime time.Duration
	// MorningHour anchors same-day finance reminders at a fixed local
	// wall-clock hour, independent of when the record was created.
	MorningHour int
}

// DefaultOptions returns the product defaults: a 30 minute lead and a
// 09:00 morning anchor.
func DefaultOptions() Options {
	return Options{
		LeadTime:    30 * time.Minute,
		MorningHour: 9,
	}
}

// Derive maps a snapshot of domain events to reminder descriptors,
// sorted by due date ascending. Descriptors whose trigger instant has
// already passed are emitted without a trigger: they stay visible in
// the in-app list but never become an OS-level push.
func Derive(events []models.DomainEvent, now time.Time, opts Options) []models.ReminderDescriptor {
	descriptors := make([]models.ReminderDescriptor, 0, len(events))
	for _, ev := range events {
		switch ev.Source {
		case models.SourceAgenda:
			descriptors = append(descriptors, deriveAgenda(ev, now, opts)...)
		case models.SourceFinance:
			if d, ok := deriveFinance(ev, now, opts); ok {
				descriptors = append(descriptors, d)
			}
		}
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].DueDate < descriptors[j].DueDate
	})
	return descriptors
}

// deriveAgenda produces up to two descriptors for a timed agenda event:
// one LeadTime before the event and one at the event itself. An event
// without a parseable time still yields a display-only descriptor.
func deriveAgenda(ev models.DomainEvent, now time.Time, opts Options) []models.ReminderDescriptor {
	severity := models.SeverityNormal
	if ev.DueDate == today(now) {
		severity = models.SeverityUrgent
	}

	base := models.ReminderDescriptor{
		DedupKey: ev.ID,
		Title:    ev.Title,
		Body:     fmt.Sprintf("%s - %s", ev.Title, ev.DueDate),
		Severity: severity,
		Source:   models.SourceAgenda,
		Route:    RouteAgenda,
		DueDate:  ev.DueDate,
	}

	if ev.DueTime == "" {
		return []models.ReminderDescriptor{base}
	}

	at, err := eventInstant(ev, now.Location())
	if err != nil {
		// Malformed HH:MM: keep the event visible, skip scheduling.
		return []models.ReminderDescriptor{base}
	}

	early := base
	early.DedupKey = ev.ID + "_30min"
	early.Body = fmt.Sprintf("%s - %s · comienza en 30 minutos", ev.Title, ev.DueTime)
	if lead := at.Add(-opts.LeadTime); lead.After(now) {
		early.TriggerAt = lead
	}

	exact := base
	exact.Body = fmt.Sprintf("%s - %s · comienza ya", ev.Title, ev.DueTime)
	if at.After(now) {
		exact.TriggerAt = at
	}

	if early.HasTrigger() {
		return []models.ReminderDescriptor{early, exact}
	}
	// A lead reminder that can no longer fire is dropped outright; the
	// exact-time descriptor carries the display duty alone.
	return []models.ReminderDescriptor{exact}
}

// deriveFinance produces one descriptor per pending finance event.
// Urgency includes overdue items, unlike agenda: a debt stays urgent
// until it is paid, not only on its due day.
func deriveFinance(ev models.DomainEvent, now time.Time, opts Options) (models.ReminderDescriptor, bool) {
	due, err := models.ParseDate(ev.DueDate, now.Location())
	if err != nil {
		return models.ReminderDescriptor{}, false
	}

	verb := "Pagar"
	if ev.Direction == models.DirectionIncome {
		verb = "Cobrar"
	}

	d := models.ReminderDescriptor{
		DedupKey: ev.ID,
		Body:     fmt.Sprintf("%s: $%.2f (%s)", verb, ev.Amount, ev.Description),
		Source:   models.SourceFinance,
		Route:    RouteFinance,
		DueDate:  ev.DueDate,
	}

	startOfToday := models.DateOnly(now)
	switch {
	case due.Before(startOfToday):
		d.Severity = models.SeverityUrgent
		d.Title = "¡Atrasado!"
	case due.Equal(startOfToday):
		d.Severity = models.SeverityUrgent
		d.Title = "Vence hoy"
		// Anchored at a fixed morning hour so a record created at any
		// time of day reminds once, in the morning.
		morning := due.Add(time.Duration(opts.MorningHour) * time.Hour)
		if morning.After(now) {
			d.TriggerAt = morning
		}
	default:
		d.Severity = models.SeverityNormal
		d.Title = "Próximo vencimiento"
	}
	return d, true
}

// eventInstant combines an event's date and HH:MM into a local instant.
func eventInstant(ev models.DomainEvent, loc *time.Location) (time.Time, error) {
	day, err := models.ParseDate(ev.DueDate, loc)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := models.ParseClock(ev.DueTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

func today(now time.Time) string {
	return now.Format("2006-01-02")
}
