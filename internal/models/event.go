// Package models provides domain models for the reminder engine.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "freelance-remind/internal/errors"
)

// Source identifies which business stream an event came from.
type Source string

const (
	SourceAgenda  Source = "AGENDA"
	SourceFinance Source = "FINANCE"
)

// Direction represents the money direction of a finance event.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Status represents the settlement status of a finance event.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Severity classifies how urgent a reminder is.
type Severity string

const (
	SeverityNormal Severity = "NORMAL"
	SeverityUrgent Severity = "URGENT"
)

// Capability identifies the notification delivery mechanism available
// to this process. Resolved once at startup.
type Capability string

const (
	CapabilityNativeMobile Capability = "NATIVE_MOBILE"
	CapabilityDesktop      Capability = "DESKTOP"
	CapabilityWeb          Capability = "WEB"
	CapabilityNone         Capability = "NONE"
)

// DomainEvent is a business fact read from a live stream. The engine
// never mutates it, only reads snapshots.
type DomainEvent struct {
	ID          string
	Source      Source
	Title       string
	Description string
	// DueDate is a calendar date with YYYY-MM-DD semantics, not a
	// timestamp, so "today" comparisons are timezone-stable.
	DueDate string
	// DueTime is an optional HH:MM, present only for agenda events.
	DueTime string

	// Finance-only fields.
	Amount    float64
	Direction Direction
	Status    Status
}

// ReminderDescriptor is a derived, ready-to-schedule reminder. It is
// recomputed on every snapshot of the source stream and never stored.
type ReminderDescriptor struct {
	// DedupKey is the stable identity used to prevent the same
	// logical reminder from being scheduled twice. Typically the
	// source record ID, or "<id>_30min" for the earlier reminder
	// tied to the same event.
	DedupKey string
	Title    string
	Body     string
	// TriggerAt is the absolute wall-clock instant of delivery.
	// Zero means display-only: the descriptor appears in the in-app
	// list but never becomes an OS-level push.
	TriggerAt time.Time
	Severity  Severity
	Source    Source
	// Route is the UI section the notification deep-links to.
	Route string
	// DueDate mirrors the source event's date for display sorting.
	DueDate string
}

// HasTrigger reports whether the descriptor carries a schedulable
// trigger instant.
func (d ReminderDescriptor) HasTrigger() bool {
	return !d.TriggerAt.IsZero()
}

// ParseDate parses a YYYY-MM-DD calendar date in the given location.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	return t, nil
}

// ParseClock parses an HH:MM wall-clock string into hour and minute.
// Failures wrap ErrMalformedTime.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", apperrors.ErrMalformedTime, clock)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", apperrors.ErrMalformedTime, clock)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", apperrors.ErrMalformedTime, clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q out of range", apperrors.ErrMalformedTime, clock)
	}
	return hour, minute, nil
}

// DateOnly truncates an instant to its calendar date in the instant's
// own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
