// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoSession     = errors.New("no active countdown session")
	ErrMalformedTime = errors.New("malformed time string")
	ErrHubStopped    = errors.New("event hub is stopped")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// DeliveryError represents a failed notification delivery. A dropped
// notification is lower-severity than a crashed process, so callers log
// it and move on rather than retry.
type DeliveryError struct {
	Capability string
	Key        string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("delivery failed [%s] key=%s: %v", e.Capability, e.Key, e.Err)
	}
	return fmt.Sprintf("delivery failed [%s]: %v", e.Capability, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(capability, key string, err error) *DeliveryError {
	return &DeliveryError{
		Capability: capability,
		Key:        key,
		Err:        err,
	}
}

// SubscriptionError represents a failure opening or reading a live
// query subscription.
type SubscriptionError struct {
	Stream string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription error [%s]: %v", e.Stream, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// NewSubscriptionError creates a new SubscriptionError.
func NewSubscriptionError(stream string, err error) *SubscriptionError {
	return &SubscriptionError{Stream: stream, Err: err}
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
