// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import "errors"

// ErrNilPublisher is returned when a component is constructed with a nil publisher.
var ErrNilPublisher = errors.New("publisher cannot be nil")

// ErrNilStore is returned when the processor is constructed without a vessel store.
var ErrNilStore = errors.New("vessel store cannot be nil")

// ErrChannelClosed is returned when publishing after shutdown.
var ErrChannelClosed = errors.New("message channel is closed")

// ErrStreamNotFound is returned when the JetStream stream doesn't exist.
var ErrStreamNotFound = errors.New("stream not found")

// RejectError marks a payload that failed normalization. Rejected payloads
// are logged and counted but never published; they are not retried.
type RejectError struct {
	Reason string // stable metric label, e.g. "missing_vessel_id"
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return "payload rejected: " + e.Reason
	}
	return "payload rejected: " + e.Reason + ": " + e.Detail
}

// NewRejectError creates a RejectError with a metric-safe reason label.
func NewRejectError(reason, detail string) *RejectError {
	return &RejectError{Reason: reason, Detail: detail}
}

// PermanentError marks a processing failure that will not succeed on retry.
// The router sends such messages straight to the poison topic instead of
// burning retry attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
