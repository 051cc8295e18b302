package models

import "errors"

// Sentinel errors for the cost-basis pipeline. Errors below the
// whole-batch level are absorbed into degraded/flagged results; only
// authentication failure and invalid top-level input reach the caller.
var (
	// ErrUnparseableRecord marks a source record that cannot be mapped to
	// the canonical transaction shape (e.g. unrecognized pair suffix).
	// The single record is skipped; aggregation continues.
	ErrUnparseableRecord = errors.New("unparseable source record")

	// ErrAuthenticationFailed marks total token-acquisition failure.
	// Fatal for the whole batch.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrEmptySnapshot marks an empty or malformed holdings snapshot.
	ErrEmptySnapshot = errors.New("empty holdings snapshot")
)
