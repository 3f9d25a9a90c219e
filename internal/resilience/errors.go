package resilience

import (
	"context"
	"errors"

	"github.com/strata-go/strata/internal/types"
)

// Sentinels re-exported from types so this package's callers can write
// resilience.ErrCircuitOpen.
var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsCircuitOpen returns true if the error is a circuit open rejection.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsBulkheadError returns true if the error is a bulkhead rejection.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable gates the retry loop. Rejections produced by our own
// guards are never retried: a retry would go straight back into the
// same breaker or bulkhead. Context expiry means the caller's deadline
// is spent. Everything else defers to the shared error taxonomy, which
// rules out misses, serialization and integrity failures, and factory
// errors while treating remote transport failures as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, types.ErrCircuitOpen) ||
		errors.Is(err, types.ErrBulkheadFull) ||
		errors.Is(err, types.ErrBulkheadTimeout) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return types.IsRetryable(err)
}
