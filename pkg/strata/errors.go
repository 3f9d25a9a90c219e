package strata

import (
	"github.com/strata-go/strata/internal/types"
)

type (
	// CacheError annotates a failure with the operation, key, and tier
	// it happened on.
	CacheError = types.CacheError
	// FactoryError wraps a failure from a caller-supplied factory.
	FactoryError = types.FactoryError
)

var (
	// ErrCacheMiss indicates that a requested key was not found.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrRemoteUnavailable indicates that the remote tier is not reachable.
	ErrRemoteUnavailable = types.ErrRemoteUnavailable
	// ErrCircuitOpen indicates that the circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrClosed indicates that the cache has been closed.
	ErrClosed = types.ErrClosed
	// ErrWriteQueueFull indicates that the async write queue is full.
	ErrWriteQueueFull = types.ErrWriteQueueFull
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrSerialization indicates that encoding or decoding a value failed.
	ErrSerialization = types.ErrSerialization
	// ErrIntegrity indicates that a stored payload failed its
	// authenticity check.
	ErrIntegrity = types.ErrIntegrity
	// ErrInvalidKey indicates that a cache key is malformed.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrShutdownTimeout indicates that Close gave up waiting for
	// background operations.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// NewCacheError creates a cache error with operation, key, tier, and cause.
func NewCacheError(op, key, tier string, err error) *CacheError {
	return types.NewCacheError(op, key, tier, err)
}

// IsCacheMiss reports whether the error is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsRemoteUnavailable reports whether the error indicates the remote
// tier is unreachable.
func IsRemoteUnavailable(err error) bool {
	return types.IsRemoteUnavailable(err)
}

// IsCircuitOpen reports whether the error indicates an open circuit
// breaker.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsIntegrity reports whether the error indicates a payload that failed
// its authenticity check.
func IsIntegrity(err error) bool {
	return types.IsIntegrity(err)
}

// IsSerialization reports whether the error came from encoding or
// decoding a value.
func IsSerialization(err error) bool {
	return types.IsSerialization(err)
}

// IsFactoryError reports whether the error came from a caller-supplied
// factory. The factory's own error stays reachable through errors.Is
// and errors.As.
func IsFactoryError(err error) bool {
	return types.IsFactoryError(err)
}

// IsRetryable reports whether the operation that produced the error is
// worth retrying.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
