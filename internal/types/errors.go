package types

import (
	"errors"
	"fmt"
)

var (
	ErrCacheMiss         = errors.New("cache: key not found")
	ErrRemoteUnavailable = errors.New("cache: remote tier unavailable")
	ErrCircuitOpen       = errors.New("cache: circuit breaker open")
	ErrClosed            = errors.New("cache: coordinator closed")
	ErrWriteQueueFull    = errors.New("cache: write queue full")
	ErrBulkheadFull      = errors.New("cache: bulkhead at capacity")
	ErrBulkheadTimeout   = errors.New("cache: bulkhead timeout")
	ErrSerialization     = errors.New("cache: serialization failed")
	ErrIntegrity         = errors.New("cache: payload failed integrity check")
	ErrInvalidKey        = errors.New("cache: invalid key")
	ErrShutdownTimeout   = errors.New("cache: shutdown timeout waiting for background operations")
)

// CacheError annotates a failure with the operation, key, and tier it
// happened on. The remote tier wraps every transport failure in one of
// these around ErrRemoteUnavailable so callers never match on driver
// error types.
type CacheError struct {
	Op   string
	Key  string
	Tier string
	Err  error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Tier, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Tier, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, tier string, err error) *CacheError {
	return &CacheError{
		Op:   op,
		Key:  key,
		Tier: tier,
		Err:  err,
	}
}

// FactoryError wraps a failure from a caller-supplied factory. It is
// delivered verbatim to every single-flight waiter; the caller's own error
// stays reachable through Unwrap.
type FactoryError struct {
	Key string
	Err error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("cache factory for %s: %v", e.Key, e.Err)
}

func (e *FactoryError) Unwrap() error {
	return e.Err
}

func NewFactoryError(key string, err error) *FactoryError {
	return &FactoryError{Key: key, Err: err}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}

func IsFactoryError(err error) bool {
	var fe *FactoryError
	return errors.As(err, &fe)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// A miss is a definitive answer, not a failure
	if IsCacheMiss(err) {
		return false
	}

	// Circuit open means wait for recovery, not hammer it
	if IsCircuitOpen(err) {
		return false
	}

	// Closed coordinator never comes back
	if errors.Is(err, ErrClosed) {
		return false
	}

	if errors.Is(err, ErrInvalidKey) {
		return false
	}

	// Bad payloads stay bad no matter how often they are re-read
	if IsSerialization(err) || IsIntegrity(err) {
		return false
	}

	// Factory failures are the caller's to handle, never ours to retry
	if IsFactoryError(err) {
		return false
	}

	// Everything else (network, timeout) is worth another attempt
	return true
}
