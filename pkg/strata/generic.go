package strata

import (
	"context"
	"fmt"
)

// Get fetches key and decodes it into a T.
func Get[T any](ctx context.Context, c Cache, key string, opts ...Option) (T, error) {
	var value T
	err := c.Get(ctx, key, &value, opts...)
	return value, err
}

// GetOrSet fetches key, invoking factory on a miss to produce, store,
// and return the value. Concurrent misses for the same key share one
// factory invocation.
func GetOrSet[T any](ctx context.Context, c Cache, key string, factory func(context.Context) (T, error), opts ...Option) (T, error) {
	var value T
	err := c.GetOrSet(ctx, key, &value, func(ctx context.Context) (any, error) {
		return factory(ctx)
	}, opts...)
	return value, err
}

// GetMany fetches a batch of keys and decodes each found frame into a
// T. Keys absent from every tier are simply missing from the result.
func GetMany[T any](ctx context.Context, c Cache, keys []string, opts ...Option) (map[string]T, error) {
	frames, err := c.GetMany(ctx, keys, opts...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(frames))
	for key, frame := range frames {
		var value T
		if err := c.Decode(frame, &value); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}
