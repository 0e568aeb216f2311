package cache

import (
	"context"
	"reflect"
)

// Invoker produces the value for a cache miss. The bool reports whether a
// value was found; return false to signal "not found" without caching a zero
// value (e.g. sql.ErrNoRows).
type Invoker[V any] func(ctx context.Context) (V, bool, error)

type loaded[V any] struct {
	value V
	found bool
}

// Exec is a read-through helper. It returns the cached value for key when
// one exists. On a miss it calls invoke, stores the result when invoke
// reports found, and returns it. Concurrent misses for the same
// fully-qualified key and value type share a single invoke call.
//
// Errors other than ErrNotFound from the cache are returned without calling
// invoke. A failure to store the loaded value is logged and swallowed since
// the caller still gets its value.
func Exec[V any, K Key](ctx context.Context, c *Cache, col Column, key K, invoke Invoker[V]) (bool, V, error) {
	var zero V
	val, err := Get[V](ctx, c, col, key)
	if err == nil {
		return true, val, nil
	}
	if !IsNotFound(err) {
		return false, zero, err
	}

	qualified, err := QualifiedKey(col, []byte(key))
	if err != nil {
		return false, zero, err
	}
	flightKey := qualified + "|" + reflect.TypeFor[V]().String()
	res, err, _ := c.flight.Do(flightKey, func() (any, error) {
		v, found, err := invoke(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return loaded[V]{}, nil
		}
		if err := Insert(ctx, c, col, key, v); err != nil {
			c.logger.Warn("failed to store loaded value for %s: %s", qualified, err)
		}
		return loaded[V]{value: v, found: true}, nil
	})
	if err != nil {
		return false, zero, err
	}
	l, ok := res.(loaded[V])
	if !ok {
		// Two distinct types can share a name, so the flight key may still
		// collide. Load on our own rather than share the other result.
		v, found, err := invoke(ctx)
		if err != nil || !found {
			return false, zero, err
		}
		return true, v, nil
	}
	if !l.found {
		return false, zero, nil
	}
	return true, l.value, nil
}
