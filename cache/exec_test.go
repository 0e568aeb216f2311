package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecCache(t *testing.T) *Cache {
	t.Helper()
	engine, _ := memoryFactory(t, newTestClock())
	return New(engine)
}

func TestExecCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	invoked := false
	found, val, err := Exec(ctx, c, col, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh-value", val)
	assert.True(t, invoked)

	// Value should now be cached.
	cached, err := Get[string](ctx, c, col, "key")
	assert.NoError(t, err)
	assert.Equal(t, "fresh-value", cached)
}

func TestExecCacheHit(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)
	require.NoError(t, Insert(ctx, c, col, "key", "cached-value"))

	invoked := false
	found, val, err := Exec(ctx, c, col, "key", func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cached-value", val)
	assert.False(t, invoked)
}

func TestExecNotFoundNotCached(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	calls := 0
	invoke := func(ctx context.Context) (user, bool, error) {
		calls++
		return user{}, false, nil
	}
	for i := 0; i < 2; i++ {
		found, val, err := Exec(ctx, c, col, "missing", invoke)
		assert.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, user{}, val)
	}
	assert.Equal(t, 2, calls)

	ok, err := Exists(ctx, c, col, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecInvokerError(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	boom := errors.New("boom")
	found, _, err := Exec(ctx, c, col, "key", func(ctx context.Context) (int, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
}

func TestExecPropagatesCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)
	require.NoError(t, c.Engine().Insert(ctx, col, []byte("key"), []byte{0xff}))

	invoked := false
	_, _, err := Exec(ctx, c, col, "key", func(ctx context.Context) (int, bool, error) {
		invoked = true
		return 1, true, nil
	})
	assert.ErrorIs(t, err, ErrCorruptData)
	assert.False(t, invoked)
}

func TestExecInvalidColumn(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)

	_, _, err := Exec(ctx, c, NewColumn("bad:name", 10), "key", func(ctx context.Context) (int, bool, error) {
		return 1, true, nil
	})
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestExecWriteFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	// NoOp never stores, so every call is a miss but none fail.
	c := New(NewNoop())
	col := NewColumn("users", 10)

	found, val, err := Exec(ctx, c, col, "42", func(ctx context.Context) (user, bool, error) {
		return user{Name: "Ada"}, true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Ada", val.Name)

	// Unencodable values cannot be stored but are still returned.
	c = newExecCache(t)
	found, ch, err := Exec(ctx, c, uniqueColumn(60), "chan", func(ctx context.Context) (chan int, bool, error) {
		return make(chan int), true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, ch)
}

func TestExecDeduplicatesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	var calls atomic.Int32
	release := make(chan struct{})
	invoke := func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		<-release
		return "value", true, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, v, err := Exec(ctx, c, col, "key", invoke)
			if err == nil {
				results <- v
			}
		}()
	}
	// Give the workers time to pile up on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	count := 0
	for v := range results {
		assert.Equal(t, "value", v)
		count++
	}
	assert.Equal(t, workers, count)
	assert.LessOrEqual(t, calls.Load(), int32(workers))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestExecDifferentValueTypesSameKey(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string, 1)
	go func() {
		_, v, err := Exec(ctx, c, col, "key", func(ctx context.Context) (string, bool, error) {
			close(started)
			<-release
			return "text", true, nil
		})
		if err != nil {
			v = err.Error()
		}
		done <- v
	}()
	<-started

	var (
		found bool
		n     int
		err   error
	)
	assert.NotPanics(t, func() {
		found, n, err = Exec(ctx, c, col, "key", func(ctx context.Context) (int, bool, error) {
			return 7, true, nil
		})
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, n)

	close(release)
	assert.Equal(t, "text", <-done)
}

func TestExecSameTypeNameDifferentTypes(t *testing.T) {
	ctx := context.Background()
	c := newExecCache(t)
	col := uniqueColumn(60)

	started := make(chan struct{})
	release := make(chan struct{})
	doneA := make(chan error, 1)
	go func() {
		type payload struct{ Name string }
		_, _, err := Exec(ctx, c, col, "key", func(ctx context.Context) (payload, bool, error) {
			close(started)
			<-release
			return payload{Name: "a"}, true, nil
		})
		doneA <- err
	}()
	<-started

	doneB := make(chan error, 1)
	go func() {
		type payload struct{ Count int }
		defer func() {
			if r := recover(); r != nil {
				doneB <- fmt.Errorf("panic: %v", r)
			}
		}()
		_, _, err := Exec(ctx, c, col, "key", func(ctx context.Context) (payload, bool, error) {
			return payload{Count: 7}, true, nil
		})
		doneB <- err
	}()
	// Let the second caller join the in-flight load before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.NoError(t, <-doneA)
	assert.NoError(t, <-doneB)
}
