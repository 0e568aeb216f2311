package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type user struct {
	Name string
	Age  int
}

func uniqueColumn(ttl int) ColumnDef {
	return NewColumn("col-"+uuid.NewString(), ttl)
}

// engineFactory builds a fresh engine bound to clock; advance moves the
// engine's notion of time forward.
type engineFactory func(t *testing.T, clock *testClock) (Engine, func(time.Duration))

func memoryFactory(t *testing.T, clock *testClock) (Engine, func(time.Duration)) {
	e, err := NewMemory(MemoryConfig{}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, clock.Advance
}

func sqliteFactory(t *testing.T, clock *testClock) (Engine, func(time.Duration)) {
	e, err := NewSQLite(context.Background(), SQLiteConfig{Path: ":memory:"}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, clock.Advance
}

func redisFactory(t *testing.T, clock *testClock) (Engine, func(time.Duration)) {
	mr, client := newTestRedis(t)
	t.Cleanup(func() { client.Close() })
	return NewRedis(client), func(d time.Duration) {
		clock.Advance(d)
		mr.FastForward(d)
	}
}

var storeFactories = map[string]engineFactory{
	"memory": memoryFactory,
	"sqlite": sqliteFactory,
	"redis":  redisFactory,
}
