package cache

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSimpleCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := NewSQLite(ctx, SQLiteConfig{Path: ":memory:"}, WithExpiryCheck(time.Second))
	require.NoError(t, err)
	assert.NoError(t, e.Close())
	// Close is idempotent.
	assert.NoError(t, e.Close())
}

func TestSQLiteInMemoryIsPrivate(t *testing.T) {
	ctx := context.Background()
	a, err := NewSQLite(ctx, SQLiteConfig{})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLite(ctx, SQLiteConfig{})
	require.NoError(t, err)
	defer b.Close()

	col := NewColumn("users", 10)
	require.NoError(t, a.Insert(ctx, col, []byte("42"), []byte("v")))
	_, err = b.Get(ctx, col, []byte("42"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteFileBased(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	col := NewColumn("users", 0)

	e, err := NewSQLite(ctx, SQLiteConfig{Path: path, CacheCapacity: 4 << 20})
	require.NoError(t, err)
	require.NoError(t, e.Insert(ctx, col, []byte("42"), []byte("persisted")))
	require.NoError(t, e.Close())

	// Reopening runs the migrations again and keeps the data.
	e, err = NewSQLite(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer e.Close()
	data, err := e.Get(ctx, col, []byte("42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}

func TestSQLiteExpiredRowDeletedOnRead(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	e, _ := sqliteFactory(t, clock)
	col := NewColumn("users", 10)

	require.NoError(t, e.Insert(ctx, col, []byte("42"), []byte("v")))
	clock.Advance(11 * time.Second)
	_, err := e.Get(ctx, col, []byte("42"))
	assert.ErrorIs(t, err, ErrNotFound)

	// The lazy delete already removed the row, so nothing is left to purge.
	n, err := e.(Purger).Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLitePurge(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	e, _ := sqliteFactory(t, clock)
	short, long, forever := NewColumn("short", 1), NewColumn("long", 60), NewColumn("forever", 0)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, e.Insert(ctx, short, []byte(k), []byte(k)))
	}
	require.NoError(t, e.Insert(ctx, long, []byte("a"), []byte("a")))
	require.NoError(t, e.Insert(ctx, forever, []byte("a"), []byte("a")))
	clock.Advance(2 * time.Second)

	n, err := e.(Purger).Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := e.Exists(ctx, long, []byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Exists(ctx, forever, []byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteBackgroundExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	e, err := NewSQLite(ctx, SQLiteConfig{}, WithClock(clock.Now), WithExpiryCheck(10*time.Millisecond))
	require.NoError(t, err)
	defer e.Close()
	col := NewColumn("users", 1)

	require.NoError(t, e.Insert(ctx, col, []byte("42"), []byte("v")))
	clock.Advance(2 * time.Second)

	db := e.(*sqliteEngine).read
	assert.Eventually(t, func() bool {
		var count int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
		return err == nil && count == 0
	}, time.Second, 20*time.Millisecond)
}

func TestSQLiteReinsertAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	e, _ := sqliteFactory(t, clock)
	col := NewColumn("users", 10)

	require.NoError(t, e.Insert(ctx, col, []byte("42"), []byte("old")))
	clock.Advance(11 * time.Second)
	require.NoError(t, e.Insert(ctx, col, []byte("42"), []byte("new")))
	data, err := e.Get(ctx, col, []byte("42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestSQLiteCancelledContext(t *testing.T) {
	e, _ := sqliteFactory(t, newTestClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Insert(ctx, NewColumn("users", 10), []byte("42"), []byte("v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteDropColumnLogsColumn(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	e, err := NewSQLite(ctx, SQLiteConfig{}, WithLogger(log))
	require.NoError(t, err)
	defer e.Close()
	col := NewColumn("users", 60)
	require.NoError(t, e.Insert(ctx, col, []byte("1"), []byte("a")))
	require.NoError(t, e.Insert(ctx, col, []byte("2"), []byte("b")))
	require.NoError(t, e.DropColumn(ctx, col))

	entries := log.Find("DEBUG", "dropped 2 records")
	require.Len(t, entries, 1)
	assert.Equal(t, "users", entries[0].Metadata["column"])
	assert.Contains(t, entries[0].Prefixes, "[sqlite]")
}

func TestExpiresAtNanosSaturates(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, now.Add(time.Minute).UnixNano(), expiresAtNanos(now, time.Minute))
	assert.Equal(t, int64(math.MaxInt64), expiresAtNanos(now, time.Duration(math.MaxInt64)))
}
