package cache

import (
	"context"

	"github.com/agentuity/go-cachekit/codec"
	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

// Cache is the engine facade. It owns exactly one Engine and the codec used
// to type its records. Use the package-level Insert, Get, Remove and Exists
// functions to operate on it.
//
// Cache adds no locking, retries or caching of its own; errors from the
// engine are returned unchanged.
type Cache struct {
	engine Engine
	codec  codec.Codec
	logger logger.Logger
	flight singleflight.Group
}

// New returns a Cache that dispatches every operation to engine.
func New(engine Engine, opts ...Option) *Cache {
	cfg := applyOptions(opts)
	return &Cache{
		engine: engine,
		codec:  cfg.codec,
		logger: cfg.logger,
	}
}

// Engine returns the engine held by the facade.
func (c *Cache) Engine() Engine {
	return c.engine
}

// Codec returns the codec used to encode and decode records.
func (c *Cache) Codec() codec.Codec {
	return c.codec
}

// DropColumn removes every record in col.
func (c *Cache) DropColumn(ctx context.Context, col Column) error {
	return c.engine.DropColumn(ctx, col)
}

// Purge physically deletes expired records when the engine supports it.
// Engines that expire natively report 0.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	if p, ok := c.engine.(Purger); ok {
		return p.Purge(ctx)
	}
	return 0, nil
}

// Close closes the engine.
func (c *Cache) Close() error {
	return c.engine.Close()
}

// Insert encodes value and stores it under key in col, replacing any previous
// record. The record expires after col's TTL.
func Insert[K Key, V any](ctx context.Context, c *Cache, col Column, key K, value V) error {
	record, err := codec.Encode(c.codec, value)
	if err != nil {
		return err
	}
	return c.engine.Insert(ctx, col, []byte(key), record)
}

// Get returns the value stored under key in col. It fails with ErrNotFound
// when the key is absent or expired, and with ErrCorruptData (also matching
// ErrDecode) when the stored record cannot be decoded into V.
//
//	user, err := cache.Get[User](ctx, c, Users, "42")
func Get[V any, K Key](ctx context.Context, c *Cache, col Column, key K) (V, error) {
	record, err := c.engine.Get(ctx, col, []byte(key))
	if err != nil {
		var zero V
		return zero, err
	}
	value, err := codec.Decode[V](c.codec, record)
	if err != nil {
		var zero V
		return zero, errors.Mark(errors.Wrapf(err, "cache: %s:%s", colName(col), key), ErrCorruptData)
	}
	return value, nil
}

// Remove deletes the record under key in col. It succeeds when the key does
// not exist.
func Remove[K Key](ctx context.Context, c *Cache, col Column, key K) error {
	return c.engine.Remove(ctx, col, []byte(key))
}

// Exists reports whether a live record exists under key in col. The record is
// not decoded.
func Exists[K Key](ctx context.Context, c *Cache, col Column, key K) (bool, error) {
	return c.engine.Exists(ctx, col, []byte(key))
}

func colName(col Column) string {
	if col == nil {
		return "<nil>"
	}
	return col.Name()
}
