package cache

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"github.com/maypok86/otter/v2"
)

// DefaultMaxEntries bounds the Memory engine when MemoryConfig.MaxEntries is
// not set.
const DefaultMaxEntries = 100_000

// MemoryConfig configures the in-process engine.
type MemoryConfig struct {
	// MaxEntries is the maximum number of records held before W-TinyLFU
	// eviction kicks in. Defaults to DefaultMaxEntries.
	MaxEntries int
}

// entry wraps a stored record with its expiration time. A zero expiresAt
// never expires.
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

type memoryEngine struct {
	cache  *otter.Cache[string, entry]
	now    func() time.Time
	logger logger.Logger
}

var (
	_ Engine = (*memoryEngine)(nil)
	_ Purger = (*memoryEngine)(nil)
)

// NewMemory returns an in-process Engine backed by otter. Records are lost
// when the process exits.
func NewMemory(cfg MemoryConfig, opts ...Option) (Engine, error) {
	c := applyOptions(opts)
	size := cfg.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	store, err := otter.New(&otter.Options[string, entry]{
		MaximumSize: size,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cache: create memory store"), ErrBuild)
	}
	return &memoryEngine{
		cache:  store,
		now:    c.now,
		logger: c.logger.WithPrefix("[memory]"),
	}, nil
}

func (m *memoryEngine) Insert(_ context.Context, col Column, key []byte, record []byte) error {
	k, err := QualifiedKey(col, key)
	if err != nil {
		return err
	}
	e := entry{data: bytes.Clone(record)}
	if ttl := Expiry(col); ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.cache.Set(k, e)
	return nil
}

// lookup returns the live entry for k, invalidating it if expired.
func (m *memoryEngine) lookup(k string) (entry, bool) {
	e, ok := m.cache.GetIfPresent(k)
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		m.cache.Invalidate(k)
		return entry{}, false
	}
	return e, true
}

func (m *memoryEngine) Get(_ context.Context, col Column, key []byte) ([]byte, error) {
	k, err := QualifiedKey(col, key)
	if err != nil {
		return nil, err
	}
	e, ok := m.lookup(k)
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.data), nil
}

func (m *memoryEngine) Remove(_ context.Context, col Column, key []byte) error {
	k, err := QualifiedKey(col, key)
	if err != nil {
		return err
	}
	m.cache.Invalidate(k)
	return nil
}

func (m *memoryEngine) Exists(_ context.Context, col Column, key []byte) (bool, error) {
	k, err := QualifiedKey(col, key)
	if err != nil {
		return false, err
	}
	_, ok := m.lookup(k)
	return ok, nil
}

func (m *memoryEngine) DropColumn(_ context.Context, col Column) error {
	if err := ValidateColumn(col); err != nil {
		return err
	}
	prefix := col.Name() + Separator
	var dropped int
	for k := range m.cache.All() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Invalidate(k)
			dropped++
		}
	}
	logger.WithKV(m.logger, "column", col.Name()).Debug("dropped %d records", dropped)
	return nil
}

// Purge removes every expired record.
func (m *memoryEngine) Purge(_ context.Context) (int64, error) {
	now := m.now()
	var purged int64
	for k, e := range m.cache.All() {
		if e.expired(now) {
			m.cache.Invalidate(k)
			purged++
		}
	}
	return purged, nil
}

func (m *memoryEngine) Close() error {
	m.cache.InvalidateAll()
	return nil
}
