package cache

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind names accepted by Build.
const (
	BackendNoop   = "noop"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures an engine for Build.
type Config struct {
	// Kind is one of noop, memory, sqlite or redis.
	Kind string `yaml:"kind"`
	// Target is the database path for sqlite and the connection URL for
	// redis. Ignored by the other kinds.
	Target string `yaml:"target"`
	// Capacity is the page cache size in bytes for sqlite, the pool size for
	// redis and the maximum number of entries for memory. Zero keeps the
	// backend default.
	Capacity int64 `yaml:"capacity"`
}

// Backends lists the kinds understood by Build.
func Backends() []string {
	return []string{BackendNoop, BackendMemory, BackendSQLite, BackendRedis}
}

// Build constructs the engine described by cfg and wraps it in a Cache. The
// same options are passed to the engine and the facade. Any failure is
// marked ErrBuild.
func Build(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	engine, err := BuildEngine(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return New(engine, opts...), nil
}

// BuildEngine constructs the engine described by cfg.
func BuildEngine(ctx context.Context, cfg Config, opts ...Option) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case BackendNoop:
		return NewNoop(), nil
	case BackendMemory:
		return NewMemory(MemoryConfig{MaxEntries: int(cfg.Capacity)}, opts...)
	case BackendSQLite:
		return NewSQLite(ctx, SQLiteConfig{Path: cfg.Target, CacheCapacity: cfg.Capacity}, opts...)
	case BackendRedis:
		if cfg.Target == "" {
			return nil, errors.Mark(errors.New("cache: redis backend requires a target url"), ErrBuild)
		}
		return OpenRedis(ctx, RedisConfig{URL: cfg.Target, PoolSize: int(cfg.Capacity)}, opts...)
	default:
		return nil, errors.Mark(errors.Newf("cache: unknown backend %q", cfg.Kind), ErrBuild)
	}
}
