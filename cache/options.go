package cache

import (
	"time"

	"github.com/agentuity/go-cachekit/codec"
	"github.com/agentuity/go-cachekit/logger"
)

// DefaultQueryTimeout is the per-operation timeout for engines that perform
// I/O (SQLite, Redis). Prevents indefinite hangs on slow or unresponsive
// storage.
const DefaultQueryTimeout = 5 * time.Second

// config holds the resolved configuration shared by the facade and engines.
type config struct {
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
	now          func() time.Time
	logger       logger.Logger
	codec        codec.Codec
}

// Option configures the facade or an engine. Options that do not apply to a
// given engine are ignored.
type Option func(*config)

func defaultConfig() config {
	return config{
		queryTimeout: DefaultQueryTimeout,
		now:          time.Now,
		logger:       logger.NewConsoleLogger(logger.LevelNone),
		codec:        codec.Default,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed engines
// (SQLite, Redis). Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck enables a background sweep of expired rows at the given
// interval. Applies to the SQLite engine. Disabled by default; expired
// records are always treated as absent on read regardless.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets a key prefix in front of the column namespace.
// Applies to the Redis engine. Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithClock replaces the time source used for expiry by the Memory and
// SQLite engines.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to a silent console logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCodec sets the codec used by the facade. Defaults to codec.Default.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) {
		if cd != nil {
			c.codec = cd
		}
	}
}
