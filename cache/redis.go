package cache

import (
	"context"
	"strings"
	"time"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis engine that owns its client.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string
	// PoolSize overrides the connection pool size. Zero keeps the go-redis
	// default (10 per CPU).
	PoolSize int
}

type redisEngine struct {
	client *redis.Client
	owned  bool
	cfg    config
	logger logger.Logger
}

var _ Engine = (*redisEngine)(nil)

// NewRedis returns an Engine backed by an existing Redis client.
// The caller owns the redis.Client lifecycle; Close does not close it.
//
// Expiry is delegated to Redis: records are written with SET ... EX using the
// column TTL, and no expiry at all when the TTL is zero or negative.
func NewRedis(client *redis.Client, opts ...Option) Engine {
	cfg := applyOptions(opts)
	return &redisEngine{
		client: client,
		cfg:    cfg,
		logger: cfg.logger.WithPrefix("[redis]"),
	}
}

// OpenRedis connects to the server described by cfg and returns an Engine
// that owns the client. The server is pinged before returning; an
// unreachable server fails with an error matching both ErrBuild and
// ErrUnavailable.
func OpenRedis(ctx context.Context, cfg RedisConfig, opts ...Option) (Engine, error) {
	ropts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cache: parse redis url"), ErrBuild)
	}
	if cfg.PoolSize > 0 {
		ropts.PoolSize = cfg.PoolSize
	}
	// The cache never retries on its own; retry policy belongs to the caller.
	ropts.MaxRetries = -1

	c := applyOptions(opts)
	client := redis.NewClient(ropts)
	e := &redisEngine{
		client: client,
		owned:  true,
		cfg:    c,
		logger: c.logger.WithPrefix("[redis]"),
	}
	qctx, cancel := e.queryCtx(ctx)
	defer cancel()
	if err := client.Ping(qctx).Err(); err != nil {
		client.Close()
		return nil, errors.Mark(backendError(err, "cache: ping redis"), ErrBuild)
	}
	return e, nil
}

func (r *redisEngine) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *redisEngine) key(col Column, key []byte) (string, error) {
	k, err := QualifiedKey(col, key)
	if err != nil {
		return "", err
	}
	if r.cfg.prefix == "" {
		return k, nil
	}
	return r.cfg.prefix + Separator + k, nil
}

func (r *redisEngine) Insert(ctx context.Context, col Column, key []byte, record []byte) error {
	k, err := r.key(col, key)
	if err != nil {
		return err
	}
	start := time.Now()
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, k, record, Expiry(col)).Err(); err != nil {
		return backendError(err, "cache: redis insert %s", k)
	}
	r.logger.Trace("insert %s took %s", k, time.Since(start))
	return nil
}

func (r *redisEngine) Get(ctx context.Context, col Column, key []byte) ([]byte, error) {
	k, err := r.key(col, key)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	data, err := r.client.Get(qctx, k).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, backendError(err, "cache: redis get %s", k)
	}
	r.logger.Trace("get %s took %s", k, time.Since(start))
	return data, nil
}

func (r *redisEngine) Remove(ctx context.Context, col Column, key []byte) error {
	k, err := r.key(col, key)
	if err != nil {
		return err
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Del(qctx, k).Err(); err != nil {
		return backendError(err, "cache: redis remove %s", k)
	}
	return nil
}

func (r *redisEngine) Exists(ctx context.Context, col Column, key []byte) (bool, error) {
	k, err := r.key(col, key)
	if err != nil {
		return false, err
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Exists(qctx, k).Result()
	if err != nil {
		return false, backendError(err, "cache: redis exists %s", k)
	}
	return n > 0, nil
}

// DropColumn scans the column namespace and unlinks every key in it.
func (r *redisEngine) DropColumn(ctx context.Context, col Column) error {
	prefix, err := r.key(col, nil)
	if err != nil {
		return err
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	var (
		cursor  uint64
		dropped int64
	)
	for {
		keys, next, err := r.client.Scan(qctx, cursor, escapePattern(prefix)+"*", 100).Result()
		if err != nil {
			return backendError(err, "cache: redis scan %s", col.Name())
		}
		if len(keys) > 0 {
			n, err := r.client.Unlink(qctx, keys...).Result()
			if err != nil {
				return backendError(err, "cache: redis unlink %s", col.Name())
			}
			dropped += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	logger.WithKV(r.logger, "column", col.Name()).Debug("dropped %d records", dropped)
	return nil
}

// Close closes the client when the engine opened it.
func (r *redisEngine) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

// escapePattern escapes the glob metacharacters understood by SCAN MATCH.
func escapePattern(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
