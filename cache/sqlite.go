package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteConfig configures the embedded on-disk engine.
type SQLiteConfig struct {
	// Path is the database file. Empty or ":memory:" opens a private
	// in-memory database that lives as long as the engine.
	Path string
	// CacheCapacity is the SQLite page cache size in bytes. Zero keeps the
	// SQLite default.
	CacheCapacity int64
}

type sqliteEngine struct {
	write     *sql.DB // single-writer connection
	read      *sql.DB // reader pool; same as write for in-memory databases
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	logger    logger.Logger
}

var (
	_ Engine = (*sqliteEngine)(nil)
	_ Purger = (*sqliteEngine)(nil)
)

// NewSQLite opens (or creates) the database described by cfg, applies the
// schema migrations and returns an Engine backed by it.
//
// Expiry is checked on every read against the configured clock; expired rows
// are deleted lazily. WithExpiryCheck additionally starts a background sweep
// that runs until Close or until ctx is cancelled.
func NewSQLite(ctx context.Context, cfg SQLiteConfig, opts ...Option) (Engine, error) {
	c := applyOptions(opts)
	pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if cfg.CacheCapacity > 0 {
		pragmas += fmt.Sprintf("&_pragma=cache_size(-%d)", max(cfg.CacheCapacity/1024, 1))
	}

	inMemory := cfg.Path == "" || cfg.Path == ":memory:"
	var dsn string
	if inMemory {
		dsn = "file:cachekit-" + uuid.NewString() + "?mode=memory&cache=shared&" + pragmas
	} else {
		dsn = "file:" + cfg.Path + "?" + pragmas
	}

	write, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cache: open sqlite"), ErrBuild)
	}
	write.SetMaxOpenConns(1)

	read := write
	if !inMemory {
		read, err = sql.Open("sqlite", dsn)
		if err != nil {
			write.Close()
			return nil, errors.Mark(errors.Wrap(err, "cache: open sqlite reader"), ErrBuild)
		}
		read.SetMaxOpenConns(max(4, runtime.NumCPU()))
	}

	if err := runMigrations(ctx, write); err != nil {
		write.Close()
		if read != write {
			read.Close()
		}
		return nil, errors.Mark(errors.Wrap(err, "cache: sqlite migrations"), ErrBuild)
	}

	childCtx, cancel := context.WithCancel(ctx)
	s := &sqliteEngine{
		write:  write,
		read:   read,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    c,
		logger: c.logger.WithPrefix("[sqlite]"),
	}
	if c.expiryCheck > 0 {
		s.waitGroup.Add(1)
		go s.run()
	}
	return s, nil
}

// runMigrations applies the embedded schema using goose.
// fs.Sub strips the "migrations/" prefix so goose sees files at the FS root.
func runMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "sub fs")
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return errors.Wrap(err, "create migration provider")
	}
	_, err = provider.Up(ctx)
	return err
}

func (s *sqliteEngine) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

// normalizeKey maps nil to an empty blob; the schema rejects NULL keys and
// values.
func normalizeKey(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return key
}

// expiresAtNanos returns now+ttl in unix nanoseconds, saturating instead of
// overflowing for very long TTLs.
func expiresAtNanos(now time.Time, ttl time.Duration) int64 {
	n := now.UnixNano()
	if int64(ttl) > math.MaxInt64-n {
		return math.MaxInt64
	}
	return n + int64(ttl)
}

func (s *sqliteEngine) Insert(ctx context.Context, col Column, key []byte, record []byte) error {
	if err := ValidateColumn(col); err != nil {
		return err
	}
	start := time.Now()
	var expiresAt int64
	if ttl := Expiry(col); ttl > 0 {
		expiresAt = expiresAtNanos(s.cfg.now(), ttl)
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.write.ExecContext(qctx,
		`INSERT INTO records (col, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(col, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		col.Name(), normalizeKey(key), normalizeKey(record), expiresAt,
	)
	if err != nil {
		return backendError(err, "cache: sqlite insert %s:%s", col.Name(), key)
	}
	s.logger.Trace("insert %s:%s took %s", col.Name(), key, time.Since(start))
	return nil
}

// live loads the record for key and reports whether it is present and not
// expired. Expired rows are deleted on the way out.
func (s *sqliteEngine) live(ctx context.Context, col Column, key []byte, withValue bool) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var (
		data      []byte
		expiresAt int64
		err       error
	)
	if withValue {
		err = s.read.QueryRowContext(qctx,
			`SELECT value, expires_at FROM records WHERE col = ? AND key = ?`, col.Name(), key,
		).Scan(&data, &expiresAt)
	} else {
		err = s.read.QueryRowContext(qctx,
			`SELECT expires_at FROM records WHERE col = ? AND key = ?`, col.Name(), key,
		).Scan(&expiresAt)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError(err, "cache: sqlite get %s:%s", col.Name(), key)
	}
	if expiresAt != 0 && expiresAt < s.cfg.now().UnixNano() {
		// Only delete the row we saw, a concurrent insert may have replaced it.
		if _, err := s.write.ExecContext(qctx,
			`DELETE FROM records WHERE col = ? AND key = ? AND expires_at = ?`, col.Name(), key, expiresAt,
		); err != nil {
			s.logger.Warn("failed to delete expired record %s:%s: %s", col.Name(), key, err)
		}
		return nil, false, nil
	}
	return data, true, nil
}

func (s *sqliteEngine) Get(ctx context.Context, col Column, key []byte) ([]byte, error) {
	if err := ValidateColumn(col); err != nil {
		return nil, err
	}
	start := time.Now()
	data, ok, err := s.live(ctx, col, normalizeKey(key), true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.logger.Trace("get %s:%s took %s", col.Name(), key, time.Since(start))
	return data, nil
}

func (s *sqliteEngine) Remove(ctx context.Context, col Column, key []byte) error {
	if err := ValidateColumn(col); err != nil {
		return err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if _, err := s.write.ExecContext(qctx,
		`DELETE FROM records WHERE col = ? AND key = ?`, col.Name(), normalizeKey(key),
	); err != nil {
		return backendError(err, "cache: sqlite remove %s:%s", col.Name(), key)
	}
	return nil
}

func (s *sqliteEngine) Exists(ctx context.Context, col Column, key []byte) (bool, error) {
	if err := ValidateColumn(col); err != nil {
		return false, err
	}
	_, ok, err := s.live(ctx, col, normalizeKey(key), false)
	return ok, err
}

func (s *sqliteEngine) DropColumn(ctx context.Context, col Column) error {
	if err := ValidateColumn(col); err != nil {
		return err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.write.ExecContext(qctx, `DELETE FROM records WHERE col = ?`, col.Name())
	if err != nil {
		return backendError(err, "cache: sqlite drop column %s", col.Name())
	}
	if rows, err := result.RowsAffected(); err == nil {
		logger.WithKV(s.logger, "column", col.Name()).Debug("dropped %d records", rows)
	}
	return nil
}

// Purge deletes every expired row.
func (s *sqliteEngine) Purge(ctx context.Context) (int64, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.write.ExecContext(qctx,
		`DELETE FROM records WHERE expires_at > 0 AND expires_at < ?`, s.cfg.now().UnixNano(),
	)
	if err != nil {
		return 0, backendError(err, "cache: sqlite purge")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, backendError(err, "cache: sqlite purge")
	}
	return rows, nil
}

func (s *sqliteEngine) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.write.Close()
		if s.read != s.write {
			dbErr = errors.CombineErrors(dbErr, s.read.Close())
		}
	})
	return dbErr
}

func (s *sqliteEngine) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Purge(s.ctx); err != nil {
				if s.ctx.Err() == nil {
					s.logger.Warn("expiry sweep failed: %s", err)
				}
			} else if n > 0 {
				s.logger.Debug("expiry sweep removed %d records", n)
			}
		}
	}
}
