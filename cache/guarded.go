package cache

import (
	"context"

	"github.com/agentuity/go-cachekit/resilience"
	"github.com/cockroachdb/errors"
)

type guardedEngine struct {
	engine  Engine
	breaker *resilience.CircuitBreaker
}

var (
	_ Engine = (*guardedEngine)(nil)
	_ Purger = (*guardedEngine)(nil)
)

// NewGuarded wraps engine with a circuit breaker. Once the breaker opens,
// calls fail fast with an error matching ErrUnavailable without reaching the
// backend. Only ErrUnavailable failures count against the breaker unless
// cfg.IsFailure says otherwise; misses and corrupt records never do.
//
// The breaker never retries. Close and DropColumn bypass it.
func NewGuarded(engine Engine, cfg resilience.CircuitBreakerConfig) Engine {
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsUnavailable
	}
	return &guardedEngine{
		engine:  engine,
		breaker: resilience.NewCircuitBreaker(cfg),
	}
}

// Breaker returns the circuit breaker of a guarded engine, or nil when e was
// not built by NewGuarded.
func Breaker(e Engine) *resilience.CircuitBreaker {
	if g, ok := e.(*guardedEngine); ok {
		return g.breaker
	}
	return nil
}

func (g *guardedEngine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := g.breaker.Execute(ctx, fn)
	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		return errors.Mark(errors.Wrap(err, "cache: backend guarded"), ErrUnavailable)
	}
	return err
}

func (g *guardedEngine) Insert(ctx context.Context, col Column, key []byte, record []byte) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.engine.Insert(ctx, col, key, record)
	})
}

func (g *guardedEngine) Get(ctx context.Context, col Column, key []byte) ([]byte, error) {
	var data []byte
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.engine.Get(ctx, col, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (g *guardedEngine) Remove(ctx context.Context, col Column, key []byte) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.engine.Remove(ctx, col, key)
	})
}

func (g *guardedEngine) Exists(ctx context.Context, col Column, key []byte) (bool, error) {
	var ok bool
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = g.engine.Exists(ctx, col, key)
		return err
	})
	return ok, err
}

func (g *guardedEngine) DropColumn(ctx context.Context, col Column) error {
	return g.engine.DropColumn(ctx, col)
}

func (g *guardedEngine) Purge(ctx context.Context) (int64, error) {
	p, ok := g.engine.(Purger)
	if !ok {
		return 0, nil
	}
	return p.Purge(ctx)
}

func (g *guardedEngine) Close() error {
	return g.engine.Close()
}
