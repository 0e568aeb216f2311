package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

type compositeEngine struct {
	engines []Engine
}

var (
	_ Engine = (*compositeEngine)(nil)
	_ Purger = (*compositeEngine)(nil)
)

// NewComposite returns an Engine that chains engines together, e.g. a Memory
// L1 in front of a Redis L2.
// Get checks engines in order and returns the first hit.
// Insert, Remove and DropColumn apply to every engine.
// At least one engine must be provided; panics if empty.
func NewComposite(engines ...Engine) Engine {
	if len(engines) == 0 {
		panic("cache: NewComposite requires at least one engine")
	}
	return &compositeEngine{engines: engines}
}

// Insert writes to every engine and returns the first error.
func (c *compositeEngine) Insert(ctx context.Context, col Column, key []byte, record []byte) error {
	var firstErr error
	for _, e := range c.engines {
		if err := e.Insert(ctx, col, key, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeEngine) Get(ctx context.Context, col Column, key []byte) ([]byte, error) {
	for _, e := range c.engines {
		data, err := e.Get(ctx, col, key)
		if err == nil {
			return data, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Remove deletes from every engine, stopping at the first error.
func (c *compositeEngine) Remove(ctx context.Context, col Column, key []byte) error {
	for _, e := range c.engines {
		if err := e.Remove(ctx, col, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *compositeEngine) Exists(ctx context.Context, col Column, key []byte) (bool, error) {
	for _, e := range c.engines {
		ok, err := e.Exists(ctx, col, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (c *compositeEngine) DropColumn(ctx context.Context, col Column) error {
	for _, e := range c.engines {
		if err := e.DropColumn(ctx, col); err != nil {
			return err
		}
	}
	return nil
}

// Purge purges every engine that supports it and sums the results.
func (c *compositeEngine) Purge(ctx context.Context) (int64, error) {
	var total int64
	for _, e := range c.engines {
		p, ok := e.(Purger)
		if !ok {
			continue
		}
		n, err := p.Purge(ctx)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close closes every engine and returns the combined error.
func (c *compositeEngine) Close() error {
	var err error
	for _, e := range c.engines {
		err = errors.CombineErrors(err, e.Close())
	}
	return err
}
