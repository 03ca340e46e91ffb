// Package pool provides the bounded blocking pool that shares mock server
// instances across parallel tests.
package pool

import (
	"context"
	"sync"
)

// Pool hands out items up to a fixed cap, creating them lazily. When the cap
// is reached, Take blocks until an item is returned. The pool never shrinks.
type Pool[T any] struct {
	items   chan T
	factory func() (T, error)

	mu      sync.Mutex
	created int
	max     int
}

// New creates a pool with the given capacity and item factory.
func New[T any](max int, factory func() (T, error)) *Pool[T] {
	if max < 1 {
		max = 1
	}
	return &Pool[T]{
		items:   make(chan T, max),
		factory: factory,
		max:     max,
	}
}

// Take returns an idle item, creates a fresh one while under the cap, or
// blocks until another borrower calls Put.
func (p *Pool[T]) Take(ctx context.Context) (T, error) {
	select {
	case item := <-p.items:
		return item, nil
	default:
	}

	p.mu.Lock()
	if p.created < p.max {
		p.created++
		p.mu.Unlock()
		item, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			var zero T
			return zero, err
		}
		return item, nil
	}
	p.mu.Unlock()

	select {
	case item := <-p.items:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Put returns an item for the next borrower.
func (p *Pool[T]) Put(item T) {
	p.items <- item
}

// Created returns how many items the pool has built so far.
func (p *Pool[T]) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
