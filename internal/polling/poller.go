// Package polling runs a cancellable fetch loop on a fixed interval.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FetchFunc returns everything accumulated so far and whether the source
// has finished.
type FetchFunc[T any] func(ctx context.Context) (items []T, done bool, err error)

// Poller repeatedly calls a FetchFunc until it reports done, fails, or is
// stopped. Start is a no-op while a loop is active; Stop cancels the
// in-flight fetch, clears accumulated items and may be called any number
// of times.
type Poller[T any] struct {
	interval time.Duration
	fetch    FetchFunc[T]
	onUpdate func(items []T, done bool)

	mu         sync.Mutex
	active     bool
	generation uint64
	cancel     context.CancelFunc
	items      []T
	done       bool
	err        error
	finishedAt time.Time
}

// NewPoller creates a poller. onUpdate, if set, is called after every
// successful fetch of the current loop.
func NewPoller[T any](interval time.Duration, fetch FetchFunc[T], onUpdate func(items []T, done bool)) *Poller[T] {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller[T]{interval: interval, fetch: fetch, onUpdate: onUpdate}
}

// Start begins polling and reports whether a new loop was started
func (p *Poller[T]) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.active = true
	p.generation++
	p.cancel = cancel
	p.items = nil
	p.done = false
	p.err = nil
	p.finishedAt = time.Time{}

	go p.loop(loopCtx, p.generation)
	return true
}

// Stop cancels the active loop, if any, and clears accumulated state
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.active = false
	p.generation++
	p.items = nil
	p.done = false
	p.err = nil
	p.finishedAt = time.Time{}
}

// Active reports whether a loop is running
func (p *Poller[T]) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// FinishedAt returns when the last loop ended on its own, by finishing or
// failing. It is zero while a loop runs and after Stop.
func (p *Poller[T]) FinishedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finishedAt
}

// Snapshot returns the accumulated items, whether the source finished and
// the error that ended the loop, if any.
func (p *Poller[T]) Snapshot() ([]T, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...), p.done, p.err
}

func (p *Poller[T]) loop(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		items, done, err := p.fetch(ctx)
		if !p.record(generation, items, done, err) {
			return
		}
		if p.onUpdate != nil && err == nil {
			p.onUpdate(items, done)
		}
		if done || err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// record stores a fetch outcome if the loop is still current. It returns
// false when the loop was stopped or replaced.
func (p *Poller[T]) record(generation uint64, items []T, done bool, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if generation != p.generation {
		return false
	}
	if err != nil {
		logrus.WithError(err).Warn("polling stopped after fetch failure")
		p.err = err
		p.active = false
		p.finishedAt = time.Now()
		p.cancel()
		p.cancel = nil
		return true
	}
	p.items = items
	p.done = done
	if done {
		p.active = false
		p.finishedAt = time.Now()
		p.cancel()
		p.cancel = nil
	}
	return true
}
