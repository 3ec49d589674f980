package ui

import (
	"context"
	"sync"
)

// runTracker counts analyses started in the background
type runTracker struct {
	wg sync.WaitGroup
}

func newRunTracker() *runTracker {
	return &runTracker{}
}

func (t *runTracker) Go(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

// wait blocks until every run finished or ctx is done
func (t *runTracker) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
