package state

import (
	"context"

	"obsnote/domain/core"
	"obsnote/domain/logpattern"
)

// Run is the handle of one analysis run of a paragraph. Once a newer run
// starts or the paragraph is reset, every update made through the handle
// is dropped and reported as not applied.
type Run struct {
	store  *Store
	id     core.ParagraphID
	token  uint64
	cancel context.CancelFunc
}

// Current reports whether no newer run has started
func (r *Run) Current() bool {
	return r.store.Get(r.id).Run == r.token
}

// Progress records that step of total has started
func (r *Run) Progress(step, total int) bool {
	_, ok := r.store.updateRun(r.id, r.token, progressed(step, total))
	return ok
}

// ApplyPartial publishes an intermediate result
func (r *Run) ApplyPartial(result interface{}, step logpattern.StepRecord) (bool, error) {
	raw, err := encode(result)
	if err != nil {
		return false, err
	}
	_, ok := r.store.updateRun(r.id, r.token, partial(raw, step))
	return ok, nil
}

// Complete publishes the final result
func (r *Run) Complete(result interface{}) (bool, error) {
	raw, err := encode(result)
	if err != nil {
		return false, err
	}
	_, ok := r.store.updateRun(r.id, r.token, completed(raw))
	return ok, nil
}

// Empty marks the run as finished without anything to show
func (r *Run) Empty(result interface{}) bool {
	raw, _ := encode(result)
	_, ok := r.store.updateRun(r.id, r.token, emptied(raw))
	return ok
}

// Fail marks the run as failed
func (r *Run) Fail(code string, err error) bool {
	_, ok := r.store.updateRun(r.id, r.token, failed(code, err))
	return ok
}

// Commit calls fn only while the run is current. A newer run cannot start
// and the paragraph cannot be reset until fn returns, so whatever fn
// persists is never older than what a later run persists.
func (r *Run) Commit(fn func() error) (bool, error) {
	l := r.store.runLock(r.id)
	l.Lock()
	defer l.Unlock()
	if !r.Current() {
		return false, nil
	}
	return true, fn()
}

// Finish releases the run's context. Safe to call more than once.
func (r *Run) Finish() {
	r.cancel()
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.runs[r.id] == r {
		delete(r.store.runs, r.id)
	}
}
