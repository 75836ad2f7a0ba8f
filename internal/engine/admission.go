package engine

import (
	"context"
	"errors"
	"time"
)

// errInstanceReleased means the instance was unloaded or evicted between
// lookup and handle acquisition; the caller should load again.
var errInstanceReleased = errors.New("model instance released")

// acquire reserves a queue slot and then the single in-flight slot for the
// instance. Returns a release func to be deferred. Generation on a loaded
// model is never interleaved: at most one holder of genCh at a time.
func (e *Engine) acquire(ctx context.Context, inst *Instance) (func(), error) {
	if inst == nil {
		return func() {}, ErrProfileNotFound("(nil instance)")
	}
	e.mu.RLock()
	draining := inst.State == StateDraining
	e.mu.RUnlock()
	if draining {
		return func() {}, tooBusyError{profileID: inst.ProfileID}
	}

	// Reserve a queue slot with timeout.
	select {
	case inst.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(e.maxWait):
		return func() {}, tooBusyError{profileID: inst.ProfileID}
	}

	// Wait for the in-flight slot.
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		e.touch(inst)
		return func() { <-inst.genCh; <-inst.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(e.maxWait):
		return func() {}, tooBusyError{profileID: inst.ProfileID}
	}
}

// retain snapshots the instance handle for one generation and pins it
// against close. Call only while holding the instance's genCh slot.
func (e *Engine) retain(inst *Instance) (ModelHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst.State == StateDraining {
		return nil, tooBusyError{profileID: inst.ProfileID}
	}
	if inst.Handle == nil {
		return nil, errInstanceReleased
	}
	inst.refs++
	return inst.Handle, nil
}

// releaseHandle unpins the handle; the last holder of a retired instance
// closes the weights.
func (e *Engine) releaseHandle(inst *Instance) {
	e.mu.Lock()
	inst.refs--
	var h ModelHandle
	if inst.refs == 0 && inst.doomed {
		h = inst.Handle
		inst.Handle = nil
		inst.doomed = false
	}
	e.mu.Unlock()
	if h != nil {
		_ = h.Close()
	}
}

// retireLocked detaches the handle so the caller can close it. While
// generations still pin the handle, ownership of the close passes to the
// last releaseHandle and nil is returned. Caller holds e.mu.
func (e *Engine) retireLocked(inst *Instance) ModelHandle {
	if inst.refs > 0 {
		inst.doomed = true
		return nil
	}
	h := inst.Handle
	inst.Handle = nil
	return h
}
