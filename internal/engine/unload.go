package engine

import "time"

// Unload drains a model instance and releases its weights.
//   - Sets the instance to draining so new work is rejected.
//   - Waits up to the drain timeout for in-flight and queued work.
//   - Closes the handle and removes the instance entry.
func (e *Engine) Unload(profileID string) error {
	if profileID == "" {
		return ErrProfileNotFound("(unspecified)")
	}
	e.mu.Lock()
	inst := e.instances[profileID]
	if inst == nil {
		e.mu.Unlock()
		return ErrProfileNotFound(profileID)
	}
	inst.State = StateDraining
	e.mu.Unlock()
	e.publisher.Publish(Event{Name: "unload_start", ProfileID: profileID, Fields: map[string]any{}})

	deadline := time.Now().Add(e.drainTimeout)
	for {
		e.mu.RLock()
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		e.mu.RUnlock()
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			e.publisher.Publish(Event{Name: "unload_timeout", ProfileID: profileID, Fields: map[string]any{
				"inflight": inflight, "queue": qlen,
			}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	e.mu.Lock()
	if e.instances[profileID] == inst {
		delete(e.instances, profileID)
		e.usedEstMB -= inst.EstMemMB
		if e.usedEstMB < 0 {
			e.usedEstMB = 0
		}
	}
	// A generation that outlived the drain timeout still pins the handle;
	// the last releaser closes it then.
	handle := e.retireLocked(inst)
	e.mu.Unlock()

	var err error
	if handle != nil {
		err = handle.Close()
	}
	e.publisher.Publish(Event{Name: "unload_done", ProfileID: profileID, Fields: map[string]any{}})
	return err
}
