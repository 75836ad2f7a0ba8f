package engine

import "time"

// evictUntilFits removes LRU idle instances until requiredMB fits within
// budget + margin. Instances with in-flight or queued work are never
// evicted. Gives up after a bounded wall-clock interval rather than
// blocking a load forever.
func (e *Engine) evictUntilFits(requiredMB int) {
	deadline := time.Now().Add(1 * time.Second)
	for {
		e.mu.Lock()
		if e.usedEstMB+requiredMB+e.marginMB <= e.budgetMB {
			e.mu.Unlock()
			return
		}
		var lru *Instance
		for _, inst := range e.instances {
			if len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			e.mu.Unlock()
			return
		}
		delete(e.instances, lru.ProfileID)
		e.usedEstMB -= lru.EstMemMB
		if e.usedEstMB < 0 {
			e.usedEstMB = 0
		}
		// A caller that already looked the instance up but has not pinned
		// the handle yet sees it gone and loads again.
		handle := e.retireLocked(lru)
		e.mu.Unlock()

		if handle != nil {
			_ = handle.Close()
		}
		e.publisher.Publish(Event{Name: "evicted", ProfileID: lru.ProfileID, Fields: map[string]any{
			"est_mem_mb": lru.EstMemMB,
		}})

		if time.Now().After(deadline) {
			return
		}
	}
}
