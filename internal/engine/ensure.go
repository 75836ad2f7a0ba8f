package engine

import (
	"context"
	"time"

	"sqlgend/internal/compute"
	"sqlgend/internal/profile"
	"sqlgend/internal/weights"
)

// EnsureInstance returns a ready instance for the profile, loading it if
// needed. Concurrent callers for the same profile share one load
// (singleflight); distinct profiles load independently.
func (e *Engine) EnsureInstance(ctx context.Context, profileID string) (*Instance, error) {
	prof, ok := e.profiles.Get(profileID)
	if !ok {
		return nil, ErrProfileNotFound(profileID)
	}

	// Fast path: already loaded.
	e.mu.RLock()
	inst := e.instances[profileID]
	ready := inst != nil && inst.State == StateReady
	e.mu.RUnlock()
	if ready {
		e.touch(inst)
		return inst, nil
	}

	v, err, _ := e.loads.Do(profileID, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have finished.
		e.mu.RLock()
		cur := e.instances[profileID]
		curReady := cur != nil && cur.State == StateReady
		e.mu.RUnlock()
		if curReady {
			return cur, nil
		}
		return e.loadInstance(ctx, prof)
	})
	if err != nil {
		return nil, err
	}
	inst = v.(*Instance)
	e.touch(inst)
	return inst, nil
}

// loadInstance walks the compute fallback chain: one load attempt per
// decision, strictly in order, never revisiting a failed combination. The
// chain length bounds the retries structurally (device x1, precision x1).
func (e *Engine) loadInstance(ctx context.Context, prof *profile.Profile) (*Instance, error) {
	path, err := e.resolver.Resolve(prof.WeightsFile)
	if err != nil {
		return nil, ErrLoad(prof.ID, err)
	}
	estMB := weights.SizeMB(path)

	if e.budgetMB > 0 {
		e.evictUntilFits(estMB)
	}

	chain := e.selector.Chain(prof.Requirements())
	var lastErr error
	for i, dec := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			e.publisher.Publish(Event{Name: "load_fallback", ProfileID: prof.ID, Fields: map[string]any{
				"decision": dec.String(), "cause": lastErr.Error(),
			}})
		}
		if dec.BelowMinimum {
			e.publisher.Publish(Event{Name: "below_minimum", ProfileID: prof.ID, Fields: map[string]any{
				"decision": dec.String(),
			}})
		}
		handle, err := e.adapter.Load(e.loadSpec(prof, dec, path))
		if err != nil {
			// The adapter contract guarantees no partial state on error;
			// just move to the next decision.
			lastErr = ErrLoad(prof.ID, err)
			continue
		}
		inst := &Instance{
			ProfileID: prof.ID,
			State:     StateReady,
			Decision:  dec,
			Handle:    handle,
			LastUsed:  time.Now(),
			EstMemMB:  estMB,
			genCh:     make(chan struct{}, 1),
			queueCh:   make(chan struct{}, e.maxQueueDepth),
		}
		e.mu.Lock()
		e.instances[prof.ID] = inst
		e.usedEstMB += estMB
		e.mu.Unlock()
		e.publisher.Publish(Event{Name: "loaded", ProfileID: prof.ID, Fields: map[string]any{
			"decision": dec.String(), "est_mem_mb": estMB,
		}})
		return inst, nil
	}
	return nil, ErrResourceExhausted(prof.ID, lastErr)
}

func (e *Engine) loadSpec(prof *profile.Profile, dec compute.Decision, path string) LoadSpec {
	ctxSize := prof.ContextSize
	if dec.ReducedParams && ctxSize > 2048 {
		ctxSize = ctxSize / 2
	}
	gpuLayers := 0
	if dec.Backend.Accelerated() {
		gpuLayers = prof.Load.GPULayers
	}
	return LoadSpec{
		Path:        path,
		Backend:     dec.Backend,
		Precision:   dec.Precision,
		ContextSize: ctxSize,
		Threads:     e.threads,
		GPULayers:   gpuLayers,
		SinglePass:  prof.Load.SinglePass,
	}
}

func (e *Engine) touch(inst *Instance) {
	e.mu.Lock()
	inst.LastUsed = time.Now()
	e.mu.Unlock()
}
