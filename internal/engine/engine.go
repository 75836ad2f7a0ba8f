// Package engine owns the process-wide model cache and everything that
// touches a loaded model: device/precision fallback during load, bounded
// admission per instance, generation with numeric-instability detection,
// and eviction within a memory budget. It is structured into small files by
// concern:
//
//   - engine.go: Engine type, Config, constructor, status reporting.
//   - types.go: State, Instance, Request.
//   - errors.go: error types and Is* helpers.
//   - adapter.go: RuntimeAdapter/ModelHandle seam over the model runtime.
//   - ensure.go: instance load with the compute fallback chain.
//   - admission.go: per-instance queueing, single in-flight generation.
//   - generate.go: one generation attempt with instability watchdog.
//   - evict.go / unload.go: memory-budget eviction and drain-aware unload.
//
// Build tags: the real llama.cpp runtime is compiled with `-tags=llama`
// (adapter_llama.go); default builds get a fail-fast stub (adapter_stub.go).
package engine

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sqlgend/internal/compute"
	"sqlgend/internal/profile"
	"sqlgend/internal/weights"
	"sqlgend/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 16
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 10 * time.Second
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	Profiles *profile.Registry
	Resolver weights.Resolver
	Selector *compute.Selector
	Adapter  RuntimeAdapter
	// BudgetMB bounds the summed estimated memory of loaded instances
	// (0 = unlimited); MarginMB is kept free below the budget.
	BudgetMB      int
	MarginMB      int
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	Threads       int
	Publisher     EventPublisher
}

// Engine is the process-wide model cache with explicit lifecycle.
type Engine struct {
	mu        sync.RWMutex
	state     State
	err       string
	instances map[string]*Instance
	usedEstMB int

	profiles *profile.Registry
	resolver weights.Resolver
	selector *compute.Selector
	adapter  RuntimeAdapter

	budgetMB      int
	marginMB      int
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration
	threads       int

	publisher EventPublisher
	loads     singleflight.Group
}

// New constructs an Engine, applying package defaults for unset tunables.
func New(cfg Config) *Engine {
	e := &Engine{
		state:     StateReady,
		instances: make(map[string]*Instance),
		profiles:  cfg.Profiles,
		resolver:  cfg.Resolver,
		selector:  cfg.Selector,
		adapter:   cfg.Adapter,
		budgetMB:  cfg.BudgetMB,
		marginMB:  cfg.MarginMB,
		threads:   cfg.Threads,
		publisher: cfg.Publisher,
	}
	if e.selector == nil {
		e.selector = compute.NewSelector(nil)
	}
	if e.adapter == nil {
		e.adapter = NewLlamaAdapter(cfg.Threads)
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	e.maxQueueDepth = cfg.MaxQueueDepth
	if e.maxQueueDepth <= 0 {
		e.maxQueueDepth = defaultMaxQueueDepth
	}
	e.maxWait = cfg.MaxWait
	if e.maxWait <= 0 {
		e.maxWait = defaultMaxWait
	}
	e.drainTimeout = cfg.DrainTimeout
	if e.drainTimeout <= 0 {
		e.drainTimeout = defaultDrainTimeout
	}
	return e
}

// Profiles exposes the read-only profile registry.
func (e *Engine) Profiles() *profile.Registry { return e.profiles }

// Ready reports whether the engine can take requests.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != StateError
}

// Status builds a detailed status response for /status.
func (e *Engine) Status() types.StatusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()
	resp := types.StatusResponse{
		State:    string(e.state),
		BudgetMB: e.budgetMB,
		UsedMB:   e.usedEstMB,
		MarginMB: e.marginMB,
		Error:    e.err,
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(e.instances))
	for _, inst := range e.instances {
		resp.Instances = append(resp.Instances, types.InstanceStatus{
			ProfileID: inst.ProfileID,
			State:     string(inst.State),
			Backend:   string(inst.Decision.Backend),
			Precision: string(inst.Decision.Precision),
			LastUsed:  inst.LastUsed.Unix(),
			EstMemMB:  inst.EstMemMB,
			QueueLen:  len(inst.queueCh),
			Inflight:  len(inst.genCh),
		})
	}
	sort.Slice(resp.Instances, func(i, j int) bool {
		return resp.Instances[i].ProfileID < resp.Instances[j].ProfileID
	})
	return resp
}

// Decision reports the compute decision of a loaded instance.
func (e *Engine) Decision(profileID string) (compute.Decision, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[profileID]
	if !ok {
		return compute.Decision{}, false
	}
	return inst.Decision, true
}

// Close unloads every instance. The engine should not be used afterwards.
func (e *Engine) Close() error {
	e.mu.RLock()
	ids := make([]string, 0, len(e.instances))
	for id := range e.instances {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	var firstErr error
	for _, id := range ids {
		if err := e.Unload(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
