package engine

import (
	"time"

	"sqlgend/internal/compute"
)

// State represents lifecycle state of the engine/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Instance is one loaded model. It is exclusively owned by at most one
// in-flight generation at a time: genCh (size 1) is the in-flight slot,
// queueCh bounds waiters. The handle is closed only when nothing pins it:
// unload and eviction retire the instance, and the last releaser closes.
type Instance struct {
	ProfileID string
	State     State
	Decision  compute.Decision
	Handle    ModelHandle
	LastUsed  time.Time
	EstMemMB  int

	// refs counts generations holding a snapshot of Handle; doomed marks a
	// retired instance whose close is deferred to the last releaser. Both
	// are guarded by Engine.mu.
	refs   int
	doomed bool

	genCh   chan struct{}
	queueCh chan struct{}
}

// Request is one generation attempt. Attempt is 1-based; the orchestrator
// drives at most two attempts per question.
type Request struct {
	ProfileID     string
	Question      string
	SchemaContext string
	Attempt       int
}
