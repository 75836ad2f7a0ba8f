package engine

import (
	"context"

	"sqlgend/internal/compute"
)

// LoadSpec tells the runtime how to materialize one model.
type LoadSpec struct {
	Path        string
	Backend     compute.Backend
	Precision   compute.Precision
	ContextSize int
	Threads     int
	// GPULayers to offload; 0 on CPU, -1 for all layers.
	GPULayers int
	// SinglePass places the model on the device in one step instead of
	// automatic sharding (required by some families).
	SinglePass bool
}

// RuntimeAdapter abstracts the model runtime. Load must either return a
// usable handle or an error with no partially-loaded state left behind.
type RuntimeAdapter interface {
	Load(spec LoadSpec) (ModelHandle, error)
}

// Token is one decoded token with its log-probability as reported by the
// runtime. Runtimes that cannot report a figure use 0 (probability 1).
type Token struct {
	Text    string
	Logprob float64
}

// GenParams are the per-attempt generation parameters handed to the runtime.
type GenParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Seed          int
	RepeatPenalty float32
	Stop          []string
	// SafeNumerics forces float32 logit accumulation where the runtime
	// supports it.
	SafeNumerics bool
}

// ModelHandle is a loaded model+tokenizer pair. Not safe for concurrent
// Generate calls; the engine serializes access per instance.
type ModelHandle interface {
	// Generate produces a completion, invoking onToken per decoded token.
	// A non-nil error from onToken aborts the generation and is returned.
	// Implementations must return promptly when ctx is canceled.
	Generate(ctx context.Context, prompt string, p GenParams, onToken func(Token) error) (string, error)
	// Close releases the weights. The handle is unusable afterwards.
	Close() error
}
