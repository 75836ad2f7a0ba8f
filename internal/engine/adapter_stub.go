//go:build !llama

package engine

import "errors"

// This file provides a no-CGO stub for the llama adapter, compiled when the
// 'llama' build tag is NOT set. Default builds and CI stay CGO-free; the
// real adapter lives in adapter_llama.go (tagged 'llama').

type llamaAdapter struct {
	threads int
}

// NewLlamaAdapter returns the runtime adapter for this build. Without the
// 'llama' tag it refuses to load rather than mocking inference.
func NewLlamaAdapter(threads int) RuntimeAdapter {
	return &llamaAdapter{threads: threads}
}

func (a *llamaAdapter) Load(spec LoadSpec) (ModelHandle, error) {
	return nil, errors.New("llama runtime not built (missing 'llama' build tag)")
}
