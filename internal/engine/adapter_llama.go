//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaAdapter loads GGUF models in-process via go-llama.cpp.
type llamaAdapter struct {
	threads int
}

func NewLlamaAdapter(threads int) RuntimeAdapter {
	return &llamaAdapter{threads: threads}
}

func (a *llamaAdapter) Load(spec LoadSpec) (ModelHandle, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(spec.ContextSize),
	}
	if spec.Backend.Accelerated() {
		layers := spec.GPULayers
		if layers < 0 {
			layers = 1 << 10 // offload everything
		}
		mo = append(mo, llama.SetGPULayers(layers))
	}
	if spec.Precision.Reduced() {
		mo = append(mo, llama.EnableF16Memory)
	}
	if spec.SinglePass {
		// Direct single-step placement: load the whole file eagerly rather
		// than faulting pages in during the first generation.
		mo = append(mo, llama.SetMMap(false))
	}
	m, err := llama.New(spec.Path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: m, threads: a.threads, spec: spec}, nil
}

// llamaHandle owns one loaded model.
type llamaHandle struct {
	model   *llama.LLama
	threads int
	spec    LoadSpec
}

func (h *llamaHandle) Generate(ctx context.Context, prompt string, p GenParams, onToken func(Token) error) (string, error) {
	if h.model == nil {
		return "", errors.New("llama model not initialized")
	}
	var cbErr error
	h.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		// go-llama.cpp does not expose per-token probabilities; report
		// logprob 0 (p=1) so the watchdog only trips on runtimes that do.
		if err := onToken(Token{Text: tok, Logprob: 0}); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, p.MaxTokens)),
		llama.SetThreads(maxInt(1, h.threads)),
		llama.SetTemperature(p.Temperature),
		llama.SetPenalty(p.RepeatPenalty),
	}
	if p.Temperature > 0 {
		if p.TopP > 0 {
			po = append(po, llama.SetTopP(p.TopP))
		}
		if p.TopK > 0 {
			po = append(po, llama.SetTopK(p.TopK))
		}
		if p.Seed != 0 {
			po = append(po, llama.SetSeed(p.Seed))
		}
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	if !p.SafeNumerics && h.spec.Precision.Reduced() {
		po = append(po, llama.EnableF16KV)
	}
	text, err := h.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if cbErr != nil {
			return "", cbErr
		}
		return "", err
	}
	if cbErr != nil {
		return "", cbErr
	}
	return text, nil
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
