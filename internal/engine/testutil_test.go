package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"sqlgend/internal/compute"
	"sqlgend/internal/profile"
	"sqlgend/internal/weights"
)

// fakeProber fixes the backend inventory for tests.
type fakeProber struct{ infos []compute.BackendInfo }

func (f fakeProber) Probe() []compute.BackendInfo { return f.infos }

func cpuOnlyProber() fakeProber {
	return fakeProber{infos: []compute.BackendInfo{{Backend: compute.BackendCPU, FreeMemMB: 32000}}}
}

func cudaProber() fakeProber {
	return fakeProber{infos: []compute.BackendInfo{
		{Backend: compute.BackendCUDA, FreeMemMB: 16000},
		{Backend: compute.BackendCPU, FreeMemMB: 32000},
	}}
}

// fakeHandle scripts generation behavior and asserts no re-entrancy.
type fakeHandle struct {
	generate func(ctx context.Context, prompt string, p GenParams, onToken func(Token) error) (string, error)

	inflight    int32
	maxInflight int32
	closed      atomic.Bool
	lastParams  GenParams
	lastPrompt  string
}

func (h *fakeHandle) Generate(ctx context.Context, prompt string, p GenParams, onToken func(Token) error) (string, error) {
	cur := atomic.AddInt32(&h.inflight, 1)
	defer atomic.AddInt32(&h.inflight, -1)
	for {
		max := atomic.LoadInt32(&h.maxInflight)
		if cur <= max || atomic.CompareAndSwapInt32(&h.maxInflight, max, cur) {
			break
		}
	}
	h.lastParams = p
	h.lastPrompt = prompt
	if h.generate != nil {
		return h.generate(ctx, prompt, p, onToken)
	}
	if err := onToken(Token{Text: "SELECT 1;", Logprob: -0.5}); err != nil {
		return "", err
	}
	return "SELECT 1;", nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeAdapter records load specs and can fail selectively.
type fakeAdapter struct {
	failWhen func(spec LoadSpec) error
	handle   func() *fakeHandle

	loads   []LoadSpec
	handles []*fakeHandle
}

func (a *fakeAdapter) Load(spec LoadSpec) (ModelHandle, error) {
	a.loads = append(a.loads, spec)
	if a.failWhen != nil {
		if err := a.failWhen(spec); err != nil {
			return nil, err
		}
	}
	var h *fakeHandle
	if a.handle != nil {
		h = a.handle()
	} else {
		h = &fakeHandle{}
	}
	a.handles = append(a.handles, h)
	return h, nil
}

// testRegistry defines small profiles backed by real temp files.
func testRegistry(t *testing.T, dir string, ids ...string) *profile.Registry {
	t.Helper()
	var overrides []profile.Override
	for _, id := range ids {
		fam := "llama"
		if id == "coder" {
			fam = "sqlcoder"
		}
		overrides = append(overrides, profile.Override{
			ID: id, Family: fam, WeightsFile: id + ".gguf", MinMemMB: 1,
		})
		if err := os.WriteFile(filepath.Join(dir, id+".gguf"), []byte("gguf"), 0o644); err != nil {
			t.Fatalf("write weights: %v", err)
		}
	}
	reg, err := profile.NewRegistry(overrides)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newTestEngine(t *testing.T, cfg Config, prober compute.Prober, ids ...string) (*Engine, *fakeAdapter) {
	t.Helper()
	dir := t.TempDir()
	cfg.Profiles = testRegistry(t, dir, ids...)
	cfg.Resolver = weights.NewDirResolver(dir)
	cfg.Selector = compute.NewSelector(prober)
	ad, _ := cfg.Adapter.(*fakeAdapter)
	if ad == nil {
		ad = &fakeAdapter{}
		cfg.Adapter = ad
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 2 * time.Second
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = time.Second
	}
	return New(cfg), ad
}
