package compute

import "testing"

// fakeProber returns a fixed backend inventory.
type fakeProber struct{ infos []BackendInfo }

func (f fakeProber) Probe() []BackendInfo { return f.infos }

func TestChainPrefersAcceleratorThenDegrades(t *testing.T) {
	s := NewSelector(fakeProber{infos: []BackendInfo{
		{Backend: BackendCUDA, FreeMemMB: 16000},
		{Backend: BackendCPU, FreeMemMB: 32000},
	}})
	chain := s.Chain(Requirements{MinMemMB: 4000, MinAccelMemMB: 6000, Precision: PrecisionFloat16})
	if len(chain) != 3 {
		t.Fatalf("expected 3 decisions, got %d: %v", len(chain), chain)
	}
	if chain[0].Backend != BackendCUDA || chain[0].Precision != PrecisionFloat16 {
		t.Fatalf("unexpected primary: %v", chain[0])
	}
	if chain[1].Backend != BackendCUDA || chain[1].Precision != PrecisionFloat32 {
		t.Fatalf("unexpected precision fallback: %v", chain[1])
	}
	if chain[2].Backend != BackendCPU || chain[2].Precision != PrecisionFloat32 {
		t.Fatalf("unexpected device fallback: %v", chain[2])
	}
}

func TestChainIsMonotonic(t *testing.T) {
	s := NewSelector(fakeProber{infos: []BackendInfo{
		{Backend: BackendMetal, FreeMemMB: 8000},
		{Backend: BackendCPU, FreeMemMB: 8000},
	}})
	chain := s.Chain(Requirements{MinMemMB: 2000, Precision: PrecisionFloat16})
	seen := map[string]bool{}
	cpuSeen := false
	for _, d := range chain {
		key := string(d.Backend) + "/" + string(d.Precision)
		if seen[key] {
			t.Fatalf("decision repeated: %s", key)
		}
		seen[key] = true
		if cpuSeen && d.Backend.Accelerated() {
			t.Fatalf("accelerator offered after CPU: %v", chain)
		}
		if d.Backend == BackendCPU {
			cpuSeen = true
		}
	}
}

func TestChainBelowMinimumStillOffersCPU(t *testing.T) {
	s := NewSelector(fakeProber{infos: []BackendInfo{
		{Backend: BackendCUDA, FreeMemMB: 1000},
		{Backend: BackendCPU, FreeMemMB: 1000},
	}})
	chain := s.Chain(Requirements{MinMemMB: 8000, MinAccelMemMB: 8000, Precision: PrecisionFloat16})
	if len(chain) == 0 {
		t.Fatal("chain must never be empty")
	}
	if chain[0].Backend != BackendCPU {
		t.Fatalf("expected CPU primary when nothing fits, got %v", chain[0])
	}
	if !chain[0].BelowMinimum {
		t.Fatalf("expected BelowMinimum warning flag: %v", chain[0])
	}
}

func TestChainFragileFamilyStartsAtFloat32OnAccelerator(t *testing.T) {
	s := NewSelector(fakeProber{infos: []BackendInfo{
		{Backend: BackendCUDA, FreeMemMB: 24000},
		{Backend: BackendCPU, FreeMemMB: 24000},
	}})
	chain := s.Chain(Requirements{MinMemMB: 4000, Precision: PrecisionFloat16, FragileReduced: true})
	if chain[0].Precision != PrecisionFloat32 {
		t.Fatalf("fragile family should start at float32, got %v", chain[0])
	}
	// float16 must not appear anywhere in the chain.
	for _, d := range chain {
		if d.Precision.Reduced() {
			t.Fatalf("reduced precision offered for fragile family: %v", chain)
		}
	}
}

func TestChainCPUOnlyHost(t *testing.T) {
	s := NewSelector(fakeProber{infos: []BackendInfo{{Backend: BackendCPU, FreeMemMB: 0}}})
	chain := s.Chain(Requirements{MinMemMB: 4000, Precision: PrecisionBFloat16})
	if chain[0].Backend != BackendCPU {
		t.Fatalf("expected CPU primary, got %v", chain[0])
	}
	if len(chain) != 2 {
		t.Fatalf("cpu-only chain should have precision fallback only, got %v", chain)
	}
	if chain[1].Precision != PrecisionFloat32 {
		t.Fatalf("expected float32 fallback, got %v", chain[1])
	}
}
