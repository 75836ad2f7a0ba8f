// Package compute probes the host for acceleration backends and picks the
// device/precision combination a model load attempt should use. Selection is
// a bounded, monotonic chain: a combination that failed is never offered
// again for the same request.
package compute

// Backend is a compute execution target.
type Backend string

const (
	// BackendCUDA is a discrete GPU with its own memory.
	BackendCUDA Backend = "cuda"
	// BackendMetal is a unified-memory accelerator (Apple silicon).
	BackendMetal Backend = "metal"
	// BackendCPU is the always-available fallback.
	BackendCPU Backend = "cpu"
)

// Accelerated reports whether the backend is a GPU-class device.
func (b Backend) Accelerated() bool { return b == BackendCUDA || b == BackendMetal }

// Precision is the numeric format used for model arithmetic.
type Precision string

const (
	PrecisionFloat32  Precision = "float32"
	PrecisionFloat16  Precision = "float16"
	PrecisionBFloat16 Precision = "bfloat16"
)

// Reduced reports whether the precision is narrower than float32.
func (p Precision) Reduced() bool { return p != PrecisionFloat32 }

// Safer returns the next numerically safer precision. Float32 is terminal.
func (p Precision) Safer() Precision {
	if p.Reduced() {
		return PrecisionFloat32
	}
	return p
}

// Decision is one device/precision choice for a load attempt. Produced fresh
// per attempt and never persisted.
type Decision struct {
	Backend   Backend
	Precision Precision
	// ReducedParams requests a smaller context / fewer offloaded layers when
	// the chosen backend did not report enough memory for the profile.
	ReducedParams bool
	// BelowMinimum is set when no backend met the profile minimum and we
	// proceed on CPU anyway. Slow but correct; callers may warn.
	BelowMinimum bool
}

func (d Decision) String() string {
	s := string(d.Backend) + "/" + string(d.Precision)
	if d.ReducedParams {
		s += " (reduced)"
	}
	return s
}

// Requirements describes what a model profile needs from the host. Kept here
// so this package stays a leaf; internal/profile adapts its Profile into one.
type Requirements struct {
	MinMemMB      int
	MinAccelMemMB int
	// Preferred precision from the profile (usually reduced for speed).
	Precision Precision
	// FragileReduced marks families with known degenerate output at reduced
	// precision; the chain for them starts at float32 on accelerators.
	FragileReduced bool
}
