package compute

// Selector turns probed backends plus profile requirements into the ordered
// list of decisions a loader may try. The list is the whole fallback budget:
// one precision step and one device step at most, so retry bounds are
// structural rather than counted at runtime.
type Selector struct {
	prober Prober
}

func NewSelector(p Prober) *Selector {
	if p == nil {
		p = NewHostProber()
	}
	return &Selector{prober: p}
}

// preference order for the primary backend.
var backendOrder = []Backend{BackendCUDA, BackendMetal, BackendCPU}

// Chain returns the decisions to try, best first. It is never empty: when no
// backend meets the profile minimum the chain degrades to CPU with
// BelowMinimum set, so a slow-but-correct path always exists.
func (s *Selector) Chain(req Requirements) []Decision {
	infos := s.prober.Probe()
	byBackend := make(map[Backend]BackendInfo, len(infos))
	for _, bi := range infos {
		byBackend[bi.Backend] = bi
	}

	primary, belowMin := s.pickPrimary(byBackend, req)

	prec := req.Precision
	if prec == "" {
		prec = PrecisionFloat16
	}
	if req.FragileReduced && prec.Reduced() && primary.Accelerated() {
		// Known-degenerate combination; start at float32 instead of
		// discovering the instability mid-generation.
		prec = PrecisionFloat32
	}

	var chain []Decision
	push := func(d Decision) {
		for _, prev := range chain {
			if prev.Backend == d.Backend && prev.Precision == d.Precision {
				return
			}
		}
		chain = append(chain, d)
	}

	push(Decision{Backend: primary, Precision: prec, BelowMinimum: belowMin, ReducedParams: belowMin})
	// Precision fallback on the same device.
	push(Decision{Backend: primary, Precision: prec.Safer(), BelowMinimum: belowMin, ReducedParams: belowMin})
	// Device fallback: CPU at the safe precision.
	push(Decision{Backend: BackendCPU, Precision: PrecisionFloat32, BelowMinimum: belowMin, ReducedParams: belowMin})
	return chain
}

// pickPrimary returns the preferred backend that reports enough memory, or
// CPU with belowMin=true when nothing qualifies. A probe that cannot report
// a figure (0) is not disqualified; the loader finds out the hard way and
// the chain still ends on CPU.
func (s *Selector) pickPrimary(byBackend map[Backend]BackendInfo, req Requirements) (Backend, bool) {
	for _, b := range backendOrder {
		bi, ok := byBackend[b]
		if !ok {
			continue
		}
		need := req.MinMemMB
		if b.Accelerated() && req.MinAccelMemMB > 0 {
			need = req.MinAccelMemMB
		}
		if bi.FreeMemMB == 0 || bi.FreeMemMB >= need {
			return b, false
		}
	}
	return BackendCPU, true
}
