package profile

import "sqlgend/internal/compute"

// Decoding is one set of generation parameters. Temperature 0 means greedy
// decoding (sampling disabled).
type Decoding struct {
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	MaxNewTokens  int
	Seed          int
}

// Greedy reports whether sampling is disabled.
func (d Decoding) Greedy() bool { return d.Temperature <= 0 }

// NumericMode asks the runtime for a particular arithmetic behavior during
// generation, independent of the precision the weights were loaded at.
type NumericMode int

const (
	// NumericDefault uses whatever the loaded precision implies.
	NumericDefault NumericMode = iota
	// NumericSafe forces float32 accumulation for logits. Slower, but the
	// remedy for families that produce non-finite probabilities otherwise.
	NumericSafe
)

// ParamPolicy is a family's decoding policy.
type ParamPolicy struct {
	// Primary is the first-attempt decoding on accelerated or constrained
	// backends: deterministic, conservatively capped output.
	Primary Decoding
	// Safe is the fallback decoding after a failed attempt: sampling based,
	// paired with NumericSafe.
	Safe Decoding
}

func policyFor(f Family) ParamPolicy {
	p := ParamPolicy{
		Primary: Decoding{Temperature: 0, MaxNewTokens: 256, RepeatPenalty: 1.1},
		Safe:    Decoding{Temperature: 0.3, TopP: 0.9, TopK: 40, MaxNewTokens: 256, RepeatPenalty: 1.1, Seed: 7},
	}
	if f == FamilyDeepSeek || f == FamilySQLCoder {
		// Code-tuned families ramble less when capped tighter.
		p.Primary.MaxNewTokens = 192
		p.Safe.MaxNewTokens = 192
	}
	return p
}

// DecodingFor picks the parameter set for one generation attempt, keyed by
// the loaded decision and the 1-based attempt counter. Fragile families at
// reduced precision never get deterministic decoding: that combination is
// the observed trigger for degenerate output distributions.
func (p *Profile) DecodingFor(dec compute.Decision, attempt int) (Decoding, NumericMode) {
	if attempt > 1 {
		return p.Params.Safe, NumericSafe
	}
	if p.FragileReduced && dec.Precision.Reduced() {
		return p.Params.Safe, NumericSafe
	}
	d := p.Params.Primary
	if dec.ReducedParams && d.MaxNewTokens > 128 {
		d.MaxNewTokens = 128
	}
	return d, NumericDefault
}
