package profile

import (
	"fmt"
	"sort"

	"sqlgend/internal/compute"
)

// Profile is the immutable description of one supported model.
type Profile struct {
	ID          string
	Family      Family
	WeightsFile string // filename under the weights directory
	MinMemMB    int
	RecMemMB    int
	// MinAccelMemMB is the accelerator-memory floor; 0 means MinMemMB applies.
	MinAccelMemMB int
	Precision     compute.Precision
	ContextSize   int
	// FragileReduced marks profiles with known numeric instability at
	// reduced precision (see DecodingFor). Defaults from the family,
	// overridable in configuration.
	FragileReduced bool
	Template       PromptTemplate
	Params         ParamPolicy
	Load           LoadStrategy
}

// Requirements adapts the profile for the compute selector.
func (p *Profile) Requirements() compute.Requirements {
	return compute.Requirements{
		MinMemMB:       p.MinMemMB,
		MinAccelMemMB:  p.MinAccelMemMB,
		Precision:      p.Precision,
		FragileReduced: p.FragileReduced,
	}
}

// Override adjusts a built-in profile or defines a new one from
// configuration. Zero fields keep the existing value.
type Override struct {
	ID             string `json:"id" yaml:"id" toml:"id"`
	Family         string `json:"family" yaml:"family" toml:"family"`
	WeightsFile    string `json:"weights_file" yaml:"weights_file" toml:"weights_file"`
	MinMemMB       int    `json:"min_mem_mb" yaml:"min_mem_mb" toml:"min_mem_mb"`
	MinAccelMemMB  int    `json:"min_accel_mem_mb" yaml:"min_accel_mem_mb" toml:"min_accel_mem_mb"`
	Precision      string `json:"precision" yaml:"precision" toml:"precision"`
	ContextSize    int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	FragileReduced *bool  `json:"fragile_reduced" yaml:"fragile_reduced" toml:"fragile_reduced"`
}

// Registry is the read-only profile catalog, built once at process start.
type Registry struct {
	byID map[string]*Profile
}

// NewRegistry builds the catalog from built-ins plus configuration
// overrides. Overrides referencing unknown families fail loudly.
func NewRegistry(overrides []Override) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Profile)}
	for _, p := range builtins() {
		r.byID[p.ID] = p
	}
	for _, o := range overrides {
		if o.ID == "" {
			return nil, fmt.Errorf("profile override missing id")
		}
		p, ok := r.byID[o.ID]
		if !ok {
			if o.Family == "" {
				return nil, fmt.Errorf("profile %q: new profiles must name a family", o.ID)
			}
			fam, err := ParseFamily(o.Family)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", o.ID, err)
			}
			p = newProfile(o.ID, fam, o.ID+".gguf", 4096, 8192, compute.PrecisionFloat16)
			r.byID[o.ID] = p
		}
		if err := applyOverride(p, o); err != nil {
			return nil, fmt.Errorf("profile %q: %w", o.ID, err)
		}
	}
	return r, nil
}

func applyOverride(p *Profile, o Override) error {
	if o.Family != "" {
		fam, err := ParseFamily(o.Family)
		if err != nil {
			return err
		}
		p.Family = fam
		p.Template = templateFor(fam)
		p.Params = policyFor(fam)
		p.Load = strategyFor(fam)
		p.FragileReduced = fragileFor(fam)
	}
	if o.WeightsFile != "" {
		p.WeightsFile = o.WeightsFile
	}
	if o.MinMemMB > 0 {
		p.MinMemMB = o.MinMemMB
	}
	if o.MinAccelMemMB > 0 {
		p.MinAccelMemMB = o.MinAccelMemMB
	}
	if o.Precision != "" {
		switch compute.Precision(o.Precision) {
		case compute.PrecisionFloat32, compute.PrecisionFloat16, compute.PrecisionBFloat16:
			p.Precision = compute.Precision(o.Precision)
		default:
			return fmt.Errorf("unknown precision: %q", o.Precision)
		}
	}
	if o.ContextSize > 0 {
		p.ContextSize = o.ContextSize
	}
	if o.FragileReduced != nil {
		p.FragileReduced = *o.FragileReduced
	}
	return nil
}

// Get returns the profile for id.
func (r *Registry) Get(id string) (*Profile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// List returns all profiles sorted by id.
func (r *Registry) List() []*Profile {
	out := make([]*Profile, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newProfile(id string, fam Family, weights string, minMB, recMB int, prec compute.Precision) *Profile {
	return &Profile{
		ID:             id,
		Family:         fam,
		WeightsFile:    weights,
		MinMemMB:       minMB,
		RecMemMB:       recMB,
		Precision:      prec,
		ContextSize:    4096,
		FragileReduced: fragileFor(fam),
		Template:       templateFor(fam),
		Params:         policyFor(fam),
		Load:           strategyFor(fam),
	}
}

// builtins covers the models the project ships prompt/decoding policies for.
// Memory floors are file-size based estimates for the quantizations named.
func builtins() []*Profile {
	return []*Profile{
		newProfile("sqlcoder-7b-q4", FamilySQLCoder, "sqlcoder-7b.Q4_K_M.gguf", 5120, 8192, compute.PrecisionFloat16),
		newProfile("llama3-8b-q4", FamilyLlama, "Meta-Llama-3-8B-Instruct.Q4_K_M.gguf", 5632, 9216, compute.PrecisionFloat16),
		newProfile("mistral-7b-q4", FamilyMistral, "Mistral-7B-Instruct-v0.3.Q4_K_M.gguf", 5120, 8192, compute.PrecisionFloat16),
		newProfile("deepseek-coder-6.7b-q4", FamilyDeepSeek, "deepseek-coder-6.7b-instruct.Q4_K_M.gguf", 4608, 8192, compute.PrecisionFloat16),
		newProfile("phi3-mini-q4", FamilyPhi, "Phi-3-mini-4k-instruct.Q4_K_M.gguf", 2560, 4096, compute.PrecisionFloat16),
	}
}
