// Package profile holds the static description of every supported model:
// family, memory needs, prompt template, decoding policy, and loading
// strategy. Profiles are immutable after registry construction; the per
// family branching lives here as data so the rest of the pipeline does a
// single dispatch instead of scattering family conditionals.
package profile

import "fmt"

// Family tags a supported model lineage. The set is closed: loading
// strategy, prompt markers, and decoding quirks are keyed on it.
type Family string

const (
	FamilyLlama    Family = "llama"
	FamilyMistral  Family = "mistral"
	FamilySQLCoder Family = "sqlcoder"
	FamilyDeepSeek Family = "deepseek"
	FamilyPhi      Family = "phi"
)

var allFamilies = map[Family]bool{
	FamilyLlama:    true,
	FamilyMistral:  true,
	FamilySQLCoder: true,
	FamilyDeepSeek: true,
	FamilyPhi:      true,
}

// ParseFamily validates a family tag from configuration.
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if !allFamilies[f] {
		return "", fmt.Errorf("unknown model family: %q", s)
	}
	return f, nil
}

// LoadStrategy captures how a family's weights must be materialized.
type LoadStrategy struct {
	// SinglePass places the whole model on the chosen device in one step
	// instead of letting the runtime shard automatically. Some families are
	// slower or unstable under automatic placement.
	SinglePass bool
	// GPULayers is the number of layers to offload when accelerated.
	// -1 offloads everything.
	GPULayers int
}

// strategyFor returns the family's default load strategy.
func strategyFor(f Family) LoadStrategy {
	switch f {
	case FamilySQLCoder, FamilyDeepSeek:
		return LoadStrategy{SinglePass: true, GPULayers: -1}
	default:
		return LoadStrategy{SinglePass: false, GPULayers: -1}
	}
}

// fragileFor reports whether the family is known to emit degenerate
// (non-finite) output probabilities under deterministic decoding at reduced
// precision. Kept as a default; configuration may override per profile.
func fragileFor(f Family) bool { return f == FamilySQLCoder }
