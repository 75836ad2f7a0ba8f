package profile

import (
	"strings"
	"testing"

	"sqlgend/internal/compute"
)

func TestBuiltinsResolve(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	for _, id := range []string{"sqlcoder-7b-q4", "llama3-8b-q4", "mistral-7b-q4"} {
		p, ok := r.Get(id)
		if !ok {
			t.Fatalf("missing builtin %s", id)
		}
		if p.WeightsFile == "" || p.MinMemMB <= 0 {
			t.Fatalf("incomplete profile %s: %+v", id, p)
		}
	}
}

func TestSQLCoderIsFragileByDefault(t *testing.T) {
	r, _ := NewRegistry(nil)
	p, _ := r.Get("sqlcoder-7b-q4")
	if !p.FragileReduced {
		t.Fatal("sqlcoder must default to FragileReduced")
	}
	if !p.Load.SinglePass {
		t.Fatal("sqlcoder must use single-pass placement")
	}
}

func TestOverrideFlipsFragility(t *testing.T) {
	f := false
	r, err := NewRegistry([]Override{{ID: "sqlcoder-7b-q4", FragileReduced: &f}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, _ := r.Get("sqlcoder-7b-q4")
	if p.FragileReduced {
		t.Fatal("override did not apply")
	}
}

func TestOverrideDefinesNewProfile(t *testing.T) {
	r, err := NewRegistry([]Override{{
		ID: "my-llama", Family: "llama", WeightsFile: "my.gguf", MinMemMB: 3000, Precision: "bfloat16",
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, ok := r.Get("my-llama")
	if !ok {
		t.Fatal("new profile not registered")
	}
	if p.Precision != compute.PrecisionBFloat16 || p.WeightsFile != "my.gguf" {
		t.Fatalf("override fields lost: %+v", p)
	}
}

func TestOverrideRejectsUnknownFamily(t *testing.T) {
	if _, err := NewRegistry([]Override{{ID: "x", Family: "gpt5"}}); err == nil {
		t.Fatal("expected error for unknown family")
	}
}

func TestTemplatesDifferByFamilyAndContainSections(t *testing.T) {
	r, _ := NewRegistry(nil)
	rendered := map[string]bool{}
	for _, p := range r.List() {
		out := p.Template.Render("table t (id INTEGER)", "count rows")
		if !strings.Contains(out, "table t (id INTEGER)") || !strings.Contains(out, "count rows") {
			t.Fatalf("%s: prompt lost a section:\n%s", p.ID, out)
		}
		rendered[out] = true
	}
	if len(rendered) < 4 {
		t.Fatalf("expected distinct prompts per family, got %d unique", len(rendered))
	}
}

func TestDecodingForAttemptAndFragility(t *testing.T) {
	r, _ := NewRegistry(nil)
	llama, _ := r.Get("llama3-8b-q4")
	coder, _ := r.Get("sqlcoder-7b-q4")
	accelF16 := compute.Decision{Backend: compute.BackendCUDA, Precision: compute.PrecisionFloat16}

	d, mode := llama.DecodingFor(accelF16, 1)
	if !d.Greedy() || mode != NumericDefault {
		t.Fatalf("first attempt should be greedy/default: %+v mode=%v", d, mode)
	}
	d, mode = llama.DecodingFor(accelF16, 2)
	if d.Greedy() || mode != NumericSafe {
		t.Fatalf("retry must sample with safe numerics: %+v mode=%v", d, mode)
	}
	// Fragile family at reduced precision never decodes greedily.
	d, mode = coder.DecodingFor(accelF16, 1)
	if d.Greedy() || mode != NumericSafe {
		t.Fatalf("fragile family at f16 must sample with safe numerics: %+v mode=%v", d, mode)
	}
}

func TestReducedParamsCapOutput(t *testing.T) {
	r, _ := NewRegistry(nil)
	p, _ := r.Get("llama3-8b-q4")
	d, _ := p.DecodingFor(compute.Decision{
		Backend: compute.BackendCPU, Precision: compute.PrecisionFloat32, ReducedParams: true,
	}, 1)
	if d.MaxNewTokens > 128 {
		t.Fatalf("reduced mode should cap output, got %d", d.MaxNewTokens)
	}
}
