package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml",
		"addr: :9999\nweights_dir: /tmp\nmem_budget_mb: 123\nmem_margin_mb: 7\ndefault_profile: sqlcoder-7b-q4\n"+
			"convert_timeout_sec: 60\ndb:\n  driver: sqlite\n  dsn: /tmp/app.db\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.WeightsDir != "/tmp" || cfg.MemBudgetMB != 123 || cfg.MemMarginMB != 7 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DefaultProfile != "sqlcoder-7b-q4" || cfg.ConvertTimeoutSec != 60 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "/tmp/app.db" {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
}

func TestLoadYAMLProfileOverrides(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml",
		"profiles:\n  - id: sqlcoder-7b-q4\n    fragile_reduced: false\n  - id: custom-llama\n    family: llama\n    weights_file: custom.gguf\n    min_mem_mb: 6000\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Profiles) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(cfg.Profiles))
	}
	if cfg.Profiles[0].ID != "sqlcoder-7b-q4" || cfg.Profiles[0].FragileReduced == nil || *cfg.Profiles[0].FragileReduced {
		t.Fatalf("unexpected first override: %+v", cfg.Profiles[0])
	}
	if cfg.Profiles[1].Family != "llama" || cfg.Profiles[1].WeightsFile != "custom.gguf" || cfg.Profiles[1].MinMemMB != 6000 {
		t.Fatalf("unexpected second override: %+v", cfg.Profiles[1])
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"addr":":7070","weights_dir":"/m","mem_budget_mb":42,"mem_margin_mb":2,"default_profile":"mistral-7b-q4","db":{"driver":"postgres","dsn":"postgres://localhost/app","schema":"sales"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.WeightsDir != "/m" || cfg.MemBudgetMB != 42 || cfg.MemMarginMB != 2 || cfg.DefaultProfile != "mistral-7b-q4" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.Schema != "sales" {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml",
		"addr=\":8081\"\nweights_dir=\"/x\"\nmem_budget_mb=9\nmem_margin_mb=1\ndefault_profile=\"phi3-mini-q4\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.WeightsDir != "/x" || cfg.MemBudgetMB != 9 || cfg.MemMarginMB != 1 || cfg.DefaultProfile != "phi3-mini-q4" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}
