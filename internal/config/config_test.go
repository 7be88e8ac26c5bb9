package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.General.DataRoot != Default().General.DataRoot {
		t.Fatalf("expected default data root, got %q", cfg.General.DataRoot)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noetic.toml")
	body := `
[general]
data_root = "/tmp/noetic-data"

[strategos]
base_url = "http://workers.internal:9000"

[pipeline]
investigation_budget_max = 20
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.DataRoot != "/tmp/noetic-data" {
		t.Fatalf("data_root not overridden: %q", cfg.General.DataRoot)
	}
	if cfg.Strategos.BaseURL != "http://workers.internal:9000" {
		t.Fatalf("base_url not overridden: %q", cfg.Strategos.BaseURL)
	}
	if cfg.Pipeline.InvestigationBudgetMax != 20 {
		t.Fatalf("investigation_budget_max not overridden: %d", cfg.Pipeline.InvestigationBudgetMax)
	}
}

func TestValidateRejectsOutOfRangeBudget(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.InvestigationBudgetMax = 51
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for budget above 50")
	}
}

func TestValidateRejectsEmptyDataRoot(t *testing.T) {
	cfg := Default()
	cfg.General.DataRoot = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty data root")
	}
}

func TestClampInvestigationBudget(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.InvestigationBudgetMax = 10

	cases := []struct {
		requested int
		want      int
	}{
		{-5, 0},
		{0, 0},
		{5, 5},
		{10, 10},
		{50, 10},
	}
	for _, c := range cases {
		if got := cfg.ClampInvestigationBudget(c.requested); got != c.want {
			t.Errorf("ClampInvestigationBudget(%d) = %d, want %d", c.requested, got, c.want)
		}
	}
}

func TestProjectDirLayout(t *testing.T) {
	cfg := Default()
	cfg.General.DataRoot = "/data"
	if got, want := cfg.ProjectDir("abc123"), filepath.Join("/data", "projects", "abc123"); got != want {
		t.Fatalf("ProjectDir = %q, want %q", got, want)
	}
}
