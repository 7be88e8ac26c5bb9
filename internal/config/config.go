// Package config loads and validates the Noetic TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root Noetic configuration.
type Config struct {
	General   General   `toml:"general"`
	Strategos Strategos `toml:"strategos"`
	Pipeline  Pipeline  `toml:"pipeline"`
	API       API       `toml:"api"`
	Cost      Cost      `toml:"cost"`
}

// General holds process-wide settings.
type General struct {
	DataRoot    string `toml:"data_root"`    // root of <data-root>/projects/<id>/...
	PathwayDir  string `toml:"pathway_dir"`  // directory of pathway definition JSON files
	LogLevel    string `toml:"log_level"`    // debug, info, warn, error
	LedgerPath  string `toml:"ledger_path"`  // derived SQLite operational ledger (rebuildable)
}

// Strategos configures the narrow client to the external worker runtime.
type Strategos struct {
	BaseURL            string   `toml:"base_url"`
	DefaultTimeout      Duration `toml:"default_timeout"`
	MaxRetries          int      `toml:"max_retries"`
	RetryInitialBackoff Duration `toml:"retry_initial_backoff"`
	RetryMaxBackoff     Duration `toml:"retry_max_backoff"`
	CircuitFailureRatio float64  `toml:"circuit_failure_ratio"`
	CircuitMinRequests  uint32   `toml:"circuit_min_requests"`
}

// Pipeline configures the phase state machine's resource envelope.
type Pipeline struct {
	InvestigationBudgetMax  int      `toml:"investigation_budget_max"`  // hard cap enforced on project.config.investigationBudget ([0,50] per spec)
	ClassifyConcurrency     int      `toml:"classify_concurrency"`      // 3-5 per spec
	PerWorkerTimeoutDefault Duration `toml:"per_worker_timeout_default"` // default 15m
	StuckGrace              Duration `toml:"stuck_grace"`               // extra grace beyond timeout before a ledger row is considered stuck
	PriorResearchMaxNodes   int      `toml:"prior_research_max_nodes"`  // N recommendation/product/solution nodes per matched prior project
	EventBufferSize         int      `toml:"event_buffer_size"`         // per-subscriber channel buffer
}

// API configures the bind address for a (separately implemented) transport. Unused by
// the core itself, kept so operators can carry one config file end to end.
type API struct {
	Bind string `toml:"bind"`
}

// Cost configures advisory, non-blocking cost observation.
type Cost struct {
	DailyCapUSD        float64 `toml:"daily_cap_usd"`
	InputCostPerMille   float64 `toml:"input_cost_per_mille"`
	OutputCostPerMille  float64 `toml:"output_cost_per_mille"`
}

// Default returns a Config with sane defaults, used when no file is found.
func Default() *Config {
	return &Config{
		General: General{
			DataRoot:   "./data",
			PathwayDir: "./pathways",
			LogLevel:   "info",
			LedgerPath: "./data/ledger.db",
		},
		Strategos: Strategos{
			BaseURL:             "http://127.0.0.1:8900",
			DefaultTimeout:      Duration{15 * time.Minute},
			MaxRetries:          3,
			RetryInitialBackoff: Duration{2 * time.Second},
			RetryMaxBackoff:     Duration{30 * time.Second},
			CircuitFailureRatio: 0.6,
			CircuitMinRequests:  5,
		},
		Pipeline: Pipeline{
			InvestigationBudgetMax:  50,
			ClassifyConcurrency:     4,
			PerWorkerTimeoutDefault: Duration{15 * time.Minute},
			StuckGrace:              Duration{2 * time.Minute},
			PriorResearchMaxNodes:   5,
			EventBufferSize:         64,
		},
		API: API{Bind: ":8081"},
	}
}

// Load reads and validates a TOML config file, filling unset fields from Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would violate spec invariants.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.General.DataRoot) == "" {
		return fmt.Errorf("general.data_root is required")
	}
	if c.Pipeline.InvestigationBudgetMax < 0 || c.Pipeline.InvestigationBudgetMax > 50 {
		return fmt.Errorf("pipeline.investigation_budget_max must be in [0,50], got %d", c.Pipeline.InvestigationBudgetMax)
	}
	if strings.TrimSpace(c.Strategos.BaseURL) == "" {
		return fmt.Errorf("strategos.base_url is required")
	}
	return nil
}

// Clone returns a deep-enough copy safe to hand to a concurrent reader.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// ProjectDir returns <data-root>/projects/<id>.
func (c *Config) ProjectDir(id string) string {
	return filepath.Join(c.General.DataRoot, "projects", id)
}

// SourcesPath returns <data-root>/sources.json.
func (c *Config) SourcesPath() string {
	return filepath.Join(c.General.DataRoot, "sources.json")
}

// ResearchIndexPath returns <data-root>/research-index.json.
func (c *Config) ResearchIndexPath() string {
	return filepath.Join(c.General.DataRoot, "research-index.json")
}

// ClampInvestigationBudget clamps a requested budget into [0, configured max].
func (c *Config) ClampInvestigationBudget(requested int) int {
	if requested < 0 {
		return 0
	}
	if requested > c.Pipeline.InvestigationBudgetMax {
		return c.Pipeline.InvestigationBudgetMax
	}
	return requested
}
