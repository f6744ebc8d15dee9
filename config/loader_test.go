package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Orchestrator.MaxHandoffs != 2 {
		t.Fatalf("expected default max_handoffs=2, got %d", cfg.Orchestrator.MaxHandoffs)
	}
	if cfg.Orchestrator.DefaultAgent != "customer_mgmt" {
		t.Fatalf("unexpected default agent: %s", cfg.Orchestrator.DefaultAgent)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
orchestrator:
  max_handoffs: 1
  default_agent: product_mgmt
  gap_min_message_len: 40
llm:
  model: test-model
  timeout: 30s
database:
  driver: postgres
  host: db.internal
  port: 5433
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Orchestrator.MaxHandoffs != 1 || cfg.Orchestrator.DefaultAgent != "product_mgmt" {
		t.Fatalf("yaml overrides not applied: %#v", cfg.Orchestrator)
	}
	if cfg.Orchestrator.GapMinMessageLen != 40 {
		t.Fatalf("expected gap_min_message_len=40, got %d", cfg.Orchestrator.GapMinMessageLen)
	}
	if cfg.LLM.Model != "test-model" || cfg.LLM.Timeout != 30*time.Second {
		t.Fatalf("llm overrides not applied: %#v", cfg.LLM)
	}
	// Untouched sections keep defaults.
	if cfg.Server.HTTPPort != 8080 {
		t.Fatalf("unrelated default lost: %d", cfg.Server.HTTPPort)
	}
	if cfg.Database.DSN() != "host=db.internal port=5433 user= password= dbname= sslmode=disable" {
		t.Fatalf("unexpected DSN: %q", cfg.Database.DSN())
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SWITCHBOARD_ORCHESTRATOR_MAX_HANDOFFS", "3")
	t.Setenv("SWITCHBOARD_ORCHESTRATOR_READ_ONLY_CAPABILITIES", "list_customers, transfer_conversation")
	t.Setenv("SWITCHBOARD_LLM_API_KEY", "sk-test")
	t.Setenv("SWITCHBOARD_REDIS_ENABLED", "true")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Orchestrator.MaxHandoffs != 3 {
		t.Fatalf("env override not applied: %d", cfg.Orchestrator.MaxHandoffs)
	}
	want := []string{"list_customers", "transfer_conversation"}
	if len(cfg.Orchestrator.ReadOnlyCapabilities) != 2 ||
		cfg.Orchestrator.ReadOnlyCapabilities[0] != want[0] ||
		cfg.Orchestrator.ReadOnlyCapabilities[1] != want[1] {
		t.Fatalf("slice env override not applied: %#v", cfg.Orchestrator.ReadOnlyCapabilities)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatal("string env override not applied")
	}
	if !cfg.Redis.Enabled {
		t.Fatal("bool env override not applied")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orchestrator.DefaultAgent = "billing"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown default agent")
	}

	cfg = DefaultConfig()
	cfg.Orchestrator.MaxStepsPerSession = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero step ceiling")
	}

	cfg = DefaultConfig()
	cfg.LLM.Temperature = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range temperature")
	}
}
