package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
engine:
  retry_attempts: 5
  retry_delay_sec: 1
  route_back_threshold: 0.6
tenants:
  - id: acme
    tier: pro
    ceiling_units: 1000
  - id: globex
    tier: starter
    ceiling_units: 100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Engine.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.Engine.RetryAttempts)
	}
	if cfg.Engine.RouteBackThreshold != 0.6 {
		t.Errorf("RouteBackThreshold = %v, want 0.6", cfg.Engine.RouteBackThreshold)
	}
	if cfg.RetryDelay() != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", cfg.RetryDelay())
	}

	ceilings := cfg.Ceilings()
	ceiling, ok := ceilings.Ceiling("acme")
	if !ok || ceiling != 1000 {
		t.Errorf("Ceiling(acme) = %v, %v, want 1000, true", ceiling, ok)
	}
	if _, ok := ceilings.Ceiling("unknown"); ok {
		t.Error("Ceiling(unknown) should report not found")
	}
}

func TestLoadAppliesEngineDefaults(t *testing.T) {
	path := writeConfig(t, `
tenants:
  - id: acme
    ceiling_units: 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Engine.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want default 3", cfg.Engine.RetryAttempts)
	}
	if cfg.Engine.RetryDelaySec != 2 {
		t.Errorf("RetryDelaySec = %d, want default 2", cfg.Engine.RetryDelaySec)
	}
	if cfg.Engine.RouteBackThreshold != 0.5 {
		t.Errorf("RouteBackThreshold = %v, want default 0.5", cfg.Engine.RouteBackThreshold)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Tenants) != 0 {
		t.Errorf("expected no tenants, got %d", len(cfg.Tenants))
	}
	if cfg.Engine.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Engine.RetryAttempts)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "no tenants",
			content: "engine:\n  retry_attempts: 3\n",
			wantErr: ErrNoTenants,
		},
		{
			name: "zero ceiling",
			content: `
tenants:
  - id: acme
    ceiling_units: 0
`,
			wantErr: ErrInvalidCeiling,
		},
		{
			name: "duplicate tenant",
			content: `
tenants:
  - id: acme
    ceiling_units: 100
  - id: acme
    ceiling_units: 200
`,
			wantErr: ErrDuplicateTenant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
