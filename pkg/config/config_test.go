package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/fluxcheck/pkg/jobspec"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("expected exporter none, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Server.Transport != "stdio" || cfg.Server.Name != "fluxcheck" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Validation.MaxDepth != jobspec.DefaultMaxDepth {
		t.Errorf("expected default max depth, got %d", cfg.Validation.MaxDepth)
	}
	mode, err := cfg.Validation.ValidationMode()
	if err != nil || mode != jobspec.CollectAll {
		t.Errorf("expected collect-all, got %v (%v)", mode, err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FLUXCHECK_VALIDATION_MAX_DEPTH", "12")
	t.Setenv("FLUXCHECK_SERVER_TRANSPORT", "http")
	t.Setenv("FLUXCHECK_AUDIT_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Validation.MaxDepth != 12 {
		t.Errorf("expected max depth 12 from env, got %d", cfg.Validation.MaxDepth)
	}
	if cfg.Server.Transport != "http" {
		t.Errorf("expected http transport from env, got %s", cfg.Server.Transport)
	}
	if !cfg.Audit.Enabled {
		t.Errorf("expected audit enabled from env")
	}
}

func TestLoadWithProfile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(base, []byte("log:\n  level: info\nserver:\n  addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.dev.yaml"), []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		profile string
		level   string
	}{
		{"base only", "", "info"},
		{"dev profile", "dev", "debug"},
		{"missing profile", "prod", "info"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithProfile(base, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}
			if cfg.Log.Level != tc.level {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.level)
			}
			if cfg.Server.Addr != ":9000" {
				t.Errorf("expected addr inherited from base, got %s", cfg.Server.Addr)
			}
		})
	}
}

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	content := `{"validation": {"mode": "collect-all"}, "telemetry": {"exporter": "stdout"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FLUXCHECK_LOG_LEVEL", "warn")

	cfg, err := LoadWithCLI([]string{
		"validate", "job.yaml",
		"--config=" + path,
		"--set", "validation.mode=fail-fast",
		"--set=validation.max_depth=5",
		"--set", "log.level=error",
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected exporter from file, got %s", cfg.Telemetry.Exporter)
	}
	if mode, _ := cfg.Validation.ValidationMode(); mode != jobspec.FailFast {
		t.Errorf("expected fail-fast override, got %v", mode)
	}
	if cfg.Validation.MaxDepth != 5 {
		t.Errorf("expected max depth 5, got %d", cfg.Validation.MaxDepth)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected --set to win over env, got %s", cfg.Log.Level)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	if _, err := LoadWithCLI([]string{"--set", "validation.mode=sideways"}); err == nil {
		t.Fatal("expected error for unknown validation mode")
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--config"},
		{"--set"},
		{"--set", "invalid"},
		{"--set", "=value"},
	} {
		if _, err := parseCLIOverrides(args); err == nil {
			t.Errorf("expected error for %q", args)
		}
	}
}

func TestProfileConfigPath(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "config.dev.yaml")
	if err := os.WriteFile(dev, []byte("log: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "config.yaml")

	tests := []struct {
		base, profile, want string
	}{
		{base, "dev", dev},
		{base, "prod", ""},
		{base, "", ""},
		{"", "dev", ""},
	}
	for _, tc := range tests {
		if got := profileConfigPath(tc.base, tc.profile); got != tc.want {
			t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.want)
		}
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"FLUXCHECK_LOG_LEVEL":               "log.level",
		"FLUXCHECK_TELEMETRY_OTLP_ENDPOINT": "telemetry.otlp_endpoint",
		"FLUXCHECK_VALIDATION_MAX_DEPTH":    "validation.max_depth",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
