package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "jwt:\n  secret: s\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Invitations.ValidityWindow != 7*24*time.Hour {
		t.Errorf("expected 7 day validity window, got %v", cfg.Invitations.ValidityWindow)
	}
	if cfg.Invitations.ResendCap != 5 {
		t.Errorf("expected resend cap 5, got %d", cfg.Invitations.ResendCap)
	}
	if cfg.DefaultPlan != "free" {
		t.Errorf("expected default plan free, got %s", cfg.DefaultPlan)
	}
	if cfg.Worker.SweepSchedule != "@every 5m" {
		t.Errorf("unexpected sweep schedule %q", cfg.Worker.SweepSchedule)
	}
}

func TestLoad_Plans(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
plans:
  free:
    max_custom_roles: 2
    max_template_usages: 2
  enterprise:
    max_custom_roles: -1
    max_template_usages: -1
invitations:
  validity_window: 48h
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(cfg.Plans))
	}
	if cfg.Plans["enterprise"].MaxCustomRoles != -1 {
		t.Errorf("expected unbounded enterprise plan, got %d", cfg.Plans["enterprise"].MaxCustomRoles)
	}
	if cfg.Invitations.ValidityWindow != 48*time.Hour {
		t.Errorf("expected 48h validity window, got %v", cfg.Invitations.ValidityWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
