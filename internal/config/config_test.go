package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PercentageLow != 10 || cfg.PercentageCritical != 5 || cfg.PercentageAction != 2 {
		t.Fatalf("percentage defaults = %+v", cfg)
	}
	if cfg.CriticalPowerAction != "HybridSleep" {
		t.Fatalf("CriticalPowerAction = %q, want HybridSleep", cfg.CriticalPowerAction)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upowerd.conf")
	body := "PercentageLow=20\nTimeAction=90\nUsePercentageForPolicy=true\nCriticalPowerAction=Hibernate\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvConfFileName, path)
	t.Setenv(EnvHistoryDir, "")
	t.Setenv(EnvMockSysfsRoot, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PercentageLow != 20 {
		t.Fatalf("PercentageLow = %v, want 20", cfg.PercentageLow)
	}
	if cfg.TimeAction != 90 {
		t.Fatalf("TimeAction = %v, want 90", cfg.TimeAction)
	}
	if !cfg.UsePercentageForPolicy {
		t.Fatal("UsePercentageForPolicy = false, want true")
	}
	if cfg.CriticalPowerAction != "Hibernate" {
		t.Fatalf("CriticalPowerAction = %q, want Hibernate", cfg.CriticalPowerAction)
	}
	// Untouched keys keep their defaults.
	if cfg.PercentageCritical != 5 {
		t.Fatalf("PercentageCritical = %v, want default 5", cfg.PercentageCritical)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfFileName, filepath.Join(t.TempDir(), "does-not-exist.conf"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PercentageLow != 10 {
		t.Fatalf("PercentageLow = %v, want default 10", cfg.PercentageLow)
	}
}

func TestLoad_OptionalAdapterKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upowerd.conf")
	body := "HidUpsEnabled=true\nHidUpsHost=ups-box\nLTC4015Enabled=true\nLTC4015Address=6a\nLTC4015Chemistry=leadacid\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfFileName, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HidUpsEnabled || cfg.HidUpsHost != "ups-box" {
		t.Fatalf("HidUps config = %+v", cfg)
	}
	if !cfg.LTC4015Enabled || cfg.LTC4015Address != "6a" || cfg.LTC4015Chemistry != "leadacid" {
		t.Fatalf("LTC4015 config = %+v", cfg)
	}
	// Untouched optional-adapter defaults survive.
	if cfg.HidUpsPollSeconds != 30 {
		t.Fatalf("HidUpsPollSeconds = %v, want default 30", cfg.HidUpsPollSeconds)
	}
}

func TestLoad_EnvOverridesHistoryDirAndMockRoot(t *testing.T) {
	t.Setenv(EnvConfFileName, filepath.Join(t.TempDir(), "does-not-exist.conf"))
	t.Setenv(EnvHistoryDir, "/tmp/custom-history")
	t.Setenv(EnvMockSysfsRoot, "/tmp/mock-sysfs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryDir != "/tmp/custom-history" {
		t.Fatalf("HistoryDir = %q", cfg.HistoryDir)
	}
	if cfg.MockSysfsRoot != "/tmp/mock-sysfs" {
		t.Fatalf("MockSysfsRoot = %q", cfg.MockSysfsRoot)
	}
}
