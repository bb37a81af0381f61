package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Node.RegistryPath != DefaultRegistryPath {
		t.Fatalf("expected default registry path %q, got %q", DefaultRegistryPath, cfg.Node.RegistryPath)
	}
	if cfg.Node.HeartbeatPeriodMS != DefaultHeartbeatPeriodMS {
		t.Fatalf("expected default heartbeat period %d, got %d", DefaultHeartbeatPeriodMS, cfg.Node.HeartbeatPeriodMS)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	yaml := []byte("node:\n  registry_path: custom_ports.json\n  heartbeat_period_ms: 1234\nlogging:\n  level: debug\n")
	if err := os.WriteFile(filepath.Join(dir, "node.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write node.yaml: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Node.RegistryPath != "custom_ports.json" {
		t.Fatalf("expected custom registry path, got %q", cfg.Node.RegistryPath)
	}
	if cfg.Node.HeartbeatPeriodMS != 1234 {
		t.Fatalf("expected heartbeat period 1234, got %d", cfg.Node.HeartbeatPeriodMS)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging level debug, got %q", cfg.Logging.Level)
	}
}
