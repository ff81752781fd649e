package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/outleap/goleap/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAgentConfig(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
receiver_address = "10.0.0.5:9100"
dial_timeout = "3s"
log_level = "debug"
`)
	cfg, err := loadAgentConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReceiverAddress != "10.0.0.5:9100" {
		t.Fatalf("address: got %q", cfg.ReceiverAddress)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Fatalf("timeout: got %v", cfg.DialTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoadAgentConfigDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAgentConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := defaultAgentConfig()
	if cfg != def {
		t.Fatalf("got %+v want %+v", cfg, def)
	}
}

func TestLoadAgentConfigEmptyAddressKeepsDefault(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAgentConfig(writeConfig(t, `receiver_address = "  "`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReceiverAddress != defaultAgentConfig().ReceiverAddress {
		t.Fatalf("address: got %q", cfg.ReceiverAddress)
	}
}

func TestLoadAgentConfigBadTimeout(t *testing.T) {
	testlog.Start(t)
	if _, err := loadAgentConfig(writeConfig(t, `dial_timeout = "soon"`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := loadAgentConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error")
	}
}
