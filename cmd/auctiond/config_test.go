package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/draft")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.MonitorInterval != time.Second {
		t.Errorf("monitor interval = %v, want 1s", cfg.MonitorInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.ApplySchema {
		t.Error("schema application should default off")
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigRejectsTinyInterval(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/draft")
	t.Setenv("MONITOR_INTERVAL", "10ms")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for sub-100ms interval")
	}
}
