package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestDefaults(t *testing.T) {
	cfg := New()
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Cache.Adapter != AdapterMemory {
		t.Errorf("Adapter = %q, want memory", cfg.Cache.Adapter)
	}
	if got := cfg.Interval(); got != 60*time.Second {
		t.Errorf("Interval = %v, want 60s", got)
	}
	if got := cfg.SWRWindow(); got != 5*time.Minute {
		t.Errorf("SWRWindow = %v, want 5m", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want default", cfg.Port)
	}
}

func TestLoadMergesWithDefaults(t *testing.T) {
	dir := writeConfig(t, `{
		"name": "my-site",
		"port": 8080,
		"cache": {"adapter": "fs", "dir": ".cache"},
		"isr": {"interval": "90s"}
	}`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "my-site" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Cache.Adapter != AdapterFS || cfg.Cache.Dir != ".cache" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if got := cfg.Interval(); got != 90*time.Second {
		t.Errorf("Interval = %v, want 90s", got)
	}
	// Unset fields keep their defaults.
	if got := cfg.SWRWindow(); got != 5*time.Minute {
		t.Errorf("SWRWindow = %v, want 5m", got)
	}
	if cfg.ISR.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", cfg.ISR.MaxConcurrent)
	}
	if cfg.Address() != "localhost:8080" {
		t.Errorf("Address = %q", cfg.Address())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := writeConfig(t, `{not json`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown adapter", func(c *Config) { c.Cache.Adapter = "redis" }, true},
		{"fs without dir", func(c *Config) { c.Cache.Adapter = AdapterFS }, true},
		{"badger without path", func(c *Config) { c.Cache.Adapter = AdapterBadger }, true},
		{"s3 without bucket", func(c *Config) { c.Cache.Adapter = AdapterS3 }, true},
		{"s3 with bucket", func(c *Config) {
			c.Cache.Adapter = AdapterS3
			c.Cache.S3Bucket = "pages"
		}, false},
		{"bad duration", func(c *Config) { c.ISR.Interval = "sixty" }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"multiplier below one", func(c *Config) { c.ISR.BackoffMultiplier = 0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSchedulerIntervalDisabled(t *testing.T) {
	cfg := New()
	cfg.ISR.SchedulerInterval = ""
	if got := cfg.SchedulerInterval(); got != 0 {
		t.Errorf("SchedulerInterval = %v, want 0", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Name = "saved"
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Name != "saved" {
		t.Errorf("Name = %q, want saved", loaded.Name)
	}
	if loaded.Path() != path {
		t.Errorf("Path = %q, want %q", loaded.Path(), path)
	}
}
