package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sampler.Interval != 500*time.Millisecond {
		t.Errorf("expected 500ms sampling interval, got %s", cfg.Sampler.Interval)
	}
	if cfg.Matcher.MinQueryLength != 4 {
		t.Errorf("expected min query length 4, got %d", cfg.Matcher.MinQueryLength)
	}
}

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress = %s", cfg.ServerAddress())
	}
	if cfg.Engine.Type != "tesseract" {
		t.Errorf("engine type = %s", cfg.Engine.Type)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVEOCR_PORT", "9090")
	t.Setenv("LIVEOCR_ENGINE_TYPE", "noop")
	t.Setenv("LIVEOCR_SAMPLER_INTERVAL", "2s")
	t.Setenv("LIVEOCR_MATCHER_THRESHOLD", "0.75")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		// an explicit file that does not exist is reported
		t.Fatalf("expected error for explicit missing file, got config %+v", cfg)
	}

	path := filepath.Join(t.TempDir(), "liveocr.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Port)
	}
	if cfg.Engine.Type != "noop" {
		t.Errorf("engine type = %s, want noop", cfg.Engine.Type)
	}
	if cfg.Sampler.Interval != 2*time.Second {
		t.Errorf("interval = %s, want 2s", cfg.Sampler.Interval)
	}
	if cfg.Matcher.Threshold != 0.75 {
		t.Errorf("threshold = %v, want 0.75", cfg.Matcher.Threshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s, want debug", cfg.LogLevel)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveocr.yaml")
	content := `
port: "7000"
engine:
  type: noop
  detection_timeout: 750ms
models:
  source: local
  runtime: ./models/ocr_runtime.conf
matcher:
  max_results: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" || cfg.Engine.Type != "noop" || cfg.Models.Source != "local" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Engine.DetectionTimeout != 750*time.Millisecond {
		t.Errorf("detection timeout = %s", cfg.Engine.DetectionTimeout)
	}
	if cfg.Models.Runtime != "./models/ocr_runtime.conf" {
		t.Errorf("runtime = %s", cfg.Models.Runtime)
	}
	if cfg.Matcher.MaxResults != 3 {
		t.Errorf("max results = %d", cfg.Matcher.MaxResults)
	}
	// untouched keys keep defaults
	if cfg.Models.Recognition != "/eng.traineddata" {
		t.Errorf("recognition = %s", cfg.Models.Recognition)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = "abc" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"zero body size", func(c *Config) { c.MaxRequestBodySize = 0 }, "max_request_body_size"},
		{"zero detection timeout", func(c *Config) { c.Engine.DetectionTimeout = 0 }, "timeouts"},
		{"fast sampler", func(c *Config) { c.Sampler.Interval = time.Millisecond }, "sampler.interval"},
		{"unknown engine", func(c *Config) { c.Engine.Type = "wasm" }, "engine.type"},
		{"unknown source", func(c *Config) { c.Models.Source = "ftp" }, "models.source"},
		{"azure without container", func(c *Config) { c.Models.Source = "azure"; c.Azure.AccountName = "acct" }, "azure.container"},
		{"azure without account", func(c *Config) { c.Models.Source = "azure"; c.Azure.Container = "models" }, "azure.account_name"},
		{"no attempts", func(c *Config) { c.Models.FetchAttempts = 0 }, "fetch_attempts"},
		{"no results", func(c *Config) { c.Matcher.MaxResults = 0 }, "matcher limits"},
		{"threshold above one", func(c *Config) { c.Matcher.Threshold = 1.5 }, "matcher.threshold"},
		{"base url without host", func(c *Config) { c.Models.BaseURL = "https://" }, "models.base_url"},
		{"base url outside allow list", func(c *Config) {
			c.Models.BaseURL = "https://evil.example.com/models"
			c.Models.AllowedHosts = []string{"cdn.example.com"}
		}, "models.base_url"},
		{"dictionary url without host", func(c *Config) { c.Matcher.Dictionary = "https:///brands.json" }, "matcher.dictionary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveocr.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written default: %v", err)
	}
	if cfg.Sampler.Interval != Default().Sampler.Interval {
		t.Errorf("interval = %s", cfg.Sampler.Interval)
	}
	if cfg.Matcher.Dictionary != "brands.json" {
		t.Errorf("dictionary = %s", cfg.Matcher.Dictionary)
	}
}
