package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging defaults not applied: %+v", cfg.Logging)
	}
	if cfg.Flight.DepartureThresholdKts != 40 || cfg.Flight.ArrivalRadiusM != 100 || cfg.Flight.ArrivalHoldSecs != 60 {
		t.Errorf("flight defaults not applied: %+v", cfg.Flight)
	}
	if cfg.ETA.CacheTTLSecs != 5 || cfg.ETA.MinCruiseSpeedKts != 0.5 {
		t.Errorf("eta defaults not applied: %+v", cfg.ETA)
	}
	if cfg.Telemetry.SpeedWindowSecs != 120 || cfg.Telemetry.MinDisplacementM != 10 {
		t.Errorf("telemetry defaults not applied: %+v", cfg.Telemetry)
	}
	if cfg.Timeline.Workers != 4 {
		t.Errorf("timeline defaults not applied: %+v", cfg.Timeline)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"duplicate additional port", func(c *Config) { c.Server.AdditionalPorts = []int{8080} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative departure threshold", func(c *Config) { c.Flight.DepartureThresholdKts = -1 }},
		{"negative cache ttl", func(c *Config) { c.ETA.CacheTTLSecs = -1 }},
		{"negative workers", func(c *Config) { c.Timeline.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[server]
port = 9090
host = "0.0.0.0"

[logging]
level = "debug"

[flight]
departure_threshold_kts = 35.0
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server section not decoded: %+v", cfg.Server)
	}
	if cfg.Flight.DepartureThresholdKts != 35.0 {
		t.Errorf("flight section not decoded: %+v", cfg.Flight)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
