package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("MAX_APPROXIMATE_DISTANCE", "")
	t.Setenv("INDEX_TIMEOUT_MINUTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendMongo {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendMongo)
	}
	if cfg.MaxApproximateDistance != 128 {
		t.Errorf("MaxApproximateDistance = %d, want 128", cfg.MaxApproximateDistance)
	}
	if cfg.IndexTimeout != 30*time.Minute {
		t.Errorf("IndexTimeout = %v, want 30m", cfg.IndexTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", "/tmp/x.db")
	t.Setenv("MAX_APPROXIMATE_DISTANCE", "12")
	t.Setenv("SCAN_FETCH_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendBolt || cfg.BoltPath != "/tmp/x.db" {
		t.Errorf("store = %q %q", cfg.StoreBackend, cfg.BoltPath)
	}
	if cfg.MaxApproximateDistance != 12 {
		t.Errorf("MaxApproximateDistance = %d, want 12", cfg.MaxApproximateDistance)
	}
	if cfg.ScanFetchTimeout != 5*time.Second {
		t.Errorf("ScanFetchTimeout = %v, want 5s", cfg.ScanFetchTimeout)
	}
}

func validConfig() *Config {
	return &Config{
		StoreBackend:            BackendBolt,
		BoltPath:                "matchcode.db",
		RedisHost:               "localhost:6379",
		JWTSecret:               "secret",
		RateLimitRPS:            10,
		MaxApproximateDistance:  8,
		IndexTimeout:            time.Minute,
		StreamRetentionDuration: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "sqlite" }, want: "STORE_BACKEND"},
		{name: "mongo without uri", mutate: func(c *Config) { c.StoreBackend = BackendMongo; c.MongoDBName = "db" }, want: "MONGO_URI"},
		{name: "no secret", mutate: func(c *Config) { c.JWTSecret = "" }, want: "JWT_SECRET"},
		{name: "distance too large", mutate: func(c *Config) { c.MaxApproximateDistance = 129 }, want: "MAX_APPROXIMATE_DISTANCE"},
		{name: "negative workers", mutate: func(c *Config) { c.MatchWorkers = -1 }, want: "MATCH_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}
