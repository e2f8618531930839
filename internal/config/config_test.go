package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "aldebaran_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("JWT_SECRET", "dGVzdHNlY3JldDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNA==")
	t.Setenv("AI_MAX_ATTEMPTS", "4")
	t.Setenv("AI_BASE_DELAY_MS", "250")
	t.Setenv("ADMIN_EMAILS", " Root@Example.com, ,ops@example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.AI.MaxAttempts != 4 {
		t.Fatalf("AI.MaxAttempts = %d, want 4", cfg.AI.MaxAttempts)
	}
	if cfg.AI.BaseDelay != 250*time.Millisecond {
		t.Fatalf("AI.BaseDelay = %v, want 250ms", cfg.AI.BaseDelay)
	}
	if len(cfg.Admin.Emails) != 2 || cfg.Admin.Emails[0] != "root@example.com" {
		t.Fatalf("unexpected admin emails: %v", cfg.Admin.Emails)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AI_MAX_ATTEMPTS", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.AI.MaxAttempts != 1 {
		t.Fatalf("AI.MaxAttempts should be clamped to 1, got %d", cfg.AI.MaxAttempts)
	}
	if cfg.JWT.Expiration <= 0 {
		t.Fatalf("expected positive default token expiration, got %v", cfg.JWT.Expiration)
	}
}
