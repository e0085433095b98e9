package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "ENV", "LOG_LEVEL", "KV_BACKEND", "CLASSIFIER_PROVIDER", "MONITORED_GROUPS", "ACK_COOLDOWN", "GREETING_DAILY_CAP"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.HTTPAddr)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.KVBackend != "badger" {
		t.Fatalf("expected badger backend by default, got %s", cfg.KVBackend)
	}
	if cfg.ClassifierProvider != "none" {
		t.Fatalf("expected remote classifier disabled by default, got %s", cfg.ClassifierProvider)
	}
	if cfg.MonitoredGroups != nil {
		t.Fatalf("expected no monitored groups, got %v", cfg.MonitoredGroups)
	}
	if cfg.AckCooldown != time.Hour || cfg.GreetingDailyCap != 2 {
		t.Fatalf("unexpected throttle defaults: %s %d", cfg.AckCooldown, cfg.GreetingDailyCap)
	}
	if cfg.SendMaxRetries != 2 || cfg.SendRetryDelay != 2*time.Second {
		t.Fatalf("unexpected send retry defaults: %d %s", cfg.SendMaxRetries, cfg.SendRetryDelay)
	}
	if cfg.ClassifierCacheTTL != 5*time.Minute || cfg.HandlerClaimTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl defaults: %s %s", cfg.ClassifierCacheTTL, cfg.HandlerClaimTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ENV", "production")
	t.Setenv("KV_BACKEND", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("CLASSIFIER_PROVIDER", "OpenAI")
	t.Setenv("CLASSIFIER_RETRIES", "3")
	t.Setenv("CLASSIFIER_TIMEOUT", "4s")
	t.Setenv("MONITORED_GROUPS", "Sales Pune, ,Leads Mumbai ")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("GREETING_DAILY_CAP", "not-a-number")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" || cfg.Env != "production" {
		t.Fatalf("unexpected overrides: %s %s", cfg.HTTPAddr, cfg.Env)
	}
	if cfg.KVBackend != "postgres" || cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("unexpected persistence: %s %s", cfg.KVBackend, cfg.DatabaseURL)
	}
	if cfg.ClassifierProvider != "openai" || cfg.ClassifierRetries != 3 || cfg.ClassifierTimeout != 4*time.Second {
		t.Fatalf("unexpected classifier config: %+v", cfg)
	}
	if want := []string{"Sales Pune", "Leads Mumbai"}; !reflect.DeepEqual(cfg.MonitoredGroups, want) {
		t.Fatalf("expected %v, got %v", want, cfg.MonitoredGroups)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if cfg.GreetingDailyCap != 2 {
		t.Fatalf("expected invalid int to fall back to default, got %d", cfg.GreetingDailyCap)
	}
}
