package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIVersion != "1" {
		t.Errorf("expected API version 1, got %q", cfg.APIVersion)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected 24h cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Errorf("expected 60s provider timeout, got %v", cfg.ProviderTimeout)
	}
	if len(cfg.AllowedPlatforms) != 2 {
		t.Errorf("expected 2 allowed platforms, got %v", cfg.AllowedPlatforms)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.OpenAI.Model)
	}
	if cfg.RoutePrefix() != "/v1" {
		t.Errorf("expected /v1, got %q", cfg.RoutePrefix())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AICONNECT_API_VERSION", "2")
	t.Setenv("AICONNECT_JWT_SECRET", "s3cret")
	t.Setenv("AICONNECT_ALLOWED_PLATFORMS", " OpenAI , googlecloud ,")
	t.Setenv("AICONNECT_CACHE_TTL", "90m")
	t.Setenv("AICONNECT_TENANT_CODES", "acme,globex")
	t.Setenv("AICONNECT_OPENAI_MODEL", "gpt-4o")
	t.Setenv("AICONNECT_GOOGLECLOUD_LOCATION", "europe-west1")
	t.Setenv("AICONNECT_BUILD_NUMBER", "1.2.3")
	t.Setenv("AICONNECT_AUDIO_PUBLIC_URL", "https://cdn.example.com/audio/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RoutePrefix() != "/v2" {
		t.Errorf("expected /v2, got %q", cfg.RoutePrefix())
	}
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("expected secret, got %q", cfg.JWTSecret)
	}
	if cfg.CacheTTL != 90*time.Minute {
		t.Errorf("expected 90m, got %v", cfg.CacheTTL)
	}
	if len(cfg.TenantCodes) != 2 || cfg.TenantCodes[1] != "globex" {
		t.Errorf("unexpected tenant codes %v", cfg.TenantCodes)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %q", cfg.OpenAI.Model)
	}
	if cfg.GoogleCloud.Location != "europe-west1" {
		t.Errorf("expected europe-west1, got %q", cfg.GoogleCloud.Location)
	}
	if cfg.Version.ReleaseVersion != "1.2.3" {
		t.Errorf("expected 1.2.3, got %q", cfg.Version.ReleaseVersion)
	}
	if cfg.AudioPublicURL != "https://cdn.example.com/audio" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.AudioPublicURL)
	}
}

func TestPlatformAllowed(t *testing.T) {
	cfg := Default()
	cfg.AllowedPlatforms = []string{"openai", "GoogleCloud"}

	tests := []struct {
		platform string
		want     bool
	}{
		{"openai", true},
		{"OPENAI", true},
		{"googlecloud", true},
		{"open", false},
		{"", false},
		{"azure", false},
	}

	for _, tt := range tests {
		if got := cfg.PlatformAllowed(tt.platform); got != tt.want {
			t.Errorf("PlatformAllowed(%q) = %v, want %v", tt.platform, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, true},
		{"zero timeout", func(c *Config) { c.ProviderTimeout = 0 }, true},
		{"empty version", func(c *Config) { c.APIVersion = " " }, true},
		{"nucleus without login", func(c *Config) { c.Nucleus.URL = "https://nucleus.example.com" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvalidDuration(t *testing.T) {
	t.Setenv("AICONNECT_CACHE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}
