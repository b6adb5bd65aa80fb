package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMAIL_VERIFICATION_TTL", "")
	t.Setenv("TRUST_PROXY", "")
	t.Setenv("APP_BASE_URL", "http://example.test/")
	t.Setenv("API_PUBLIC_URL", "http://api.example.test//")

	cfg := Load()
	if cfg.Auth.EmailVerificationTTL != 24*time.Hour {
		t.Fatalf("expected 24h verification ttl, got %s", cfg.Auth.EmailVerificationTTL)
	}
	if cfg.App.BaseURL != "http://example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.App.BaseURL)
	}
	if cfg.App.APIURL != "http://api.example.test" {
		t.Fatalf("expected trailing slashes trimmed, got %q", cfg.App.APIURL)
	}
	if cfg.Server.TrustProxy {
		t.Fatal("expected forwarded headers to be untrusted by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
}

func TestValidateRejectsWeakSettings(t *testing.T) {
	cfg := Load()
	cfg.Env = "prod"
	cfg.Auth.JWTSecret = "dev-only-secret-change-in-prod"
	cfg.Auth.BcryptCost = 10
	cfg.Auth.PasswordHash = "md5"
	cfg.App.APIURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JWT_SECRET", "BCRYPT_COST", "PASSWORD_HASH", "API_PUBLIC_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got %v", want, err)
		}
	}
}

func TestGetList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	got := getList("CORS_ALLOWED_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected list: %v", got)
	}
}
