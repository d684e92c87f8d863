package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MONGOURI", "mongodb://localhost:27017")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_CONSUMER_KEY", "ckey")
	t.Setenv("MPESA_CONSUMER_SECRET", "csecret")
	t.Setenv("MPESA_CALLBACK_URL", "https://example.com/api/payment/callback")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want default 8080", cfg.Port)
	}
	if cfg.Mpesa.BaseURL != "https://sandbox.safaricom.co.ke" {
		t.Errorf("BaseURL = %q, want sandbox default", cfg.Mpesa.BaseURL)
	}
	if cfg.Mpesa.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s default", cfg.Mpesa.HTTPTimeout)
	}
	if cfg.Mpesa.ShortCode != "174379" {
		t.Errorf("ShortCode = %q", cfg.Mpesa.ShortCode)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONGOURI", "")

	if _, err := Load(); err == nil {
		t.Error("Load() succeeded without MONGOURI")
	}

	setRequiredEnv(t)
	t.Setenv("MPESA_PASSKEY", "")

	if _, err := Load(); err == nil {
		t.Error("Load() succeeded without MPESA_PASSKEY")
	}
}

func TestLoadTimeoutOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MPESA_HTTP_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mpesa.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.Mpesa.HTTPTimeout)
	}
}

func TestLoadInvalidTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MPESA_HTTP_TIMEOUT_SECONDS", "abc")

	if _, err := Load(); err == nil {
		t.Error("Load() accepted a non-numeric timeout")
	}
}
