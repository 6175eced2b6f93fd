package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHECKOUT_COMMERCE_BASE_URL", "http://commerce.local")
	t.Setenv("CHECKOUT_COMMERCE_RETURN_URL", "http://shop.local/checkout/return")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Session.Collection != "checkout_sessions" {
		t.Fatalf("expected default session collection, got %q", cfg.Session.Collection)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("expected default idempotency TTL, got %v", cfg.Idempotency.TTL)
	}
	if cfg.Events.Topic != "checkout-session-events" {
		t.Fatalf("expected default events topic, got %q", cfg.Events.Topic)
	}
	if cfg.Events.Enabled {
		t.Fatal("expected events disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHECKOUT_COMMERCE_BASE_URL", "http://commerce.local")
	t.Setenv("CHECKOUT_COMMERCE_RETURN_URL", "http://shop.local/checkout/return")
	t.Setenv("CHECKOUT_SERVER_PORT", "9090")
	t.Setenv("CHECKOUT_COMMERCE_CALL_TIMEOUT", "5s")
	t.Setenv("CHECKOUT_FIRESTORE_PROJECT_ID", "demo-project")
	t.Setenv("CHECKOUT_EVENTS_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Commerce.CallTimeout != 5*time.Second {
		t.Fatalf("expected 5s call timeout, got %v", cfg.Commerce.CallTimeout)
	}
	if !cfg.Events.Enabled {
		t.Fatal("expected events enabled")
	}
	if cfg.Events.ProjectID != "demo-project" {
		t.Fatalf("expected events project to default to firestore project, got %q", cfg.Events.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("CHECKOUT_COMMERCE_BASE_URL", "")
	t.Setenv("CHECKOUT_COMMERCE_RETURN_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Fields()) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", ve.Fields())
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("CHECKOUT_COMMERCE_BASE_URL", "http://commerce.local")
	t.Setenv("CHECKOUT_COMMERCE_RETURN_URL", "http://shop.local/checkout/return")
	t.Setenv("CHECKOUT_IDEMPOTENCY_TTL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("expected fallback TTL, got %v", cfg.Idempotency.TTL)
	}
}
