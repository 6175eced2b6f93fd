package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultCommerceCallTimeout  = 30 * time.Second
	defaultSessionCollection    = "checkout_sessions"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultEventsTopic          = "checkout-session-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Commerce    CommerceConfig
	Session     SessionConfig
	Idempotency IdempotencyConfig
	Events      EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// CommerceConfig points at the commerce backend REST API.
type CommerceConfig struct {
	BaseURL     string
	ReturnURL   string
	CallTimeout time.Duration
}

// SessionConfig controls session store parameters.
type SessionConfig struct {
	Collection string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// EventsConfig controls session event publication.
type EventsConfig struct {
	ProjectID string
	Topic     string
	Enabled   bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Load reads configuration from the process environment, optionally
// merging a .env file first. Environment variables win over file values.
func Load() (Config, error) {
	if _, err := os.Stat(defaultEnvFile); err == nil {
		// Existing environment variables are not overwritten.
		_ = godotenv.Load(defaultEnvFile)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         lookup("CHECKOUT_SERVER_PORT", defaultPort),
			ReadTimeout:  lookupDuration("CHECKOUT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: lookupDuration("CHECKOUT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  lookupDuration("CHECKOUT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup("CHECKOUT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: lookup("CHECKOUT_FIRESTORE_EMULATOR_HOST", ""),
		},
		Commerce: CommerceConfig{
			BaseURL:     lookup("CHECKOUT_COMMERCE_BASE_URL", ""),
			ReturnURL:   lookup("CHECKOUT_COMMERCE_RETURN_URL", ""),
			CallTimeout: lookupDuration("CHECKOUT_COMMERCE_CALL_TIMEOUT", defaultCommerceCallTimeout),
		},
		Session: SessionConfig{
			Collection: lookup("CHECKOUT_SESSION_COLLECTION", defaultSessionCollection),
		},
		Idempotency: IdempotencyConfig{
			Header:           lookup("CHECKOUT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              lookupDuration("CHECKOUT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  lookupDuration("CHECKOUT_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: lookupInt("CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Events: EventsConfig{
			ProjectID: lookup("CHECKOUT_EVENTS_PROJECT_ID", ""),
			Topic:     lookup("CHECKOUT_EVENTS_TOPIC", defaultEventsTopic),
			Enabled:   lookupBool("CHECKOUT_EVENTS_ENABLED", false),
		},
	}

	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	var missing []string
	if cfg.Commerce.BaseURL == "" {
		missing = append(missing, "Commerce.BaseURL")
	}
	if cfg.Commerce.ReturnURL == "" {
		missing = append(missing, "Commerce.ReturnURL")
	}
	if len(missing) > 0 {
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

func lookup(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func lookupDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func lookupInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func lookupBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
