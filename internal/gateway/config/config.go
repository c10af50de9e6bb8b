// Package config holds the environment-driven configuration for the gateway.
// Values are read from the process environment, optionally seeded from a .env
// file, and validated before the server starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ConfigParam holds all configuration parameters for the gateway service.
type ConfigParam struct {
	// Server configuration
	ServerPort string `validate:"required,numeric"` // HTTP listen port
	HandleCORS bool   // whether to enable the CORS middleware

	// Auth configuration
	AdminAPIKey string `validate:"required"` // static admin key, always bound to the "default" session

	// Session configuration
	SessionPath       string        `validate:"required"` // root directory for per-session credentials
	ReconnectInterval time.Duration `validate:"min=0"`    // base delay between reconnect attempts
	MaxRetries        uint          `validate:"min=1"`    // maximum reconnect attempts per disconnect

	// QR polling
	QRWaitDelay time.Duration `validate:"min=0"` // bounded wait before reporting "QR not available"

	// Request handling
	RequestTimeout time.Duration `validate:"min=0"` // per-request handling timeout

	// Webhook configuration
	WebhookURL string `validate:"omitempty,url"` // optional URL notified of session lifecycle events
}

// DefaultSessionIdentity is the reserved session identity the admin key
// always resolves to, regardless of the issued-key store contents.
const DefaultSessionIdentity = "default"

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// LoadConfig populates the configuration from the environment. If envFile is
// non-empty it is loaded first; a missing file is not an error. Returns an
// error if any value fails to parse or validate.
func LoadConfig(envFile string) error {
	if envFile != "" {
		_ = godotenv.Load(envFile) // no error if the file doesn't exist
	}

	c := &ConfigParam{
		ServerPort:  getenv("PORT", "3000"),
		AdminAPIKey: getenv("API_KEY", DefaultSessionIdentity),
		SessionPath: getenv("SESSION_PATH", "./sessions"),
		WebhookURL:  os.Getenv("WEBHOOK_URL"),
	}

	var err error
	if c.ReconnectInterval, err = getenvDuration("RECONNECT_INTERVAL", 5*time.Second); err != nil {
		return err
	}
	if c.MaxRetries, err = getenvUint("MAX_RETRIES", 5); err != nil {
		return err
	}
	if c.QRWaitDelay, err = getenvDuration("QR_WAIT_DELAY", time.Second); err != nil {
		return err
	}
	if c.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	if c.HandleCORS, err = getenvBool("HANDLE_CORS", true); err != nil {
		return err
	}

	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = c
	return nil
}

// ValidateConfig checks that all required configuration values are present
// and valid, and ensures the session root directory exists.
func ValidateConfig(c *ConfigParam) error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := os.MkdirAll(c.SessionPath, 0700); err != nil {
		return fmt.Errorf("error creating session directory: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvUint(key string, fallback uint) (uint, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint(n), nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// TestInit loads a test configuration rooted in a temporary directory.
// Intended for use from package tests.
func TestInit(t interface {
	TempDir() string
	Cleanup(func())
}) {
	prev := cfg
	cfg = &ConfigParam{
		ServerPort:        "0",
		AdminAPIKey:       DefaultSessionIdentity,
		SessionPath:       t.TempDir(),
		ReconnectInterval: 10 * time.Millisecond,
		MaxRetries:        3,
		QRWaitDelay:       20 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
	}
	t.Cleanup(func() { cfg = prev })
}
