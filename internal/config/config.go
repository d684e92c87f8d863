package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service reads from the environment. It is
// built once in main and threaded into the components that need it.
type Config struct {
	Port     string
	MongoURI string
	DBName   string

	Mpesa MpesaConfig
}

// MpesaConfig carries the Daraja credentials and endpoints.
type MpesaConfig struct {
	BaseURL        string
	ShortCode      string
	PassKey        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	HTTPTimeout    time.Duration
}

// Load reads the configuration from the environment. Required variables
// that are missing produce an error rather than a half-built config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getenvDefault("PORT", "8080"),
		MongoURI: os.Getenv("MONGOURI"),
		DBName:   getenvDefault("MONGO_DB", "jobportaldb"),
		Mpesa: MpesaConfig{
			BaseURL:        getenvDefault("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ShortCode:      os.Getenv("MPESA_SHORTCODE"),
			PassKey:        os.Getenv("MPESA_PASSKEY"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
			HTTPTimeout:    10 * time.Second,
		},
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGOURI environment variable is not set")
	}
	for name, value := range map[string]string{
		"MPESA_SHORTCODE":       cfg.Mpesa.ShortCode,
		"MPESA_PASSKEY":         cfg.Mpesa.PassKey,
		"MPESA_CONSUMER_KEY":    cfg.Mpesa.ConsumerKey,
		"MPESA_CONSUMER_SECRET": cfg.Mpesa.ConsumerSecret,
		"MPESA_CALLBACK_URL":    cfg.Mpesa.CallbackURL,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is not set", name)
		}
	}

	if raw := os.Getenv("MPESA_HTTP_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid MPESA_HTTP_TIMEOUT_SECONDS: %q", raw)
		}
		cfg.Mpesa.HTTPTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
