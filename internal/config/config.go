// Package config provides configuration management for the superlinks core.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/chinmay4o/superlinks/internal/constants"
)

// Upload backends
const (
	BackendAPI   = "api"
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// Config holds every runtime setting. Values come from SUPERLINKS_* environment
// variables and are then overridden by command-line flags (see MergeWithFlags).
type Config struct {
	// API settings
	APIBaseURL string `env:"SUPERLINKS_API_URL" envDefault:"https://api.superlinks.app"`
	Token      string `env:"SUPERLINKS_TOKEN"`
	TokenFile  string `env:"SUPERLINKS_TOKEN_FILE"`

	// Client-side retries for idempotent GETs. Zero keeps retries caller-initiated.
	APIRetryMax int `env:"SUPERLINKS_API_RETRY_MAX" envDefault:"0"`

	// Client-side pacing of API calls. A zero rate disables it.
	APIRate  float64 `env:"SUPERLINKS_API_RATE" envDefault:"10"`
	APIBurst int     `env:"SUPERLINKS_API_BURST" envDefault:"20"`

	// Upload coordinator
	MaxConcurrent int           `env:"SUPERLINKS_MAX_CONCURRENT" envDefault:"3"`
	UploadTimeout time.Duration `env:"SUPERLINKS_UPLOAD_TIMEOUT" envDefault:"5m"`
	UploadBackend string        `env:"SUPERLINKS_UPLOAD_BACKEND" envDefault:"api"`

	// Object storage backends (only read when UploadBackend selects them)
	S3Bucket       string `env:"SUPERLINKS_S3_BUCKET"`
	S3Region       string `env:"SUPERLINKS_S3_REGION" envDefault:"us-east-1"`
	ObjectPrefix   string `env:"SUPERLINKS_OBJECT_PREFIX" envDefault:"uploads"` // Key prefix for s3 and azure
	S3PublicURL    string `env:"SUPERLINKS_S3_PUBLIC_URL"`
	S3Endpoint     string `env:"SUPERLINKS_S3_ENDPOINT"` // S3-compatible stores (MinIO, R2); path-style addressing
	S3AccessKeyID  string `env:"SUPERLINKS_S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"SUPERLINKS_S3_SECRET_ACCESS_KEY"`
	S3SessionToken string `env:"SUPERLINKS_S3_SESSION_TOKEN"`
	AzureAccount   string `env:"SUPERLINKS_AZURE_ACCOUNT"`
	AzureContainer string `env:"SUPERLINKS_AZURE_CONTAINER"`
	AzureSASToken  string `env:"SUPERLINKS_AZURE_SAS"`

	// Response cache
	CacheSweepInterval time.Duration `env:"SUPERLINKS_CACHE_SWEEP" envDefault:"10m"`
	TTLPolicyFile      string        `env:"SUPERLINKS_TTL_POLICY"`

	// Optimistic mutations
	DebounceWindow time.Duration `env:"SUPERLINKS_DEBOUNCE" envDefault:"500ms"`

	// Proxy settings
	ProxyMode     string `env:"SUPERLINKS_PROXY_MODE" envDefault:"no-proxy"` // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string `env:"SUPERLINKS_PROXY_HOST"`
	ProxyPort     int    `env:"SUPERLINKS_PROXY_PORT"`
	ProxyUser     string `env:"SUPERLINKS_PROXY_USER"`
	ProxyPassword string `env:"SUPERLINKS_PROXY_PASSWORD"`
	NoProxy       string `env:"SUPERLINKS_NO_PROXY"` // Comma-separated list of hosts to bypass proxy

	// Observability
	LogLevel    string `env:"SUPERLINKS_LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"SUPERLINKS_METRICS_ADDR"`
}

// Load builds a Config from defaults and the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && cfg.ProxyHost == "" {
		cfg.parseProxyURL(envProxy)
	}
	return cfg, nil
}

// Default returns a Config holding only the built-in defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:         "https://api.superlinks.app",
		APIRate:            constants.DefaultAPIRate,
		APIBurst:           constants.DefaultAPIBurst,
		MaxConcurrent:      constants.DefaultMaxConcurrent,
		UploadTimeout:      constants.DefaultUploadTimeout,
		UploadBackend:      BackendAPI,
		S3Region:           "us-east-1",
		ObjectPrefix:       "uploads",
		CacheSweepInterval: constants.CacheSweepInterval,
		DebounceWindow:     constants.DefaultDebounceWindow,
		ProxyMode:          "no-proxy",
		LogLevel:           "info",
	}
}

// MergeWithFlags merges config with command-line flags.
// Priority (highest to lowest):
//  1. --token flag
//  2. SUPERLINKS_TOKEN environment variable
//  3. --token-file flag / SUPERLINKS_TOKEN_FILE
//  4. Default session token file (~/.config/superlinks/token)
func (c *Config) MergeWithFlags(token, tokenFile, apiBaseURL string, maxConcurrent int) {
	var sources []string

	var defaultTokenValue string
	if defaultTokenPath := GetDefaultTokenPath(); defaultTokenPath != "" {
		if value, err := ReadTokenFile(defaultTokenPath); err == nil && value != "" {
			defaultTokenValue = value
			sources = append(sources, fmt.Sprintf("default token file (%s)", defaultTokenPath))
		}
	}

	if tokenFile == "" {
		tokenFile = c.TokenFile
	}
	var explicitTokenValue string
	if tokenFile != "" {
		if value, err := ReadTokenFile(tokenFile); err == nil && value != "" {
			explicitTokenValue = value
			sources = append(sources, "--token-file flag")
		}
	}

	envToken := c.Token
	if envToken != "" {
		sources = append(sources, "SUPERLINKS_TOKEN environment variable")
	}
	if token != "" {
		sources = append(sources, "--token flag")
	}

	if len(sources) > 1 {
		log.Printf("[WARN] Multiple token sources detected: %v", sources)
		log.Printf("[WARN] Using: %s", sources[len(sources)-1])
	}

	// Apply in order of priority, each overwriting the previous
	if defaultTokenValue != "" {
		c.Token = defaultTokenValue
	}
	if explicitTokenValue != "" {
		c.Token = explicitTokenValue
	}
	if envToken != "" {
		c.Token = envToken
	}
	if token != "" {
		c.Token = token
	}

	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if maxConcurrent > 0 {
		c.MaxConcurrent = maxConcurrent
	}

	// Ensure HTTPS scheme
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
}

// parseProxyURL parses a proxy URL from environment variable
func (c *Config) parseProxyURL(proxyURL string) {
	proxyURL = strings.TrimPrefix(proxyURL, "http://")
	proxyURL = strings.TrimPrefix(proxyURL, "https://")

	parts := strings.Split(proxyURL, ":")
	if len(parts) >= 1 {
		c.ProxyHost = parts[0]
	}
	if len(parts) >= 2 {
		if port, err := strconv.Atoi(strings.TrimSuffix(parts[1], "/")); err == nil {
			c.ProxyPort = port
		}
	}
	if c.ProxyHost != "" && (c.ProxyMode == "no-proxy" || c.ProxyMode == "") {
		c.ProxyMode = "system"
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent uploads must be at least 1")
	}
	if c.APIRate < 0 || c.APIBurst < 0 {
		return fmt.Errorf("API rate and burst must not be negative")
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload timeout must be positive")
	}
	switch c.UploadBackend {
	case BackendAPI:
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("SUPERLINKS_S3_BUCKET is required for the s3 upload backend")
		}
	case BackendAzure:
		if c.AzureAccount == "" || c.AzureContainer == "" {
			return fmt.Errorf("SUPERLINKS_AZURE_ACCOUNT and SUPERLINKS_AZURE_CONTAINER are required for the azure upload backend")
		}
	default:
		return fmt.Errorf("unsupported upload backend: %s", c.UploadBackend)
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode)
	}
	return nil
}
