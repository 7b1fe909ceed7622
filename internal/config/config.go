package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SatWatch worker and gateway.
type Config struct {
	Server    ServerConfig
	AMQP      AMQPConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Providers ProvidersConfig
}

type ServerConfig struct {
	Port         int
	Env          string
	SSEHeartbeat time.Duration
	RateLimit    int
}

type AMQPConfig struct {
	URL      string
	Prefetch int
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WorkerConfig struct {
	// StartupDelay is the user-visible pause before order.started (and
	// before the unknown-job-type failure) so stream clients can observe
	// the lifecycle progressing.
	StartupDelay        time.Duration
	FeasibilityInterval time.Duration
	FeasibilityAttempts int
}

type ProvidersConfig struct {
	Enabled    []string
	Copernicus CopernicusConfig
	Planetary  PlanetaryConfig
	Umbra      UmbraConfig
}

type CopernicusConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PlanetaryConfig struct {
	BaseURL string
	Timeout time.Duration
}

type UmbraConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

var knownProviders = map[string]bool{
	"copernicus": true,
	"planetary":  true,
	"umbra":      true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         envInt("SATWATCH_PORT", 8080),
			Env:          envString("SATWATCH_ENV", "development"),
			SSEHeartbeat: envDuration("SSE_HEARTBEAT", 15*time.Second),
			RateLimit:    envInt("RATE_LIMIT_PER_MIN", 60),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Prefetch: envInt("AMQP_PREFETCH", 5),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			BaseURL: os.Getenv("STORAGE_BASE_URL"),
			Timeout: envDuration("STORAGE_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			StartupDelay:        envDuration("WORKER_STARTUP_DELAY", 3*time.Second),
			FeasibilityInterval: envDuration("FEASIBILITY_POLL_INTERVAL", 10*time.Second),
			FeasibilityAttempts: envInt("FEASIBILITY_POLL_ATTEMPTS", 30),
		},
		Providers: ProvidersConfig{
			Enabled: envList("PROVIDERS", []string{"copernicus", "planetary", "umbra"}),
			Copernicus: CopernicusConfig{
				BaseURL: envString("COPERNICUS_BASE_URL", "https://stac.dataspace.copernicus.eu/v1"),
				Timeout: envDuration("COPERNICUS_TIMEOUT", 60*time.Second),
			},
			Planetary: PlanetaryConfig{
				BaseURL: envString("PLANETARY_BASE_URL", "https://planetarycomputer.microsoft.com/api"),
				Timeout: envDuration("PLANETARY_TIMEOUT", 60*time.Second),
			},
			Umbra: UmbraConfig{
				BaseURL: envString("UMBRA_BASE_URL", "https://api.canopy.umbra.space"),
				Token:   os.Getenv("UMBRA_TOKEN"),
				Timeout: envDuration("UMBRA_TIMEOUT", 60*time.Second),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AMQP.URL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if c.AMQP.Prefetch < 1 {
		return fmt.Errorf("AMQP_PREFETCH must be at least 1, got %d", c.AMQP.Prefetch)
	}

	if len(c.Providers.Enabled) == 0 {
		return fmt.Errorf("PROVIDERS must name at least one provider")
	}
	for _, name := range c.Providers.Enabled {
		if !knownProviders[name] {
			return fmt.Errorf("PROVIDERS must list only copernicus, planetary, umbra; got %q", name)
		}
		if name == "umbra" && c.Providers.Umbra.Token == "" {
			return fmt.Errorf("UMBRA_TOKEN is required when the umbra provider is enabled")
		}
	}

	if c.Worker.FeasibilityAttempts < 1 {
		return fmt.Errorf("FEASIBILITY_POLL_ATTEMPTS must be at least 1, got %d", c.Worker.FeasibilityAttempts)
	}

	if c.Storage.BaseURL != "" &&
		!strings.HasPrefix(c.Storage.BaseURL, "http://") && !strings.HasPrefix(c.Storage.BaseURL, "https://") {
		return fmt.Errorf("STORAGE_BASE_URL must start with http:// or https://, got %q", c.Storage.BaseURL)
	}

	return nil
}

// ValidateGateway checks the additional settings the gateway binary needs.
// The worker runs without redis or the storage service.
func (c *Config) ValidateGateway() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Storage.BaseURL == "" {
		return fmt.Errorf("STORAGE_BASE_URL is required")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
