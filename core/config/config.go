package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds node-level settings loaded from environment variables.
// See Signet.env for variable names and dummy values.
type Config struct {
	ListenAddr     string // API listen address (default :8080)
	DBPath         string // LevelDB path for blocks + audit trail
	JWTSecret      string // JWT secret for admin/peer endpoints
	APIKey         string // API key for peer endpoints
	LogFile        string // Node log file path
	RedisAddr      string // Optional Redis address for the biometric cache
	BiometricKey   string // External biometric provider API key (empty = local heuristics)
	BiometricURL   string // External biometric provider endpoint
	ProviderURL    string // Rich signature provider endpoint
	ProviderKey    string // Rich signature provider API key
	RequestTimeout time.Duration

	Tenant TenantConfig
}

// Load reads node configuration from the environment. Signet.env is loaded
// first so local/dev values are picked up without exporting anything.
func Load() (*Config, error) {
	godotenv.Load("Signet.env")

	cfg := &Config{
		ListenAddr:     envOr("SIGNET_LISTEN_ADDR", ":8080"),
		DBPath:         envOr("SIGNET_DB_PATH", "./signet_db"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		APIKey:         os.Getenv("API_KEY"),
		LogFile:        envOr("SIGNET_LOG_FILE", "logs/signet-node.log"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		BiometricKey:   os.Getenv("BIOMETRIC_API_KEY"),
		BiometricURL:   os.Getenv("BIOMETRIC_API_URL"),
		ProviderURL:    os.Getenv("SIGNATURE_PROVIDER_URL"),
		ProviderKey:    os.Getenv("SIGNATURE_PROVIDER_KEY"),
		RequestTimeout: envDurationOr("SIGNET_REQUEST_TIMEOUT_MS", 10*time.Second),
	}

	tenantPath := os.Getenv("TENANT_CONFIG_PATH")
	if tenantPath != "" {
		data, err := os.ReadFile(tenantPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read tenant config: %w", err)
		}
		tenant, err := ParseTenantConfig(data)
		if err != nil {
			return nil, err
		}
		cfg.Tenant = *tenant
	} else {
		cfg.Tenant = DefaultTenantConfig()
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
