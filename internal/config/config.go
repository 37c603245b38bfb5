package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort    string
	JWTSecret   []byte
	Database    DatabaseConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Vault       VaultConfig
	Catalog     CatalogConfig
	Provider    ProviderConfig
	RateLimit   RateLimitConfig
	AuditLogger AuditLoggerConfig
	ServiceKeys []ServiceKeyEntry
}

// ServiceKeyEntry seeds one service key mapping to a caller identity.
type ServiceKeyEntry struct {
	ID   string
	Name string
	Key  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds result-cache settings
type CacheConfig struct {
	CredentialTTL time.Duration
	ModelListTTL  time.Duration
	MemorySize    int
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// VaultConfig holds credential-encryption settings. Either a base64 key or a
// passphrase with salt must be set.
type VaultConfig struct {
	Key        string
	Passphrase string
	Salt       string
}

// CatalogConfig holds model-catalog refresh settings
type CatalogConfig struct {
	SourceURL       string
	RefreshInterval time.Duration
}

// ProviderConfig holds upstream provider settings
type ProviderConfig struct {
	RequestTimeout time.Duration // timeout for synchronous provider requests
	GroqBaseURL    string        // override for tests and proxies
}

// RateLimitConfig holds per-caller request limits
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

type AuditLoggerConfig struct {
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnvString("HTTP_PORT", "8080")
	jwtSecret := []byte(getEnvString("JWT_SECRET", "supersecretkey"))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	vaultCfg := VaultConfig{
		Key:        os.Getenv("VAULT_KEY"),
		Passphrase: os.Getenv("VAULT_PASSPHRASE"),
		Salt:       os.Getenv("VAULT_SALT"),
	}
	if vaultCfg.Key == "" && vaultCfg.Passphrase == "" {
		return nil, fmt.Errorf("either VAULT_KEY or VAULT_PASSPHRASE is required")
	}

	cfg := &Config{
		HTTPPort:  port,
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			CredentialTTL: getEnvDuration("CACHE_CREDENTIAL_TTL", 5*time.Minute),
			ModelListTTL:  getEnvDuration("CACHE_MODEL_LIST_TTL", 15*time.Minute),
			MemorySize:    getEnvInt("CACHE_MEMORY_SIZE", 1000),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Vault: vaultCfg,
		Catalog: CatalogConfig{
			SourceURL:       getEnvString("CATALOG_SOURCE_URL", ""),
			RefreshInterval: getEnvDuration("CATALOG_REFRESH_INTERVAL", 6*time.Hour),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			GroqBaseURL:    getEnvString("PROVIDER_GROQ_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvString("RATE_LIMIT_ENABLED", "false") == "true",
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		},
		AuditLogger: AuditLoggerConfig{
			FilePathTemplate: getEnvString("AUDIT_LOGGER_FILE_PATH_TEMPLATE", "/var/log/provider-gateway/completions-%s.jsonl"),
			MaxSize:          getEnvInt64("AUDIT_LOGGER_MAX_SIZE", 10_485_760),              // default 10 MB
			MaxFiles:         getEnvInt("AUDIT_LOGGER_MAX_FILES", 5),                        // default 5
			BufferSize:       getEnvInt("AUDIT_LOGGER_BUFFER_SIZE", 100),                    // default 100
			FlushInterval:    getEnvDuration("AUDIT_LOGGER_FLUSH_INTERVAL", 60*time.Second), // default 60 seconds
		},
	}

	serviceKeys, err := parseServiceKeys(os.Getenv("SERVICE_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.ServiceKeys = serviceKeys

	return cfg, nil
}

// parseServiceKeys parses SERVICE_KEYS entries of the form
// "callerID:callerName:key", comma-separated.
func parseServiceKeys(raw string) ([]ServiceKeyEntry, error) {
	if raw == "" {
		return nil, nil
	}

	var entries []ServiceKeyEntry
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 3)
		if len(fields) != 3 || fields[0] == "" || fields[2] == "" {
			return nil, fmt.Errorf("invalid SERVICE_KEYS entry %q, expected id:name:key", part)
		}
		entries = append(entries, ServiceKeyEntry{
			ID:   fields[0],
			Name: fields[1],
			Key:  fields[2],
		})
	}
	return entries, nil
}
