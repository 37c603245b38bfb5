package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"provider_gateway/internal/auth"
	"provider_gateway/internal/cache"
	"provider_gateway/internal/catalog"
	"provider_gateway/internal/config"
	"provider_gateway/internal/gateway"
	"provider_gateway/internal/logging"
	"provider_gateway/internal/middleware"
	"provider_gateway/internal/providers"
	"provider_gateway/internal/ratelimit"
	"provider_gateway/internal/storage"
	"provider_gateway/internal/utils"
	"provider_gateway/internal/vault"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Gateway     *gateway.Gateway
	Credentials storage.CredentialStore
	Catalog     *catalog.Catalog
	Refresher   *catalog.Refresher
	Cache       cache.Cache
	Vault       *vault.Vault
	ServiceKeys auth.ServiceKeyStore
	RateLimiter *ratelimit.RateLimiter // nil when rate limiting is disabled
	Audit       *logging.AuditLogger
	Logger      *utils.Logger

	DB    *storage.DB
	Redis *redis.Client

	credentialTTL time.Duration
	modelListTTL  time.Duration
	rateLimit     int
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	v, err := buildVault(cfg.Vault)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var redisClient *redis.Client
	var resultCache cache.Cache
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		resultCache = cache.NewRedisCache(redisClient)
	} else {
		resultCache = cache.NewMemoryCache(cfg.Cache.MemorySize)
	}

	modelCatalog := catalog.New()
	refresher := catalog.NewRefresher(modelCatalog, catalog.RefresherConfig{
		SourceURL: cfg.Catalog.SourceURL,
		Interval:  cfg.Catalog.RefreshInterval,
	}, utils.NewLogger("catalog"))

	registry, err := providers.NewRegistry(providers.RegistryConfig{
		UpstreamTimeout: cfg.Provider.RequestTimeout,
		GroqBaseURL:     cfg.Provider.GroqBaseURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize provider registry: %w", err)
	}

	credentials := storage.NewCredentialRepository(db, v)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = ratelimit.NewRateLimiter(redisClient)
	}

	auditLogger, err := logging.NewAuditLogger(
		cfg.AuditLogger.FilePathTemplate,
		cfg.AuditLogger.MaxSize,
		cfg.AuditLogger.MaxFiles,
		cfg.AuditLogger.BufferSize,
		cfg.AuditLogger.FlushInterval,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	serviceKeys := auth.NewInMemoryServiceKeyStore()
	for _, entry := range cfg.ServiceKeys {
		serviceKeys.Add(entry.Key, auth.CallerRecord{ID: entry.ID, Name: entry.Name})
	}

	logger := utils.NewLogger("gateway")

	deps := &Dependencies{
		Gateway:     gateway.New(modelCatalog, registry, credentials, v, logger),
		Credentials: credentials,
		Catalog:     modelCatalog,
		Refresher:   refresher,
		Cache:       resultCache,
		Vault:       v,
		ServiceKeys: serviceKeys,
		RateLimiter: limiter,
		Audit:       auditLogger,
		Logger:      logger,

		DB:    db,
		Redis: redisClient,

		credentialTTL: cfg.Cache.CredentialTTL,
		modelListTTL:  cfg.Cache.ModelListTTL,
		rateLimit:     cfg.RateLimit.RequestsPerMinute,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

func buildVault(cfg config.VaultConfig) (*vault.Vault, error) {
	if cfg.Key != "" {
		return vault.NewFromBase64(cfg.Key)
	}
	return vault.NewFromPassphrase(cfg.Passphrase, cfg.Salt)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	keyAuth := middleware.ServiceKeyMiddleware(deps.ServiceKeys)
	jwtAuth := middleware.JWTMiddleware(cfg.JWTSecret)

	// Playground token exchange - public
	mux.Handle("POST /auth/token", auth.TokenHandler(deps.ServiceKeys, cfg.JWTSecret))

	// Completion endpoints
	mux.Handle("POST /provider/playground/completion", jwtAuth(http.HandlerFunc(deps.handlePlaygroundCompletion)))
	mux.Handle("POST /provider/completion", keyAuth(http.HandlerFunc(deps.handleCompletion)))

	// Credential management. Detail routes answer with and without a
	// trailing slash, so clients built against the slashed form keep working.
	mux.Handle("GET /provider/{$}", keyAuth(http.HandlerFunc(deps.handleListCredentials)))
	mux.Handle("POST /provider/{$}", keyAuth(http.HandlerFunc(deps.handleCreateCredential)))
	mux.Handle("GET /provider/{id}", keyAuth(http.HandlerFunc(deps.handleGetCredential)))
	mux.Handle("GET /provider/{id}/{$}", keyAuth(http.HandlerFunc(deps.handleGetCredential)))
	mux.Handle("PUT /provider/{id}", keyAuth(http.HandlerFunc(deps.handleUpdateCredential)))
	mux.Handle("PUT /provider/{id}/{$}", keyAuth(http.HandlerFunc(deps.handleUpdateCredential)))
	mux.Handle("DELETE /provider/{id}", keyAuth(http.HandlerFunc(deps.handleDeleteCredential)))
	mux.Handle("DELETE /provider/{id}/{$}", keyAuth(http.HandlerFunc(deps.handleDeleteCredential)))

	// Model catalog
	mux.Handle("GET /provider/ai/models/{$}", keyAuth(http.HandlerFunc(deps.handleListModels)))

	// Health check endpoint - public
	mux.HandleFunc("GET /healthz", deps.handleHealth)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if d.DB != nil {
		if err := d.DB.Ping(ctx); err != nil {
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// callerFromRequest converts the middleware identity into a gateway caller.
func callerFromRequest(r *http.Request) (gateway.Caller, bool) {
	record, ok := middleware.GetCaller(r.Context())
	if !ok {
		return gateway.Caller{}, false
	}
	return gateway.Caller{ID: record.ID, Name: record.Name}, true
}
