package config

import (
	"context"
	"net/http"

	"resume-anonymizer/internal/domain"
	"resume-anonymizer/internal/handler"
	"resume-anonymizer/internal/infra/supabase"
	"resume-anonymizer/internal/metrics"
	"resume-anonymizer/internal/remote"
	"resume-anonymizer/internal/repository"
	"resume-anonymizer/internal/service"
	"resume-anonymizer/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Container holds all application dependencies
type Container struct {
	Config            domain.Config
	Logger            domain.Logger
	Metrics           *metrics.Metrics
	SupabaseClient    domain.SupabaseClient
	SessionRepository domain.SessionRepository
	PIIClient         *remote.PIIClient
	SessionService    *service.SessionService
	EditorService     *service.EditorService
	DetectionService  *service.DetectionService
	AuthService       domain.AuthService
	RateLimiter       *handler.RateLimiter

	redis *redis.Client
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return NewContainerWithConfig(NewConfig())
}

// NewContainerWithConfig wires every dependency from config. Sessions are kept in memory when
// Supabase is not configured, and the Redis cache is skipped when REDIS_URL is empty or unreachable.
// Without Supabase, API requests authenticate with DEV_AUTH_TOKEN, or are all rejected when it is unset.
func NewContainerWithConfig(config domain.Config) *Container {
	appLogger := logger.NewLogger(config.GetLogLevel(), config.GetLogFormat())
	m := metrics.New()

	c := &Container{
		Config:  config,
		Logger:  appLogger,
		Metrics: m,
	}

	supabaseClient := supabase.NewSupabaseClient(config, appLogger)
	var sessionRepo domain.SessionRepository
	var storage domain.StorageService
	if err := supabaseClient.Initialize(); err != nil {
		appLogger.Warn("Supabase unavailable, sessions are kept in memory", "error", err.Error())
		sessionRepo = repository.NewMemorySessionRepository()
		if token := config.GetDevAuthToken(); token != "" {
			appLogger.Warn("Development auth enabled, every request with DEV_AUTH_TOKEN acts as one user", "user_id", service.DevUserID)
			c.AuthService = service.NewDevAuthService(token, appLogger)
		} else {
			appLogger.Warn("No auth provider configured, API requests will be rejected until Supabase or DEV_AUTH_TOKEN is set")
		}
	} else {
		sessionRepo = repository.NewSupabaseSessionRepository(supabaseClient, appLogger)
		storage = supabase.NewStorageService(config, appLogger)
	}
	c.SupabaseClient = supabaseClient

	if url := config.GetRedisURL(); url != "" {
		client, err := repository.NewRedisClient(context.Background(), url)
		if err != nil {
			appLogger.Warn("Redis unavailable, session cache disabled", "error", err.Error())
		} else {
			c.redis = client
			sessionRepo = repository.NewCachedSessionRepository(sessionRepo, client, config.GetSessionCacheTTL(), appLogger)
			appLogger.Info("Session cache enabled", "ttl", config.GetSessionCacheTTL().String())
		}
	}
	c.SessionRepository = sessionRepo

	c.PIIClient = remote.NewPIIClient(
		config.GetPIIServiceURL(),
		config.GetPIIServiceTimeout(),
		remote.DefaultBreakerSettings(),
		appLogger,
	)

	c.SessionService = service.NewSessionService(sessionRepo, appLogger)
	c.EditorService = service.NewEditorService(c.SessionService, c.PIIClient, config.GetPublicBaseURL(), m, appLogger)
	c.DetectionService = service.NewDetectionService(
		c.PIIClient,
		service.NewFitzInspector(appLogger),
		storage,
		c.EditorService,
		config.GetMaxFileSize(),
		m,
		appLogger,
	)
	c.EditorService.StartIdleSweep(config.GetEditorIdleTimeout())
	if c.AuthService == nil {
		c.AuthService = service.NewAuthService(supabaseClient, appLogger)
	}
	c.RateLimiter = handler.NewRateLimiter(config.GetRateLimitRPM(), config.GetRateLimitBurst(), appLogger)

	return c
}

// Router builds the HTTP handler serving the API.
func (c *Container) Router() http.Handler {
	return handler.NewRouter(
		handler.NewAuthHandler(),
		handler.NewSessionHandler(c.SessionService, c.EditorService, c.Logger),
		handler.NewEditorHandler(c.EditorService, c.DetectionService, c.Config.GetMaxFileSize(), c.Logger),
		handler.NewAuthMiddleware(c.AuthService, c.Logger).Middleware,
		c.RateLimiter.Middleware,
		c.Metrics.Handler(),
		c.Config.GetAllowedOrigins(),
	)
}

// Close saves every open editor and releases background resources.
func (c *Container) Close(ctx context.Context) {
	c.EditorService.Shutdown(ctx)
	c.RateLimiter.Close()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.Error("Failed to close Redis client", err)
		}
	}
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}
