package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/venturegate/auth-service/internal/app"
	"github.com/venturegate/auth-service/internal/config"
	"github.com/venturegate/auth-service/internal/database"
	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/health"
	"github.com/venturegate/auth-service/internal/http/handler"
	"github.com/venturegate/auth-service/internal/http/middleware"
	"github.com/venturegate/auth-service/internal/http/router"
	"github.com/venturegate/auth-service/internal/observability"
	"github.com/venturegate/auth-service/internal/repository"
	"github.com/venturegate/auth-service/internal/security"
	"github.com/venturegate/auth-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewAccountRepository,
	repository.NewProfileRepository,
	provideTokenBlacklist,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideHasher,
	provideSecretSource,
)

var ServiceSet = wire.NewSet(
	provideLifecycle,
	provideTokenService,
	provideNotifier,
	provideAuthService,
	wire.Bind(new(service.TokenIssuer), new(*service.TokenService)),
	wire.Bind(new(service.AuthFlows), new(*service.AuthService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideForgotRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

// Distinct types so wire can tell the three limiter middlewares apart.
type globalRateLimiter func(http.Handler) http.Handler
type authRateLimiter func(http.Handler) http.Handler
type forgotRateLimiter func(http.Handler) http.Handler

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
}

func provideHasher() *security.Hasher {
	return security.NewHasher(security.DefaultHasherParams())
}

func provideSecretSource() service.SecretSource {
	return security.NewRandomSource()
}

func provideTokenBlacklist(client *redis.Client) repository.TokenBlacklist {
	return repository.NewTokenBlacklist(client)
}

func provideLifecycle(cfg *config.Config) *service.AccountLifecycle {
	return service.NewAccountLifecycle(service.LifecyclePolicy{
		Verification: domain.ChallengePolicy{
			TTL:             cfg.VerifyCodeTTL,
			MaxAttempts:     cfg.ChallengeMaxAttempts,
			LockoutDuration: cfg.VerifyLockout,
		},
		Reset: domain.ChallengePolicy{
			TTL:             cfg.ResetTokenTTL,
			MaxAttempts:     cfg.ChallengeMaxAttempts,
			LockoutDuration: cfg.ResetLockout,
		},
		ResendCooldown:       cfg.VerifyResendCooldown,
		ResetRequestCooldown: cfg.ResetRequestCooldown,
		LoginMaxFailures:     cfg.LoginMaxFailures,
		LoginLockout:         cfg.LoginLockout,
	})
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager, blacklist repository.TokenBlacklist) *service.TokenService {
	return service.NewTokenService(jwt, blacklist, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func provideNotifier(cfg *config.Config, logger *slog.Logger) service.NotificationSender {
	if cfg.MailRelayURL == "" {
		logger.Warn("MAIL_RELAY_URL not set, logging notifications instead of delivering them")
		return service.NewDevNotifier(logger)
	}
	return service.NewRelayNotifier(&http.Client{Timeout: cfg.NotifyTimeout}, cfg.MailRelayURL)
}

func provideAuthService(
	cfg *config.Config,
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	lifecycle *service.AccountLifecycle,
	hasher *security.Hasher,
	secrets service.SecretSource,
	notifier service.NotificationSender,
	tokens *service.TokenService,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(accounts, profiles, lifecycle, hasher, secrets, notifier, tokens, cfg.NotifyTimeout, logger)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient *redis.Client) globalRateLimiter {
	if cfg.RateLimitUseRedis && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "rl:api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute, "api").Middleware()
}

func provideAuthRateLimiter(cfg *config.Config, redisClient *redis.Client) authRateLimiter {
	if cfg.RateLimitUseRedis && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "rl:auth")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute, "auth").Middleware()
}

func provideForgotRateLimiter(cfg *config.Config, redisClient *redis.Client) forgotRateLimiter {
	if cfg.RateLimitUseRedis && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "rl:password_forgot")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.PasswordForgotRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"password_forgot",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.PasswordForgotRateLimitPerMin, time.Minute, "password_forgot").Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	tokens service.TokenIssuer,
	global globalRateLimiter,
	auth authRateLimiter,
	forgot forgotRateLimiter,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:                authHandler,
		Tokens:                     tokens,
		CORSOrigins:                cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:           cfg.AuthRateLimitPerMin,
		PasswordForgotRateLimitRPM: cfg.PasswordForgotRateLimitPerMin,
		APIRateLimitRPM:            cfg.APIRateLimitPerMin,
		GlobalRateLimiter:          global,
		AuthRateLimiter:            auth,
		ForgotRateLimiter:          forgot,
		Readiness:                  readiness,
		EnableOTelHTTP:             cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *health.ProbeRunner {
	return health.NewProbeRunner(
		cfg.HealthProbeTimeout,
		cfg.HealthStartupGrace,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
	)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient *redis.Client,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}
