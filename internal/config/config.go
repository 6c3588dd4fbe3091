package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	JWTIssuer     string
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	CORSAllowedOrigins []string

	VerifyCodeTTL        time.Duration
	VerifyResendCooldown time.Duration
	VerifyLockout        time.Duration
	ResetTokenTTL        time.Duration
	ResetRequestCooldown time.Duration
	ResetLockout         time.Duration
	ChallengeMaxAttempts int
	LoginMaxFailures     int
	LoginLockout         time.Duration

	MailRelayURL  string
	NotifyTimeout time.Duration

	AuthRateLimitPerMin           int
	PasswordForgotRateLimitPerMin int
	APIRateLimitPerMin            int
	RateLimitUseRedis             bool

	HealthProbeTimeout time.Duration
	HealthStartupGrace time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		JWTIssuer: getEnv("JWT_ISSUER", "venturegate-auth"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		ChallengeMaxAttempts: getEnvInt("CHALLENGE_MAX_ATTEMPTS", 5),
		LoginMaxFailures:     getEnvInt("LOGIN_MAX_FAILURES", 5),

		MailRelayURL: os.Getenv("MAIL_RELAY_URL"),

		AuthRateLimitPerMin:           getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		PasswordForgotRateLimitPerMin: getEnvInt("PASSWORD_FORGOT_RATE_LIMIT_PER_MIN", 5),
		APIRateLimitPerMin:            getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		RateLimitUseRedis:             getEnvBool("RATE_LIMIT_USE_REDIS", false),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "venturegate-auth"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"JWT_ACCESS_TTL", "15m", &cfg.JWTAccessTTL},
		{"JWT_REFRESH_TTL", "168h", &cfg.JWTRefreshTTL},
		{"VERIFY_CODE_TTL", "10m", &cfg.VerifyCodeTTL},
		{"VERIFY_RESEND_COOLDOWN", "60s", &cfg.VerifyResendCooldown},
		{"VERIFY_LOCKOUT", "1h", &cfg.VerifyLockout},
		{"RESET_TOKEN_TTL", "1h", &cfg.ResetTokenTTL},
		{"RESET_REQUEST_COOLDOWN", "5m", &cfg.ResetRequestCooldown},
		{"RESET_LOCKOUT", "2h", &cfg.ResetLockout},
		{"LOGIN_LOCKOUT", "1h", &cfg.LoginLockout},
		{"NOTIFY_TIMEOUT", "10s", &cfg.NotifyTimeout},
		{"HEALTH_PROBE_TIMEOUT", "2s", &cfg.HealthProbeTimeout},
		{"HEALTH_STARTUP_GRACE", "0s", &cfg.HealthStartupGrace},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 1h")
	}
	if c.JWTRefreshTTL <= 0 || c.JWTRefreshTTL > (30*24*time.Hour) {
		errs = append(errs, "JWT_REFRESH_TTL must be between 1s and 30d")
	}
	if c.VerifyCodeTTL <= 0 {
		errs = append(errs, "VERIFY_CODE_TTL must be > 0")
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, "RESET_TOKEN_TTL must be > 0")
	}
	if c.ChallengeMaxAttempts <= 0 {
		errs = append(errs, "CHALLENGE_MAX_ATTEMPTS must be > 0")
	}
	if c.LoginMaxFailures <= 0 {
		errs = append(errs, "LOGIN_MAX_FAILURES must be > 0")
	}
	if c.VerifyLockout <= 0 || c.ResetLockout <= 0 || c.LoginLockout <= 0 {
		errs = append(errs, "lockout durations must be > 0")
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, "NOTIFY_TIMEOUT must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.PasswordForgotRateLimitPerMin <= 0 {
		errs = append(errs, "PASSWORD_FORGOT_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RateLimitUseRedis && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_USE_REDIS=true")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
