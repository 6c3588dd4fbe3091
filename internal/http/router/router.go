package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/venturegate/auth-service/internal/health"
	"github.com/venturegate/auth-service/internal/http/handler"
	"github.com/venturegate/auth-service/internal/http/middleware"
	"github.com/venturegate/auth-service/internal/http/response"
	"github.com/venturegate/auth-service/internal/service"
)

type Dependencies struct {
	AuthHandler                *handler.AuthHandler
	Tokens                     service.TokenIssuer
	CORSOrigins                []string
	AuthRateLimitRPM           int
	PasswordForgotRateLimitRPM int
	APIRateLimitRPM            int
	GlobalRateLimiter          func(http.Handler) http.Handler
	AuthRateLimiter            func(http.Handler) http.Handler
	ForgotRateLimiter          func(http.Handler) http.Handler
	Readiness                  *health.ProbeRunner
	EnableOTelHTTP             bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	forgotLimiter := dep.ForgotRateLimiter
	if forgotLimiter == nil {
		forgotLimiter = middleware.NewRateLimiter(dep.PasswordForgotRateLimitRPM, time.Minute, "password_forgot").Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		r.With(authLimiter).Post("/verify", dep.AuthHandler.VerifyEmail)
		r.With(authLimiter).Post("/verify/resend", dep.AuthHandler.ResendVerification)
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
		r.With(forgotLimiter).Post("/password/forgot", dep.AuthHandler.ForgotPassword)
		r.With(authLimiter).Post("/password/reset", dep.AuthHandler.ResetPassword)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(dep.Tokens))
			r.With(authLimiter).Post("/password/change", dep.AuthHandler.ChangePassword)
			r.Post("/logout", dep.AuthHandler.Logout)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
