package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/venturegate/auth-service/internal/http/middleware"
	"github.com/venturegate/auth-service/internal/http/response"
	"github.com/venturegate/auth-service/internal/observability"
	"github.com/venturegate/auth-service/internal/service"
)

// AuthHandler exposes the account lifecycle over HTTP. Every endpoint
// decodes its body, delegates to the service layer and maps the
// outcome onto a stable error envelope.
type AuthHandler struct {
	auth service.AuthFlows
}

func NewAuthHandler(auth service.AuthFlows) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var in service.RegisterInput
	if !decodeBody(w, r, &in) {
		status = "failure"
		observability.RecordSignup(r.Context(), "failure")
		return
	}
	account, err := h.auth.Register(r.Context(), in)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.failed", "reason", err.Error())
		observability.RecordSignup(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.register.success", "account_id", account.ID)
	observability.RecordSignup(r.Context(), "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"account": account,
		"message": "verification code sent",
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_email", status, time.Since(start))
	}()

	var in verifyEmailRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), in.Email, in.Code); err != nil {
		status = "failure"
		if errors.Is(err, service.ErrAccountLocked) {
			observability.RecordLockout(r.Context(), "verification")
		}
		observability.Audit(r, "auth.verify.failed", "reason", err.Error())
		observability.RecordVerificationEvent(r.Context(), "verify", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.verify.success")
	observability.RecordVerificationEvent(r.Context(), "verify", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "account verified"})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "resend_verification", status, time.Since(start))
	}()

	var in emailRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		return
	}
	if err := h.auth.ResendVerification(r.Context(), in.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.verify.resend.failed", "reason", err.Error())
		observability.RecordVerificationEvent(r.Context(), "resend", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.verify.resend.success")
	observability.RecordVerificationEvent(r.Context(), "resend", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var in credentialsRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "failure")
		return
	}
	pair, account, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		status = "failure"
		if errors.Is(err, service.ErrAccountLocked) {
			observability.RecordLockout(r.Context(), "login")
		}
		observability.Audit(r, "auth.login.failed", "reason", err.Error())
		observability.RecordAuthLogin(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.success", "account_id", account.ID)
	observability.RecordAuthLogin(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"account": account,
		"tokens":  pair,
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password", status, time.Since(start))
	}()

	var in emailRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.forgot.failed", "reason", err.Error())
		observability.RecordPasswordFlowEvent(r.Context(), "forgot", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.forgot.accepted")
	observability.RecordPasswordFlowEvent(r.Context(), "forgot", "success")
	// Deliberately the same body whether or not the account exists.
	response.JSON(w, r, http.StatusOK, map[string]string{
		"message": "if the account exists, a reset token has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var in resetPasswordRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		return
	}
	if err := h.auth.ResetPassword(r.Context(), in.Email, in.Token, in.NewPassword); err != nil {
		status = "failure"
		if errors.Is(err, service.ErrAccountLocked) {
			observability.RecordLockout(r.Context(), "reset")
		}
		observability.Audit(r, "auth.password.reset.failed", "reason", err.Error())
		observability.RecordPasswordFlowEvent(r.Context(), "reset", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.reset.success")
	observability.RecordPasswordFlowEvent(r.Context(), "reset", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "password reset"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "change_password", status, time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		status = "failure"
		observability.RecordPasswordFlowEvent(r.Context(), "change", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	accountID, err := claims.AccountID()
	if err != nil {
		status = "failure"
		observability.RecordPasswordFlowEvent(r.Context(), "change", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject", nil)
		return
	}
	var in changePasswordRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		return
	}
	if err := h.auth.ChangePassword(r.Context(), accountID, in.CurrentPassword, in.NewPassword); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.change.failed", "account_id", accountID, "reason", err.Error())
		observability.RecordPasswordFlowEvent(r.Context(), "change", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.change.success", "account_id", accountID)
	observability.RecordPasswordFlowEvent(r.Context(), "change", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	var in logoutRequest
	if !decodeBody(w, r, &in) {
		status = "failure"
		observability.RecordAuthLogout(r.Context(), "failure")
		return
	}
	if err := h.auth.Logout(r.Context(), in.RefreshToken); err != nil {
		status = "failure"
		observability.Audit(r, "auth.logout.failed", "reason", err.Error())
		observability.RecordAuthLogout(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout.success")
	observability.RecordAuthLogout(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return false
	}
	return true
}

// writeServiceError maps service outcomes onto HTTP statuses. The
// mapping is the API contract, so tests pin it case by case.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	var challengeErr *service.ChallengeError
	var rateErr *service.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", validationErr.Message,
			map[string]any{"field": validationErr.Field})
	case errors.As(err, &challengeErr):
		response.Error(w, r, http.StatusBadRequest, "INVALID_CHALLENGE", "incorrect code or token",
			map[string]any{"remaining_attempts": challengeErr.Remaining})
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", retryAfterSeconds(rateErr.Wait))
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "please wait before retrying",
			map[string]any{"retry_after_seconds": int(rateErr.Wait.Round(time.Second).Seconds())})
	case errors.Is(err, service.ErrAlreadyVerified):
		response.Error(w, r, http.StatusBadRequest, "ALREADY_VERIFIED", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidResetRequest):
		response.Error(w, r, http.StatusBadRequest, "INVALID_RESET_TOKEN", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		response.Error(w, r, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD", err.Error(), nil)
	case errors.Is(err, service.ErrPasswordUnchanged):
		response.Error(w, r, http.StatusBadRequest, "PASSWORD_UNCHANGED", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidToken):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", err.Error(), nil)
	case errors.Is(err, service.ErrNotVerified):
		response.Error(w, r, http.StatusForbidden, "NOT_VERIFIED", err.Error(), nil)
	case errors.Is(err, service.ErrAccountNotFound):
		response.Error(w, r, http.StatusNotFound, "ACCOUNT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrDuplicateEmail):
		response.Error(w, r, http.StatusConflict, "DUPLICATE_EMAIL", err.Error(), nil)
	case errors.Is(err, service.ErrAccountLocked):
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED", err.Error(), nil)
	case errors.Is(err, service.ErrNotificationFailed):
		response.Error(w, r, http.StatusBadGateway, "NOTIFICATION_FAILED", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
