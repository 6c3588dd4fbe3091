package service

import (
	"context"
	"time"

	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/security"
)

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenIssuer mints and revokes the bearer tokens for an account.
type TokenIssuer interface {
	Issue(ctx context.Context, account *domain.Account) (*TokenPair, error)
	Invalidate(ctx context.Context, refreshToken string) error
	ValidateAccess(ctx context.Context, accessToken string) (*security.Claims, error)
}

// Notification is one outbound message to an account holder.
type Notification struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationSender delivers a notification. Delivery failure is an
// ordinary error; callers decide whether it is fatal for the operation.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// SecretSource mints the challenge secrets. Split out so tests can pin
// the generated values.
type SecretSource interface {
	NumericCode() (string, error)
	AlphanumericToken() (string, error)
}

// AuthFlows is the account operation surface the HTTP layer drives.
type AuthFlows interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*TokenPair, *domain.Account, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, token, newPassword string) error
	ChangePassword(ctx context.Context, accountID uint, currentPassword, newPassword string) error
	Logout(ctx context.Context, refreshToken string) error
}
