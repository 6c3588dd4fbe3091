package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/repository"
	"github.com/venturegate/auth-service/internal/security"
)

const minPasswordLength = 8

// AuthService is the facade over the account state machine. Every
// state-changing operation runs inside a repository Mutate so that
// attempt counters written by failing paths persist alongside the
// outcome.
type AuthService struct {
	accounts      repository.AccountRepository
	profiles      repository.ProfileRepository
	lifecycle     *AccountLifecycle
	hasher        *security.Hasher
	secrets       SecretSource
	notifier      NotificationSender
	tokens        TokenIssuer
	notifyTimeout time.Duration
	logger        *slog.Logger
}

type RegisterInput struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Password     string `json:"password"`
	Investor     bool   `json:"is_investor"`
	Individual   bool   `json:"is_individual"`
	ContactInfo  string `json:"contact_info"`
	AddressInfo  string `json:"address_info"`
	BusinessName string `json:"business_name"`
}

func NewAuthService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	lifecycle *AccountLifecycle,
	hasher *security.Hasher,
	secrets SecretSource,
	notifier NotificationSender,
	tokens TokenIssuer,
	notifyTimeout time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:      accounts,
		profiles:      profiles,
		lifecycle:     lifecycle,
		hasher:        hasher,
		secrets:       secrets,
		notifier:      notifier,
		tokens:        tokens,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// Register creates an inactive account plus its profile record and
// sends the verification code. If the code cannot be delivered the
// whole registration is rolled back, so the holder can simply retry.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	code, err := s.secrets.NumericCode()
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Investor:     in.Investor,
		Individual:   in.Individual,
	}
	s.lifecycle.IssueVerification(account, code)
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	profile := &domain.Profile{
		AccountID:    account.ID,
		Kind:         profileKind(in),
		ContactInfo:  strings.TrimSpace(in.ContactInfo),
		AddressInfo:  strings.TrimSpace(in.AddressInfo),
		BusinessName: strings.TrimSpace(in.BusinessName),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		s.rollbackRegistration(ctx, account)
		return nil, err
	}

	if err := s.deliver(ctx, s.verificationNotification(email, code)); err != nil {
		s.logger.WarnContext(ctx, "verification delivery failed, rolling back registration",
			slog.String("email", email), slog.Any("error", err))
		s.rollbackRegistration(ctx, account)
		return nil, ErrNotificationFailed
	}
	return account, nil
}

// VerifyEmail redeems the emailed code and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	_, err := s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
		return s.lifecycle.ConsumeVerification(a, strings.TrimSpace(code))
	})
	return s.mapAccountErr(err)
}

// ResendVerification issues a replacement code. The fresh code is
// persisted before delivery is attempted, so a delivery failure leaves
// a code the holder can still request again after the cooldown.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	code, err := s.secrets.NumericCode()
	if err != nil {
		return err
	}
	if _, err := s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
		return s.lifecycle.ReissueVerification(a, code)
	}); err != nil {
		return s.mapAccountErr(err)
	}
	if err := s.deliver(ctx, s.verificationNotification(email, code)); err != nil {
		s.logger.WarnContext(ctx, "verification resend delivery failed",
			slog.String("email", email), slog.Any("error", err))
		return ErrNotificationFailed
	}
	return nil
}

// Login verifies credentials and mints a token pair. The lockout check
// runs before anything else, so a locked account answers identically
// whether or not the password is right.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *domain.Account, error) {
	email = normalizeEmail(email)
	account, err := s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
		if s.lifecycle.LockedNow(a) {
			return ErrAccountLocked
		}
		if !a.Active {
			return ErrNotVerified
		}
		ok, err := s.hasher.Verify(a.PasswordHash, password)
		if err != nil {
			return err
		}
		if !ok {
			return s.lifecycle.RecordLoginFailure(a)
		}
		s.lifecycle.RecordLoginSuccess(a)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// Indistinguishable from a wrong password.
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	pair, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return pair, account, nil
}

// ForgotPassword starts a reset. The response never reveals whether the
// email belongs to an account: unknown and inactive addresses are
// silently dropped.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email",
				slog.String("email", email))
			return nil
		}
		return err
	}
	if !account.Active {
		s.logger.InfoContext(ctx, "password reset requested for unverified account",
			slog.String("email", email))
		return nil
	}

	token, err := s.secrets.AlphanumericToken()
	if err != nil {
		return err
	}
	if _, err := s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
		return s.lifecycle.IssueReset(a, token)
	}); err != nil {
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			// A throttled retry gets the same generic success; a 429
			// here would confirm the address has an account.
			s.logger.InfoContext(ctx, "password reset request inside cooldown",
				slog.String("email", email),
				slog.Duration("retry_after", rateErr.Wait))
			return nil
		}
		return err
	}

	if err := s.deliver(ctx, s.resetNotification(email, token)); err != nil {
		// Withdraw the token so the undelivered secret cannot linger,
		// then answer with the same generic success.
		if _, clearErr := s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
			a.ClearResetChallenge()
			return nil
		}); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to withdraw undelivered reset token",
				slog.String("email", email), slog.Any("error", clearErr))
		}
		s.logger.WarnContext(ctx, "reset delivery failed",
			slog.String("email", email),
			slog.String("token_fp", security.FingerprintToken(token)),
			slog.Any("error", err))
	}
	return nil
}

// ResetPassword redeems a reset token and installs the new password.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	_, err = s.accounts.Mutate(ctx, email, func(a *domain.Account) error {
		return s.lifecycle.ConsumeReset(a, strings.TrimSpace(token), newHash)
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		// Same answer as a wrong token for an existing account.
		return ErrInvalidResetRequest
	}
	return err
}

// ChangePassword rotates the password of an authenticated account. The
// current-password check runs before the sameness check so a caller
// probing with a wrong password learns nothing about the stored one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uint, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return s.mapAccountErr(err)
	}
	_, err = s.accounts.Mutate(ctx, account.Email, func(a *domain.Account) error {
		ok, err := s.hasher.Verify(a.PasswordHash, currentPassword)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCurrentPassword
		}
		if currentPassword == newPassword {
			return ErrPasswordUnchanged
		}
		newHash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		a.PasswordHash = newHash
		return nil
	})
	return s.mapAccountErr(err)
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidToken
	}
	return s.tokens.Invalidate(ctx, refreshToken)
}

func (s *AuthService) rollbackRegistration(ctx context.Context, account *domain.Account) {
	if err := s.profiles.DeleteByAccountID(ctx, account.ID); err != nil {
		s.logger.ErrorContext(ctx, "registration rollback: profile delete failed",
			slog.Uint64("account_id", uint64(account.ID)), slog.Any("error", err))
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		s.logger.ErrorContext(ctx, "registration rollback: account delete failed",
			slog.Uint64("account_id", uint64(account.ID)), slog.Any("error", err))
	}
}

func (s *AuthService) deliver(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	return s.notifier.Send(ctx, n)
}

func (s *AuthService) mapAccountErr(err error) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func profileKind(in RegisterInput) string {
	if in.Investor {
		return domain.ProfileKindInvestor
	}
	return domain.ProfileKindBusiness
}

func (s *AuthService) verificationNotification(email, code string) Notification {
	return Notification{
		Email:   email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Your verification code is %s. It expires in %s.",
			code, s.lifecycle.Policy().Verification.TTL),
	}
}

func (s *AuthService) resetNotification(email, token string) Notification {
	return Notification{
		Email:   email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Your password reset token is %s. It expires in %s.",
			token, s.lifecycle.Policy().Reset.TTL),
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Message: "invalid email"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	return nil
}
