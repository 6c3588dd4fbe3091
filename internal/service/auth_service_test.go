package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/repository"
	"github.com/venturegate/auth-service/internal/security"
	"go.uber.org/mock/gomock"
)

func TestAuthServiceRegisterMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid email", func(t *testing.T) {
		fx := newAuthFixture(t)
		_, err := fx.auth.Register(ctx, RegisterInput{Email: "bad-email", Name: "User", Password: "longenough"})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "email" {
			t.Fatalf("expected email validation error, got %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		fx := newAuthFixture(t)
		_, err := fx.auth.Register(ctx, RegisterInput{Email: "user@example.com", Name: "   ", Password: "longenough"})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "name" {
			t.Fatalf("expected name validation error, got %v", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		fx := newAuthFixture(t)
		_, err := fx.auth.Register(ctx, RegisterInput{Email: "user@example.com", Name: "User", Password: "short"})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "password" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("dupe@example.com", "oldpassword", true)
		_, err := fx.auth.Register(ctx, RegisterInput{Email: "Dupe@Example.com", Name: "User", Password: "longenough"})
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("success creates inactive account with challenge and profile", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.secrets.codes = []string{"654321"}

		account, err := fx.auth.Register(ctx, RegisterInput{
			Email:    "  New@Example.COM ",
			Name:     "New User",
			Password: "longenough",
			Investor: true,
		})
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if account.Email != "new@example.com" {
			t.Fatalf("expected normalized email, got %q", account.Email)
		}
		if account.Active {
			t.Fatal("fresh account must be inactive")
		}
		stored := fx.accounts.mustGet(t, "new@example.com")
		if got := stored.VerificationChallenge(); !got.Present() || got.Secret != "654321" {
			t.Fatalf("expected stored verification challenge, got %+v", got)
		}
		profile := fx.profiles.byAccount[account.ID]
		if profile == nil || profile.Kind != domain.ProfileKindInvestor {
			t.Fatalf("expected investor profile, got %+v", profile)
		}
		if len(fx.notifier.sent) != 1 || fx.notifier.sent[0].Email != "new@example.com" {
			t.Fatalf("expected one notification, got %+v", fx.notifier.sent)
		}
	})

	t.Run("delivery failure rolls the registration back", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.notifier.sendErr = errors.New("relay down")

		_, err := fx.auth.Register(ctx, RegisterInput{Email: "gone@example.com", Name: "User", Password: "longenough"})
		if !errors.Is(err, ErrNotificationFailed) {
			t.Fatalf("expected ErrNotificationFailed, got %v", err)
		}
		if _, ok := fx.accounts.byEmail["gone@example.com"]; ok {
			t.Fatal("account must be deleted when the code cannot be delivered")
		}
		if len(fx.profiles.byAccount) != 0 {
			t.Fatal("profile must be deleted alongside the account")
		}
	})
}

func TestAuthServiceVerifyEmailMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.VerifyEmail(ctx, "ghost@example.com", "123456"); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("correct code activates", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")

		if err := fx.auth.VerifyEmail(ctx, "User@Example.com", " 123456 "); err != nil {
			t.Fatalf("verify: %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if !stored.Active {
			t.Fatal("account must activate on the right code")
		}
		if stored.VerificationChallenge().Present() {
			t.Fatal("challenge must be cleared after activation")
		}
	})

	t.Run("correct code at exact TTL boundary still works", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.clock.Advance(fx.lifecycle.Policy().Verification.TTL)

		if err := fx.auth.VerifyEmail(ctx, "user@example.com", "123456"); err != nil {
			t.Fatalf("boundary verify: %v", err)
		}
	})

	t.Run("expired code counts as a failed attempt", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.clock.Advance(fx.lifecycle.Policy().Verification.TTL + time.Second)

		err := fx.auth.VerifyEmail(ctx, "user@example.com", "123456")
		var cerr *ChallengeError
		if !errors.As(err, &cerr) || cerr.Remaining != 4 {
			t.Fatalf("expected 4 remaining attempts, got %v", err)
		}
	})

	t.Run("wrong code attempts accumulate and the fifth locks", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")

		for i := 1; i <= 4; i++ {
			err := fx.auth.VerifyEmail(ctx, "user@example.com", "000000")
			var cerr *ChallengeError
			if !errors.As(err, &cerr) || cerr.Remaining != 5-i {
				t.Fatalf("attempt %d: expected %d remaining, got %v", i, 5-i, err)
			}
		}
		if err := fx.auth.VerifyEmail(ctx, "user@example.com", "000000"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("fifth failure must lock, got %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if stored.LockedUntil == nil {
			t.Fatal("expected a lockout stamp")
		}
		if want := fx.clock.Now().Add(time.Hour); !stored.LockedUntil.Equal(want) {
			t.Fatalf("verification lockout must last 1h, got until %v want %v", stored.LockedUntil, want)
		}
	})

	t.Run("locked account rejects even the correct code", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.lockAccount("user@example.com", time.Hour)

		if err := fx.auth.VerifyEmail(ctx, "user@example.com", "123456"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("expected ErrAccountLocked, got %v", err)
		}
		if fx.accounts.mustGet(t, "user@example.com").Active {
			t.Fatal("locked account must not activate")
		}
	})

	t.Run("already verified", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)

		if err := fx.auth.VerifyEmail(ctx, "user@example.com", "123456"); !errors.Is(err, ErrAlreadyVerified) {
			t.Fatalf("expected ErrAlreadyVerified, got %v", err)
		}
	})
}

func TestAuthServiceResendVerificationMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("inside cooldown", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.clock.Advance(30 * time.Second)

		err := fx.auth.ResendVerification(ctx, "user@example.com")
		var rerr *RateLimitError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if rerr.Wait != 30*time.Second {
			t.Fatalf("expected 30s wait, got %v", rerr.Wait)
		}
	})

	t.Run("exactly at cooldown boundary is allowed", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.secrets.codes = []string{"777777"}
		fx.clock.Advance(fx.lifecycle.Policy().ResendCooldown)

		if err := fx.auth.ResendVerification(ctx, "user@example.com"); err != nil {
			t.Fatalf("resend at boundary: %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if got := stored.VerificationChallenge(); got.Secret != "777777" || got.Attempts != 0 {
			t.Fatalf("expected fresh challenge, got %+v", got)
		}
	})

	t.Run("resend resets spent attempts", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		_ = fx.auth.VerifyEmail(ctx, "user@example.com", "000000")
		fx.secrets.codes = []string{"888888"}
		fx.clock.Advance(2 * time.Minute)

		if err := fx.auth.ResendVerification(ctx, "user@example.com"); err != nil {
			t.Fatalf("resend: %v", err)
		}
		if got := fx.accounts.mustGet(t, "user@example.com").VerificationChallenge(); got.Attempts != 0 {
			t.Fatalf("expected attempts reset, got %+v", got)
		}
	})

	t.Run("already verified", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		if err := fx.auth.ResendVerification(ctx, "user@example.com"); !errors.Is(err, ErrAlreadyVerified) {
			t.Fatalf("expected ErrAlreadyVerified, got %v", err)
		}
	})

	t.Run("delivery failure keeps the fresh code", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		fx.secrets.codes = []string{"999999"}
		fx.notifier.sendErr = errors.New("relay down")
		fx.clock.Advance(2 * time.Minute)

		if err := fx.auth.ResendVerification(ctx, "user@example.com"); !errors.Is(err, ErrNotificationFailed) {
			t.Fatalf("expected ErrNotificationFailed, got %v", err)
		}
		if got := fx.accounts.mustGet(t, "user@example.com").VerificationChallenge(); got.Secret != "999999" {
			t.Fatalf("fresh code must persist despite the failed delivery, got %+v", got)
		}
	})
}

func TestAuthServiceLoginMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		fx := newAuthFixture(t)
		_, _, err := fx.auth.Login(ctx, "ghost@example.com", "whatever!")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unverified account", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		_, _, err := fx.auth.Login(ctx, "user@example.com", "longenough")
		if !errors.Is(err, ErrNotVerified) {
			t.Fatalf("expected ErrNotVerified, got %v", err)
		}
	})

	t.Run("success issues tokens and resets counters", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.accounts.mustGet(t, "user@example.com").FailedLoginAttempts = 3

		pair, account, err := fx.auth.Login(ctx, "User@Example.com", "longenough")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if pair.AccessToken == "" || pair.RefreshToken == "" {
			t.Fatal("expected both tokens")
		}
		if account.FailedLoginAttempts != 0 {
			t.Fatal("success must reset the failure counter")
		}
		if fx.accounts.mustGet(t, "user@example.com").LastLoginAttemptAt == nil {
			t.Fatal("success must stamp the attempt time")
		}
	})

	t.Run("failures accumulate and the fifth locks", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)

		for i := 1; i <= 4; i++ {
			if _, _, err := fx.auth.Login(ctx, "user@example.com", "wrongpass!"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
			}
			if got := fx.accounts.mustGet(t, "user@example.com").FailedLoginAttempts; got != i {
				t.Fatalf("attempt %d: counter=%d", i, got)
			}
		}
		if _, _, err := fx.auth.Login(ctx, "user@example.com", "wrongpass!"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("fifth failure must lock, got %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if stored.LockedUntil == nil || !stored.LockedUntil.Equal(fx.clock.Now().Add(time.Hour)) {
			t.Fatalf("login lockout must last 1h, got %v", stored.LockedUntil)
		}
	})

	t.Run("locked account rejects the correct password without counting", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.lockAccount("user@example.com", time.Hour)
		before := fx.accounts.mustGet(t, "user@example.com").FailedLoginAttempts

		if _, _, err := fx.auth.Login(ctx, "user@example.com", "longenough"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("expected ErrAccountLocked, got %v", err)
		}
		if got := fx.accounts.mustGet(t, "user@example.com").FailedLoginAttempts; got != before {
			t.Fatalf("counter must not grow while locked: %d -> %d", before, got)
		}
	})

	t.Run("lockout expires on its own", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.lockAccount("user@example.com", time.Hour)
		fx.clock.Advance(time.Hour)

		if _, _, err := fx.auth.Login(ctx, "user@example.com", "longenough"); err != nil {
			t.Fatalf("login after lockout expiry: %v", err)
		}
	})
}

func TestAuthServiceForgotPasswordMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email answers success without sending", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.ForgotPassword(ctx, "ghost@example.com"); err != nil {
			t.Fatalf("expected generic success, got %v", err)
		}
		if len(fx.notifier.sent) != 0 {
			t.Fatal("no notification may leave for an unknown email")
		}
	})

	t.Run("unverified account answers success without sending", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedPendingAccount("user@example.com", "longenough", "123456")
		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("expected generic success, got %v", err)
		}
		if len(fx.notifier.sent) != 0 {
			t.Fatal("no notification may leave for an unverified account")
		}
	})

	t.Run("success stamps a token and notifies", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.secrets.tokens = []string{"fixed-reset-token-abcdefghijklmn"}

		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("forgot: %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if got := stored.ResetChallenge(); got.Secret != "fixed-reset-token-abcdefghijklmn" {
			t.Fatalf("expected stored reset token, got %+v", got)
		}
		if len(fx.notifier.sent) != 1 {
			t.Fatalf("expected one notification, got %d", len(fx.notifier.sent))
		}
	})

	t.Run("second request inside the cooldown stays generic", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.secrets.tokens = []string{"fixed-reset-token-abcdefghijklmn"}
		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("first forgot: %v", err)
		}
		fx.clock.Advance(time.Minute)

		// The throttle must be invisible from the outside: same generic
		// success, no second email, first token still outstanding.
		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("expected generic success inside cooldown, got %v", err)
		}
		if len(fx.notifier.sent) != 1 {
			t.Fatalf("expected one notification, got %d", len(fx.notifier.sent))
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if got := stored.ResetChallenge(); got.Secret != "fixed-reset-token-abcdefghijklmn" {
			t.Fatalf("first token must stay outstanding, got %+v", got)
		}
	})

	t.Run("cooldown expiry allows a fresh token", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.secrets.tokens = []string{"fixed-reset-token-abcdefghijklmn", "second-reset-token-abcdefghijklm"}
		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("first forgot: %v", err)
		}
		fx.clock.Advance(5 * time.Minute)

		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("forgot after cooldown: %v", err)
		}
		if len(fx.notifier.sent) != 2 {
			t.Fatalf("expected two notifications, got %d", len(fx.notifier.sent))
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if got := stored.ResetChallenge(); got.Secret != "second-reset-token-abcdefghijklm" {
			t.Fatalf("expected the fresh token, got %+v", got)
		}
	})

	t.Run("delivery failure withdraws the token but stays generic", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		fx.notifier.sendErr = errors.New("relay down")

		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("expected generic success despite delivery failure, got %v", err)
		}
		if fx.accounts.mustGet(t, "user@example.com").ResetChallenge().Present() {
			t.Fatal("undelivered token must be withdrawn")
		}
	})
}

func TestAuthServiceResetPasswordMatrix(t *testing.T) {
	ctx := context.Background()
	const token = "fixed-reset-token-abcdefghijklmn"

	seedWithToken := func(t *testing.T, fx *authFixture) {
		t.Helper()
		fx.seedAccount("user@example.com", "longenough", true)
		fx.secrets.tokens = []string{token}
		if err := fx.auth.ForgotPassword(ctx, "user@example.com"); err != nil {
			t.Fatalf("seed forgot: %v", err)
		}
	}

	t.Run("short new password", func(t *testing.T) {
		fx := newAuthFixture(t)
		err := fx.auth.ResetPassword(ctx, "user@example.com", token, "short")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "password" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})

	t.Run("unknown email answers like a wrong token", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.ResetPassword(ctx, "ghost@example.com", token, "newpassword"); !errors.Is(err, ErrInvalidResetRequest) {
			t.Fatalf("expected ErrInvalidResetRequest, got %v", err)
		}
	})

	t.Run("no outstanding token", func(t *testing.T) {
		fx := newAuthFixture(t)
		fx.seedAccount("user@example.com", "longenough", true)
		if err := fx.auth.ResetPassword(ctx, "user@example.com", token, "newpassword"); !errors.Is(err, ErrInvalidResetRequest) {
			t.Fatalf("expected ErrInvalidResetRequest, got %v", err)
		}
	})

	t.Run("success installs the new password and clears lockout state", func(t *testing.T) {
		fx := newAuthFixture(t)
		seedWithToken(t, fx)
		fx.accounts.mustGet(t, "user@example.com").FailedLoginAttempts = 4

		if err := fx.auth.ResetPassword(ctx, "user@example.com", token, "newpassword"); err != nil {
			t.Fatalf("reset: %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if stored.ResetChallenge().Present() {
			t.Fatal("token must be consumed")
		}
		if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
			t.Fatal("reset must clear the login failure state")
		}
		if _, _, err := fx.auth.Login(ctx, "user@example.com", "newpassword"); err != nil {
			t.Fatalf("login with the new password: %v", err)
		}
		if _, _, err := fx.auth.Login(ctx, "user@example.com", "longenough"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("old password must stop working, got %v", err)
		}
	})

	t.Run("token at exact TTL boundary still redeems", func(t *testing.T) {
		fx := newAuthFixture(t)
		seedWithToken(t, fx)
		fx.clock.Advance(fx.lifecycle.Policy().Reset.TTL)

		if err := fx.auth.ResetPassword(ctx, "user@example.com", token, "newpassword"); err != nil {
			t.Fatalf("boundary reset: %v", err)
		}
	})

	t.Run("expired token counts as a failed attempt", func(t *testing.T) {
		fx := newAuthFixture(t)
		seedWithToken(t, fx)
		fx.clock.Advance(fx.lifecycle.Policy().Reset.TTL + time.Second)

		err := fx.auth.ResetPassword(ctx, "user@example.com", token, "newpassword")
		var cerr *ChallengeError
		if !errors.As(err, &cerr) || cerr.Remaining != 4 {
			t.Fatalf("expected 4 remaining, got %v", err)
		}
	})

	t.Run("fifth wrong token locks for two hours", func(t *testing.T) {
		fx := newAuthFixture(t)
		seedWithToken(t, fx)

		for i := 1; i <= 4; i++ {
			err := fx.auth.ResetPassword(ctx, "user@example.com", "wrong-token", "newpassword")
			var cerr *ChallengeError
			if !errors.As(err, &cerr) || cerr.Remaining != 5-i {
				t.Fatalf("attempt %d: expected %d remaining, got %v", i, 5-i, err)
			}
		}
		if err := fx.auth.ResetPassword(ctx, "user@example.com", "wrong-token", "newpassword"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("fifth failure must lock, got %v", err)
		}
		stored := fx.accounts.mustGet(t, "user@example.com")
		if stored.LockedUntil == nil || !stored.LockedUntil.Equal(fx.clock.Now().Add(2*time.Hour)) {
			t.Fatalf("reset lockout must last 2h, got %v", stored.LockedUntil)
		}
	})

	t.Run("locked account rejects even the correct token", func(t *testing.T) {
		fx := newAuthFixture(t)
		seedWithToken(t, fx)
		fx.lockAccount("user@example.com", time.Hour)

		if err := fx.auth.ResetPassword(ctx, "user@example.com", token, "newpassword"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("expected ErrAccountLocked, got %v", err)
		}
	})
}

func TestAuthServiceChangePasswordMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.ChangePassword(ctx, 999, "longenough", "newpassword"); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("short new password", func(t *testing.T) {
		fx := newAuthFixture(t)
		id := fx.seedAccount("user@example.com", "longenough", true)
		err := fx.auth.ChangePassword(ctx, id, "longenough", "short")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "password" {
			t.Fatalf("expected password validation error, got %v", err)
		}
	})

	t.Run("wrong current password wins over sameness", func(t *testing.T) {
		fx := newAuthFixture(t)
		id := fx.seedAccount("user@example.com", "longenough", true)
		// The new password equals the stored one, but the supplied
		// current password is wrong; the caller must see only that.
		if err := fx.auth.ChangePassword(ctx, id, "wrongcurrent", "longenough"); !errors.Is(err, ErrInvalidCurrentPassword) {
			t.Fatalf("expected ErrInvalidCurrentPassword, got %v", err)
		}
	})

	t.Run("unchanged password", func(t *testing.T) {
		fx := newAuthFixture(t)
		id := fx.seedAccount("user@example.com", "longenough", true)
		if err := fx.auth.ChangePassword(ctx, id, "longenough", "longenough"); !errors.Is(err, ErrPasswordUnchanged) {
			t.Fatalf("expected ErrPasswordUnchanged, got %v", err)
		}
	})

	t.Run("success rotates the hash", func(t *testing.T) {
		fx := newAuthFixture(t)
		id := fx.seedAccount("user@example.com", "longenough", true)
		if err := fx.auth.ChangePassword(ctx, id, "longenough", "newpassword"); err != nil {
			t.Fatalf("change: %v", err)
		}
		if _, _, err := fx.auth.Login(ctx, "user@example.com", "newpassword"); err != nil {
			t.Fatalf("login with the new password: %v", err)
		}
	})
}

func TestAuthServiceLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.Logout(ctx, "  "); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("delegates to the issuer", func(t *testing.T) {
		fx := newAuthFixture(t)
		if err := fx.auth.Logout(ctx, "some-refresh-token"); err != nil {
			t.Fatalf("logout: %v", err)
		}
		if fx.tokens.invalidated != "some-refresh-token" {
			t.Fatalf("expected invalidation of the presented token, got %q", fx.tokens.invalidated)
		}
	})
}

type authFixture struct {
	auth      *AuthService
	lifecycle *AccountLifecycle
	accounts  *accountRepoState
	profiles  *profileRepoState
	notifier  *notifierState
	secrets   *secretState
	tokens    *tokenIssuerState
	hasher    *security.Hasher
	clock     *fakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	lifecycle := NewAccountLifecycle(DefaultLifecyclePolicy())
	lifecycle.now = clock.Now

	accounts := newAccountRepoState()
	profiles := newProfileRepoState()
	notifier := &notifierState{}
	secrets := &secretState{}
	tokens := &tokenIssuerState{}
	hasher := security.NewHasher(security.HasherParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	ctrl := gomock.NewController(t)
	notifierMock := NewMockNotificationSender(ctrl)
	notifierMock.EXPECT().Send(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(notifier.Send)
	secretsMock := NewMockSecretSource(ctrl)
	secretsMock.EXPECT().NumericCode().AnyTimes().DoAndReturn(secrets.NumericCode)
	secretsMock.EXPECT().AlphanumericToken().AnyTimes().DoAndReturn(secrets.AlphanumericToken)
	tokensMock := NewMockTokenIssuer(ctrl)
	tokensMock.EXPECT().Issue(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(tokens.Issue)
	tokensMock.EXPECT().Invalidate(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(tokens.Invalidate)
	tokensMock.EXPECT().ValidateAccess(gomock.Any(), gomock.Any()).AnyTimes().Return(nil, ErrInvalidToken)

	auth := NewAuthService(accounts, profiles, lifecycle, hasher, secretsMock, notifierMock, tokensMock,
		10*time.Second, slog.New(slog.DiscardHandler))

	return &authFixture{
		auth:      auth,
		lifecycle: lifecycle,
		accounts:  accounts,
		profiles:  profiles,
		notifier:  notifier,
		secrets:   secrets,
		tokens:    tokens,
		hasher:    hasher,
		clock:     clock,
	}
}

func (fx *authFixture) seedAccount(email, password string, active bool) uint {
	hash, err := fx.hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	a := &domain.Account{Email: email, Name: "Seeded", PasswordHash: hash, Active: active}
	if err := fx.accounts.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a.ID
}

func (fx *authFixture) seedPendingAccount(email, password, code string) uint {
	id := fx.seedAccount(email, password, false)
	a := fx.accounts.byID[id]
	a.SetVerificationChallenge(code, fx.clock.Now())
	return id
}

func (fx *authFixture) lockAccount(email string, d time.Duration) {
	id := fx.accounts.byEmail[email]
	until := fx.clock.Now().Add(d)
	fx.accounts.byID[id].LockedUntil = &until
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type accountRepoState struct {
	nextID  uint
	byID    map[uint]*domain.Account
	byEmail map[string]uint
}

func newAccountRepoState() *accountRepoState {
	return &accountRepoState{byID: map[uint]*domain.Account{}, byEmail: map[string]uint{}}
}

func (s *accountRepoState) mustGet(t *testing.T, email string) *domain.Account {
	t.Helper()
	id, ok := s.byEmail[email]
	if !ok {
		t.Fatalf("no account for %q", email)
	}
	return s.byID[id]
}

func (s *accountRepoState) Create(_ context.Context, a *domain.Account) error {
	if _, exists := s.byEmail[a.Email]; exists {
		return fmt.Errorf("unique constraint: %s", a.Email)
	}
	s.nextID++
	a.ID = s.nextID
	clone := *a
	s.byID[a.ID] = &clone
	s.byEmail[a.Email] = a.ID
	return nil
}

func (s *accountRepoState) FindByID(_ context.Context, id uint) (*domain.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *accountRepoState) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *accountRepoState) Delete(_ context.Context, id uint) error {
	a, ok := s.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	delete(s.byEmail, a.Email)
	delete(s.byID, id)
	return nil
}

func (s *accountRepoState) Mutate(_ context.Context, email string, fn func(*domain.Account) error) (*domain.Account, error) {
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	a := s.byID[id]
	// The record is saved even when fn fails, matching the database
	// implementation.
	err := fn(a)
	clone := *a
	return &clone, err
}

type profileRepoState struct {
	nextID    uint
	byAccount map[uint]*domain.Profile
	createErr error
}

func newProfileRepoState() *profileRepoState {
	return &profileRepoState{byAccount: map[uint]*domain.Profile{}}
}

func (s *profileRepoState) Create(_ context.Context, p *domain.Profile) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	p.ID = s.nextID
	clone := *p
	s.byAccount[p.AccountID] = &clone
	return nil
}

func (s *profileRepoState) FindByAccountID(_ context.Context, accountID uint) (*domain.Profile, error) {
	p, ok := s.byAccount[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *profileRepoState) DeleteByAccountID(_ context.Context, accountID uint) error {
	delete(s.byAccount, accountID)
	return nil
}

type notifierState struct {
	sent    []Notification
	sendErr error
}

func (s *notifierState) Send(_ context.Context, n Notification) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, n)
	return nil
}

type secretState struct {
	codes  []string
	tokens []string
}

func (s *secretState) NumericCode() (string, error) {
	if len(s.codes) == 0 {
		return "123456", nil
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

func (s *secretState) AlphanumericToken() (string, error) {
	if len(s.tokens) == 0 {
		return "default-reset-token-abcdefghijkl", nil
	}
	token := s.tokens[0]
	s.tokens = s.tokens[1:]
	return token, nil
}

type tokenIssuerState struct {
	issueErr    error
	invalidated string
}

func (s *tokenIssuerState) Issue(_ context.Context, account *domain.Account) (*TokenPair, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	return &TokenPair{
		AccessToken:      fmt.Sprintf("access-%d", account.ID),
		RefreshToken:     fmt.Sprintf("refresh-%d", account.ID),
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (s *tokenIssuerState) Invalidate(_ context.Context, refreshToken string) error {
	s.invalidated = refreshToken
	return nil
}
