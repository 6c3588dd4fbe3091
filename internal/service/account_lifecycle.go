package service

import (
	"time"

	"github.com/venturegate/auth-service/internal/domain"
)

// LifecyclePolicy collects every timing and counting knob of the
// account state machine. The two challenge kinds deliberately differ:
// a reset token guards an immediate password takeover, so its lockout
// is twice as long as the verification one.
type LifecyclePolicy struct {
	Verification         domain.ChallengePolicy
	Reset                domain.ChallengePolicy
	ResendCooldown       time.Duration
	ResetRequestCooldown time.Duration
	LoginMaxFailures     int
	LoginLockout         time.Duration
}

func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		Verification: domain.ChallengePolicy{
			TTL:             10 * time.Minute,
			MaxAttempts:     5,
			LockoutDuration: time.Hour,
		},
		Reset: domain.ChallengePolicy{
			TTL:             time.Hour,
			MaxAttempts:     5,
			LockoutDuration: 2 * time.Hour,
		},
		ResendCooldown:       time.Minute,
		ResetRequestCooldown: 5 * time.Minute,
		LoginMaxFailures:     5,
		LoginLockout:         time.Hour,
	}
}

// AccountLifecycle applies the state machine rules to an account in
// memory. It never touches storage; callers run its methods inside a
// repository Mutate so that counter increments from failing paths
// persist too.
type AccountLifecycle struct {
	policy LifecyclePolicy
	now    func() time.Time
}

func NewAccountLifecycle(policy LifecyclePolicy) *AccountLifecycle {
	return &AccountLifecycle{policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

func (l *AccountLifecycle) Policy() LifecyclePolicy { return l.policy }

// LockedNow reports whether the account is inside a lockout window at
// this moment.
func (l *AccountLifecycle) LockedNow(a *domain.Account) bool { return a.Locked(l.now()) }

// IssueVerification stamps a fresh verification challenge. Used at
// registration, where no previous challenge can exist.
func (l *AccountLifecycle) IssueVerification(a *domain.Account, code string) {
	a.SetVerificationChallenge(code, l.now())
}

// ReissueVerification replaces the outstanding verification challenge,
// subject to the resend cooldown. A request made exactly at the
// cooldown boundary is allowed. An already verified account answers
// ErrAlreadyVerified even while a lockout is in force; the lock guards
// the challenge, not the fact of being verified.
func (l *AccountLifecycle) ReissueVerification(a *domain.Account, code string) error {
	now := l.now()
	if a.Active {
		return ErrAlreadyVerified
	}
	if a.Locked(now) {
		return ErrAccountLocked
	}
	if wait, ok := cooldownRemaining(a.VerificationCodeIssuedAt, l.policy.ResendCooldown, now); ok {
		return &RateLimitError{Wait: wait}
	}
	a.SetVerificationChallenge(code, now)
	return nil
}

// ConsumeVerification checks a supplied code against the outstanding
// challenge. On success the account activates, the challenge is
// cleared and any leftover lockout bookkeeping drops. On mismatch or
// expiry the attempt counter grows; spending the last attempt locks
// the account.
func (l *AccountLifecycle) ConsumeVerification(a *domain.Account, code string) error {
	now := l.now()
	if a.Locked(now) {
		return ErrAccountLocked
	}
	if a.Active {
		return ErrAlreadyVerified
	}
	ch := a.VerificationChallenge()
	if ch.Matches(code, now, l.policy.Verification.TTL) {
		a.Active = true
		a.ClearVerificationChallenge()
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		return nil
	}
	return l.recordChallengeFailure(a, &a.VerificationAttempts, l.policy.Verification, now)
}

// IssueReset stamps a fresh reset challenge, subject to the request
// cooldown. Lockout does not block issuing: a locked-out holder may
// still receive a new token, only redemption is gated.
func (l *AccountLifecycle) IssueReset(a *domain.Account, token string) error {
	now := l.now()
	if wait, ok := cooldownRemaining(a.ResetTokenIssuedAt, l.policy.ResetRequestCooldown, now); ok {
		return &RateLimitError{Wait: wait}
	}
	a.SetResetChallenge(token, now)
	return nil
}

// ConsumeReset redeems a reset token and installs the new password
// hash. Success clears the reset challenge and any login lockout, so a
// holder who locked themselves out by mistyping can recover through a
// reset.
func (l *AccountLifecycle) ConsumeReset(a *domain.Account, token, newHash string) error {
	now := l.now()
	if a.Locked(now) {
		return ErrAccountLocked
	}
	ch := a.ResetChallenge()
	if !ch.Present() {
		return ErrInvalidResetRequest
	}
	if ch.Matches(token, now, l.policy.Reset.TTL) {
		a.PasswordHash = newHash
		a.ClearResetChallenge()
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		return nil
	}
	return l.recordChallengeFailure(a, &a.ResetAttempts, l.policy.Reset, now)
}

// RecordLoginFailure counts a wrong password. While a lockout is in
// force the counter does not grow, so hammering a locked account cannot
// stretch the window.
func (l *AccountLifecycle) RecordLoginFailure(a *domain.Account) error {
	now := l.now()
	a.LastLoginAttemptAt = &now
	if a.Locked(now) {
		return ErrAccountLocked
	}
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= l.policy.LoginMaxFailures {
		until := now.Add(l.policy.LoginLockout)
		a.LockedUntil = &until
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// RecordLoginSuccess resets the failure bookkeeping after a good login.
func (l *AccountLifecycle) RecordLoginSuccess(a *domain.Account) {
	now := l.now()
	a.LastLoginAttemptAt = &now
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
}

func (l *AccountLifecycle) recordChallengeFailure(a *domain.Account, attempts *int, policy domain.ChallengePolicy, now time.Time) error {
	*attempts++
	if *attempts >= policy.MaxAttempts {
		until := now.Add(policy.LockoutDuration)
		a.LockedUntil = &until
		return ErrAccountLocked
	}
	return &ChallengeError{Remaining: policy.MaxAttempts - *attempts}
}

func cooldownRemaining(last *time.Time, cooldown time.Duration, now time.Time) (time.Duration, bool) {
	if last == nil {
		return 0, false
	}
	elapsed := now.Sub(*last)
	if elapsed >= cooldown {
		return 0, false
	}
	return cooldown - elapsed, true
}
