package domain

import "time"

// Account is the identity unit of the service. Email is immutable after
// creation and always stored lowercase. Active stays false until the
// verification challenge is consumed.
type Account struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string `gorm:"size:255;not null" json:"name"`
	PasswordHash string `gorm:"size:1024;not null" json:"-"`
	Active       bool   `gorm:"not null;default:false" json:"active"`
	Investor     bool   `gorm:"not null;default:false" json:"is_investor"`
	Individual   bool   `gorm:"not null;default:false" json:"is_individual"`

	VerificationCode         *string    `gorm:"size:6" json:"-"`
	VerificationCodeIssuedAt *time.Time `json:"-"`
	VerificationAttempts     int        `gorm:"not null;default:0" json:"-"`

	ResetToken         *string    `gorm:"size:100" json:"-"`
	ResetTokenIssuedAt *time.Time `json:"-"`
	ResetAttempts      int        `gorm:"not null;default:0" json:"-"`

	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastLoginAttemptAt  *time.Time `json:"-"`
	LockedUntil         *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether a lockout window is still active.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

func (a *Account) VerificationChallenge() Challenge {
	return Challenge{
		Secret:   derefString(a.VerificationCode),
		IssuedAt: a.VerificationCodeIssuedAt,
		Attempts: a.VerificationAttempts,
	}
}

// SetVerificationChallenge replaces the verification triple as one unit
// and resets its attempt counter.
func (a *Account) SetVerificationChallenge(code string, now time.Time) {
	a.VerificationCode = &code
	a.VerificationCodeIssuedAt = &now
	a.VerificationAttempts = 0
}

func (a *Account) ClearVerificationChallenge() {
	a.VerificationCode = nil
	a.VerificationCodeIssuedAt = nil
	a.VerificationAttempts = 0
}

func (a *Account) ResetChallenge() Challenge {
	return Challenge{
		Secret:   derefString(a.ResetToken),
		IssuedAt: a.ResetTokenIssuedAt,
		Attempts: a.ResetAttempts,
	}
}

func (a *Account) SetResetChallenge(token string, now time.Time) {
	a.ResetToken = &token
	a.ResetTokenIssuedAt = &now
	a.ResetAttempts = 0
}

func (a *Account) ClearResetChallenge() {
	a.ResetToken = nil
	a.ResetTokenIssuedAt = nil
	a.ResetAttempts = 0
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
