package domain

import (
	"crypto/subtle"
	"time"
)

// ChallengePolicy bundles the constants that differ between the two
// challenge kinds: the short verification code (10m TTL, 1h lockout)
// and the long reset token (1h TTL, 2h lockout).
type ChallengePolicy struct {
	TTL             time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

// Challenge is a snapshot of one secret-plus-timestamp-plus-counter
// triple taken from an Account. The zero value means no challenge is
// outstanding.
type Challenge struct {
	Secret   string
	IssuedAt *time.Time
	Attempts int
}

// Present reports whether a challenge is outstanding.
func (c Challenge) Present() bool {
	return c.Secret != "" && c.IssuedAt != nil
}

// Matches reports whether the supplied secret is byte-for-byte equal to
// the stored one and still inside the TTL. The boundary is inclusive:
// a secret supplied exactly at issuedAt+ttl is still valid.
func (c Challenge) Matches(supplied string, now time.Time, ttl time.Duration) bool {
	if !c.Present() || supplied == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(supplied)) != 1 {
		return false
	}
	return !now.After(c.IssuedAt.Add(ttl))
}
