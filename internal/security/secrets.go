package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSource mints the two challenge secrets the service sends out:
// the short numeric verification code and the long reset token. Both
// draw from crypto/rand with rejection-free uniform sampling.
type RandomSource struct{}

func NewRandomSource() RandomSource { return RandomSource{} }

// NumericCode returns a 6-digit code in [100000, 999999]. The leading
// digit is never zero so the code survives being read back as a number.
func (RandomSource) NumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// AlphanumericToken returns a 32-character token drawn from
// [a-zA-Z0-9].
func (RandomSource) AlphanumericToken() (string, error) {
	buf := make([]byte, 32)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate reset token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// FingerprintToken returns a stable hex digest of a token, safe to put
// in logs and audit events without exposing the secret itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
