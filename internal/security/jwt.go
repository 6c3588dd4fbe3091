package security

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by both token kinds. Kind distinguishes access from
// refresh so one cannot be replayed as the other; ID is the jti used
// for refresh revocation.
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager signs and parses the HS256 bearer tokens. Access and
// refresh tokens share a signing key but never a kind.
type JWTManager struct {
	key    []byte
	issuer string
}

func NewJWTManager(secret, issuer string) *JWTManager {
	return &JWTManager{key: []byte(secret), issuer: issuer}
}

func (m *JWTManager) SignAccessToken(accountID uint, email string, ttl time.Duration) (string, error) {
	return m.sign("access", accountID, email, ttl)
}

func (m *JWTManager) SignRefreshToken(accountID uint, email string, ttl time.Duration) (string, error) {
	return m.sign("refresh", accountID, email, ttl)
}

func (m *JWTManager) sign(kind string, accountID uint, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatUint(uint64(accountID), 10),
			Audience:  jwt.ClaimStrings{email},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

func (m *JWTManager) ParseAccessToken(token string) (*Claims, error) {
	return m.parse(token, "access")
}

func (m *JWTManager) ParseRefreshToken(token string) (*Claims, error) {
	return m.parse(token, "refresh")
}

func (m *JWTManager) parse(token, kind string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.key, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("token kind %q where %q required", claims.Kind, kind)
	}
	return claims, nil
}

// AccountID extracts the numeric subject.
func (c *Claims) AccountID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject")
	}
	return uint(id), nil
}
