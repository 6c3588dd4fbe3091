package service

import (
	"context"
	"time"

	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/repository"
	"github.com/venturegate/auth-service/internal/security"
)

// TokenService implements TokenIssuer on top of the JWT manager and the
// Redis revocation list. Access tokens are short-lived and never
// revoked individually; logout blacklists the refresh token's jti for
// the remainder of its life.
type TokenService struct {
	jwtMgr     *security.JWTManager
	blacklist  repository.TokenBlacklist
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, blacklist repository.TokenBlacklist, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, blacklist: blacklist, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *TokenService) Issue(ctx context.Context, account *domain.Account) (*TokenPair, error) {
	now := time.Now()
	access, err := s.jwtMgr.SignAccessToken(account.ID, account.Email, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(account.ID, account.Email, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func (s *TokenService) Invalidate(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}
	return s.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *TokenService) ValidateAccess(ctx context.Context, accessToken string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefresh checks a refresh token against both its signature and
// the revocation list.
func (s *TokenService) ValidateRefresh(ctx context.Context, refreshToken string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
