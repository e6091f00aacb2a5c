// Package services contains server-side business logic: session tokens,
// draft compare-and-swap with archiving, edit leases and the audit trail.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/config"
)

// SessionService mints access tokens for a (user, device) pair. Proving the
// identity is left to the deployment in front of the server.
type SessionService struct {
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewSessionService(cfg *config.Config) *SessionService {
	return &SessionService{
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

func (s *SessionService) Open(ctx context.Context, userID, deviceID string) (string, time.Time, error) {
	if userID == "" || deviceID == "" {
		return "", time.Time{}, common.ErrInvalidArgument
	}
	return auth.GenerateToken(auth.Identity{UserID: userID, DeviceID: deviceID}, s.jwtSecret, s.accessTokenValidityDuration)
}

// Verify returns the identity carried by token.
func (s *SessionService) Verify(token string) (auth.Identity, error) {
	return auth.ParseToken(token, s.jwtSecret)
}
