package lib

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/idkit/mfactl/internal/credcache"
)

// ErrLoginCancelled is returned when the user abandons an interactive
// authentication flow. It classifies as KindCancelled, never as a
// generic failure.
var ErrLoginCancelled = errors.New("login cancelled by user")

// LoginResult is what an interactive login hands back: a credential
// usable for exactly the requested audience/scope, plus the rotated
// refresh token when the provider issued one.
type LoginResult struct {
	Credential   credcache.Credential
	RefreshToken string
}

// InteractiveLogin runs an interactive authentication flow configured
// with the audience/scope the original request needed.
type InteractiveLogin interface {
	Login(ctx context.Context, aud ScopedAudience) (*LoginResult, error)
}

// StepUp drives an interactive re-authentication and stores the
// resulting upgraded credential. Persistence completes before Upgrade
// returns: a subsequent provider fetch for the same audience/scope sees
// the upgraded credential.
type StepUp struct {
	Login InteractiveLogin
	Creds CredentialProvider

	// Tokens, if set, receives the rotated refresh token.
	Tokens *TokenStore
}

func (s *StepUp) Upgrade(ctx context.Context, aud ScopedAudience) error {
	log.Debugf("Step-up: interactive login for %s", aud.Audience)

	result, err := s.Login.Login(ctx, aud)
	if err != nil {
		return err
	}

	if s.Tokens != nil && result.RefreshToken != "" {
		if err := s.Tokens.StoreRefreshToken(result.RefreshToken); err != nil {
			log.Warnf("failed to store rotated refresh token: %s", err)
		}
	}

	if err := s.Creds.Store(aud, &result.Credential); err != nil {
		return errors.Wrap(err, "storing upgraded credential")
	}

	log.Debug("Step-up: upgraded credential stored")
	return nil
}
