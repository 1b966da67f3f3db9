package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/idkit/mfactl/internal/credcache"
)

// CredentialProvider supplies audience/scope-bound API credentials and
// persists freshly minted ones. Callers re-request a credential before
// every remote call instead of assuming freshness.
type CredentialProvider interface {
	Credentials(ctx context.Context, aud ScopedAudience) (*credcache.Credential, error)
	Store(aud ScopedAudience, cred *credcache.Credential) error
}

// CredentialSource mints a new credential for an audience/scope pair.
type CredentialSource interface {
	Exchange(ctx context.Context, aud ScopedAudience) (*credcache.Credential, error)
}

// Provider is the caching CredentialProvider: cache lookup, then exchange
// through the source, then store. A Store (used by step-up) replaces the
// cached credential for that audience before returning, so a stale
// credential is never handed out after a successful upgrade.
type Provider struct {
	Source CredentialSource
	Cache  credcache.Store

	// guards the per-audience write path; readers observe either the old
	// or the new credential, never a torn one
	mu sync.Mutex
}

func (p *Provider) Credentials(ctx context.Context, aud ScopedAudience) (*credcache.Credential, error) {
	cred, err := p.Cache.Get(aud)
	if err == nil {
		return cred, nil
	}
	log.Debugf("credentials for %s: %s; exchanging", aud.Audience, err)

	cred, err = p.Source.Exchange(ctx, aud)
	if err != nil {
		return nil, err
	}

	if err := p.Store(aud, cred); err != nil {
		log.Warnf("failed to cache credential for %s: %s", aud.Audience, err)
	}
	return cred, nil
}

func (p *Provider) Store(aud ScopedAudience, cred *credcache.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cache.Put(aud, cred)
}

// TokenStore keeps the long-lived refresh token in the OS keyring.
type TokenStore struct {
	Keyring keyring.Keyring
}

const (
	keyringTokenKey   = "refresh-token"
	keyringTokenLabel = "mfactl refresh token"
)

func (s *TokenStore) RefreshToken() (string, error) {
	item, err := s.Keyring.Get(keyringTokenKey)
	if err != nil {
		return "", errors.Wrap(err, "no stored login; run `mfactl login` first")
	}
	return string(item.Data), nil
}

func (s *TokenStore) StoreRefreshToken(token string) error {
	return s.Keyring.Set(keyring.Item{
		Key:                         keyringTokenKey,
		Label:                       keyringTokenLabel,
		Data:                        []byte(token),
		KeychainNotTrustApplication: false,
	})
}

// RefreshTokenSource exchanges the stored refresh token at the tenant's
// token endpoint for an audience/scope-bound access token.
//
// The POST is hand-built because the grant must carry an `audience`
// parameter, which x/oauth2's refresh flow cannot express; the browser
// login flow still goes through x/oauth2 proper.
type RefreshTokenSource struct {
	Config     *Config
	Tokens     *TokenStore
	HTTPClient *http.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

func (s *RefreshTokenSource) Exchange(ctx context.Context, aud ScopedAudience) (*credcache.Credential, error) {
	refreshToken, err := s.Tokens.RefreshToken()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.Config.ClientID},
		"refresh_token": {refreshToken},
		"audience":      {aud.Audience},
		"scope":         {aud.Scope},
	}

	endpoint := fmt.Sprintf("https://%s/oauth/token", s.Config.Domain)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Debugf("Exchanging refresh token for %s", aud.Audience)
	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		// the token endpoint reports mfa_required here when the session
		// lacks authentication strength for the requested scope
		return nil, decodeAPIError(res)
	}

	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return nil, &decodeError{cause: err}
	}
	return credentialFromTokenResponse(tr, aud), nil
}

// credentialFromTokenResponse builds a credential, filling expiry and
// granted scope from the access token's own claims when the response
// omits them.
func credentialFromTokenResponse(tr tokenResponse, aud ScopedAudience) *credcache.Credential {
	cred := &credcache.Credential{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Scope:       tr.Scope,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}

	if tr.ExpiresIn == 0 || tr.Scope == "" {
		claims := jwt.MapClaims{}
		// the token is the server's to verify; we only read claims
		if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err == nil {
			if tr.ExpiresIn == 0 {
				if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
					cred.ExpiresAt = exp.Time
				}
			}
			if tr.Scope == "" {
				if scope, ok := claims["scope"].(string); ok {
					cred.Scope = scope
				}
			}
		}
	}
	if cred.Scope == "" {
		cred.Scope = aud.Scope
	}
	return cred
}
