package lib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkit/mfactl/internal/credcache"
)

func newTokenStore(t *testing.T, refreshToken string) *TokenStore {
	t.Helper()
	kr := keyring.NewArrayKeyring(nil)
	store := &TokenStore{Keyring: kr}
	if refreshToken != "" {
		require.NoError(t, store.StoreRefreshToken(refreshToken))
	}
	return store
}

func newTokenEndpoint(t *testing.T, handler http.HandlerFunc) (*Config, *http.Client) {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)
	return &Config{
		Domain:   strings.TrimPrefix(ts.URL, "https://"),
		ClientID: "test-client",
	}, ts.Client()
}

func TestTokenStoreRoundTrip(t *testing.T) {
	store := newTokenStore(t, "")

	_, err := store.RefreshToken()
	require.Error(t, err, "no token stored yet")

	require.NoError(t, store.StoreRefreshToken("rt-1"))
	token, err := store.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "rt-1", token)
}

func TestRefreshTokenSourceExchange(t *testing.T) {
	var gotForm map[string]string
	config, httpClient := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"client_id":     r.PostFormValue("client_id"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"audience":      r.PostFormValue("audience"),
			"scope":         r.PostFormValue("scope"),
		}
		writeJSON(w, 200, tokenResponse{
			AccessToken: "at-1",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
			Scope:       "openid " + ScopeCreateMethods,
		})
	})

	source := &RefreshTokenSource{
		Config:     config,
		Tokens:     newTokenStore(t, "rt-1"),
		HTTPClient: httpClient,
	}

	aud := testAudience()
	cred, err := source.Exchange(context.Background(), aud)
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "test-client", gotForm["client_id"])
	assert.Equal(t, "rt-1", gotForm["refresh_token"])
	assert.Equal(t, aud.Audience, gotForm["audience"])
	assert.Equal(t, aud.Scope, gotForm["scope"])

	assert.Equal(t, "at-1", cred.AccessToken)
	assert.Equal(t, "Bearer", cred.TokenType)
	assert.False(t, cred.Expired())
	assert.Contains(t, cred.Scope, ScopeCreateMethods)
}

func TestRefreshTokenSourceMFARequired(t *testing.T) {
	config, httpClient := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]string{
			"error":             "mfa_required",
			"error_description": "Multifactor authentication required",
		})
	})

	source := &RefreshTokenSource{
		Config:     config,
		Tokens:     newTokenStore(t, "rt-1"),
		HTTPClient: httpClient,
	}

	_, err := source.Exchange(context.Background(), testAudience())
	require.Error(t, err)
	assert.Equal(t, KindMFARequired, Classify(err))
}

func TestRefreshTokenSourceNoStoredLogin(t *testing.T) {
	source := &RefreshTokenSource{
		Config: &Config{Domain: "login.example.com", ClientID: "x"},
		Tokens: newTokenStore(t, ""),
	}
	_, err := source.Exchange(context.Background(), testAudience())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mfactl login")
}

func TestCredentialFromTokenResponseClaimFallback(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":   exp.Unix(),
		"scope": "openid " + ScopeReadMethods,
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	// response omits expires_in and scope; both come from the token
	cred := credentialFromTokenResponse(tokenResponse{AccessToken: signed}, testAudience())
	assert.Equal(t, "Bearer", cred.TokenType, "token_type defaults")
	assert.Equal(t, exp.Unix(), cred.ExpiresAt.Unix())
	assert.Equal(t, "openid "+ScopeReadMethods, cred.Scope)
}

func TestCredentialFromTokenResponseOpaqueToken(t *testing.T) {
	aud := testAudience()
	cred := credentialFromTokenResponse(tokenResponse{
		AccessToken: "opaque",
		ExpiresIn:   600,
	}, aud)
	assert.Equal(t, aud.Scope, cred.Scope, "scope falls back to the request")
	assert.False(t, cred.Expired())
}

func TestProviderCachesExchanges(t *testing.T) {
	exchanges := 0
	config, httpClient := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		writeJSON(w, 200, tokenResponse{AccessToken: "at-1", TokenType: "Bearer", ExpiresIn: 3600, Scope: "openid"})
	})

	provider := &Provider{
		Source: &RefreshTokenSource{Config: config, Tokens: newTokenStore(t, "rt-1"), HTTPClient: httpClient},
		Cache:  credcache.NewMemStore(),
	}
	ctx := context.Background()
	aud := testAudience()

	first, err := provider.Credentials(ctx, aud)
	require.NoError(t, err)
	second, err := provider.Credentials(ctx, aud)
	require.NoError(t, err)

	assert.Equal(t, 1, exchanges, "second fetch is served from cache")
	assert.Equal(t, first.AccessToken, second.AccessToken)
}

func TestProviderStoreReplacesCached(t *testing.T) {
	provider := &Provider{
		Source: nil,
		Cache:  credcache.NewMemStore(),
	}
	aud := testAudience()

	weak := validCred()
	weak.AccessToken = "weak"
	require.NoError(t, provider.Store(aud, &weak))

	strong := validCred()
	strong.AccessToken = "strong"
	require.NoError(t, provider.Store(aud, &strong))

	got, err := provider.Credentials(context.Background(), aud)
	require.NoError(t, err)
	assert.Equal(t, "strong", got.AccessToken, "a stored upgrade wins over the older credential")
}
