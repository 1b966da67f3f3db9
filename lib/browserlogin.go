package lib

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const (
	RedirectAddr = "127.0.0.1:8435"
	RedirectPath = "/auth/callback"
)

// BrowserLogin is the interactive login collaborator: an
// authorization-code + PKCE flow through the system browser, with a
// loopback server catching the redirect. It always requests exactly the
// audience/scope it is invoked with, so the minted credential is usable
// for that pair and nothing else.
type BrowserLogin struct {
	Config *Config

	// Timeout covers the whole flow, browser fumbling included.
	// Defaults to 2 minutes.
	Timeout time.Duration
}

func (b *BrowserLogin) Login(ctx context.Context, aud ScopedAudience) (*LoginResult, error) {
	timeout := b.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// keep any session cookies the provider sets across discovery,
	// authorize and token calls
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar}
	ctx = oidc.ClientContext(ctx, httpClient)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	provider, err := oidc.NewProvider(ctx, fmt.Sprintf("https://%s/", b.Config.Domain))
	if err != nil {
		return nil, errors.Wrap(err, "discovering oidc provider")
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: b.Config.ClientID})

	state, err := randomHex(20)
	if err != nil {
		return nil, err
	}
	codeVerifier, codeChallenge, err := pkce()
	if err != nil {
		return nil, err
	}

	conf := oauth2.Config{
		ClientID:    b.Config.ClientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: fmt.Sprintf("http://%s%s", RedirectAddr, RedirectPath),
		Scopes:      aud.Scopes(),
	}

	resChan := make(chan *LoginResult, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(RedirectPath, func(w http.ResponseWriter, r *http.Request) {
		// whatever the outcome, the flow is over once the redirect lands
		defer cancel()
		defer w.Write([]byte("This tab/window can safely be closed"))

		log.Debug("Received redirect request")

		if errCode := r.URL.Query().Get("error"); errCode == "access_denied" {
			errChan <- ErrLoginCancelled
			return
		}

		if r.URL.Query().Get("state") != state {
			errChan <- errors.New("redirect state did not match")
			return
		}

		token, err := conf.Exchange(ctx, r.URL.Query().Get("code"),
			oauth2.SetAuthURLParam("code_verifier", codeVerifier),
		)
		if err != nil {
			errChan <- errors.Wrap(err, "exchanging authorization code")
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			errChan <- errors.New("no id_token field in oauth2 token")
			return
		}
		if _, err := verifier.Verify(ctx, rawIDToken); err != nil {
			errChan <- errors.Wrap(err, "verifying id token")
			return
		}

		grantedScope, _ := token.Extra("scope").(string)
		cred := credentialFromTokenResponse(tokenResponse{
			AccessToken: token.AccessToken,
			TokenType:   token.TokenType,
			Scope:       grantedScope,
		}, aud)
		if !token.Expiry.IsZero() {
			cred.ExpiresAt = token.Expiry
		}

		resChan <- &LoginResult{
			Credential:   *cred,
			RefreshToken: token.RefreshToken,
		}
	})

	srv := &http.Server{Addr: RedirectAddr, Handler: mux}
	go func() {
		log.Debugf("Listening for redirect on http://%s/", RedirectAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Debugf("redirect server: %s", err)
		}
	}()
	defer srv.Close()

	authURL := conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", aud.Audience),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	if err := browser.OpenURL(authURL); err != nil {
		return nil, errors.Wrap(err, "opening browser")
	}

	select {
	case result := <-resChan:
		return result, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		log.Debugf("Login did not complete: %s", ctx.Err())
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, errors.New("timed out waiting for login to complete")
	}
}

func pkce() (string, string, error) {
	codeVerifier, err := randomHex(30)
	if err != nil {
		return "", "", err
	}

	hash := sha256.New()
	hash.Write([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(hash.Sum(nil))

	return codeVerifier, codeChallenge, nil
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
