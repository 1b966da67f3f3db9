package lib

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkit/mfactl/internal/credcache"
)

type fakeLogin struct {
	result  *LoginResult
	err     error
	calls   int
	lastAud ScopedAudience
}

func (f *fakeLogin) Login(ctx context.Context, aud ScopedAudience) (*LoginResult, error) {
	f.calls++
	f.lastAud = aud
	return f.result, f.err
}

func TestStepUpStoresCredentialBeforeReturning(t *testing.T) {
	upgraded := validCred()
	upgraded.AccessToken = "upgraded"

	provider := &Provider{Cache: credcache.NewMemStore()}
	stepUp := &StepUp{
		Login: &fakeLogin{result: &LoginResult{Credential: upgraded}},
		Creds: provider,
	}

	aud := testAudience()
	require.NoError(t, stepUp.Upgrade(context.Background(), aud))

	// a fetch right after Upgrade sees the upgraded credential, not a
	// stale one
	got, err := provider.Credentials(context.Background(), aud)
	require.NoError(t, err)
	assert.Equal(t, "upgraded", got.AccessToken)
}

func TestStepUpPassesAudienceThrough(t *testing.T) {
	login := &fakeLogin{result: &LoginResult{Credential: validCred()}}
	stepUp := &StepUp{Login: login, Creds: &Provider{Cache: credcache.NewMemStore()}}

	aud := NewScopedAudience("https://login.example.com/me/", ScopeDeleteMethods)
	require.NoError(t, stepUp.Upgrade(context.Background(), aud))

	// the interactive flow must request exactly what the original call
	// needed
	assert.Equal(t, aud, login.lastAud)
	assert.Equal(t, 1, login.calls)
}

func TestStepUpStoresRotatedRefreshToken(t *testing.T) {
	tokens := newTokenStore(t, "rt-old")
	stepUp := &StepUp{
		Login:  &fakeLogin{result: &LoginResult{Credential: validCred(), RefreshToken: "rt-new"}},
		Creds:  &Provider{Cache: credcache.NewMemStore()},
		Tokens: tokens,
	}

	require.NoError(t, stepUp.Upgrade(context.Background(), testAudience()))

	token, err := tokens.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "rt-new", token)
}

func TestStepUpLoginFailurePropagates(t *testing.T) {
	stepUp := &StepUp{
		Login: &fakeLogin{err: ErrLoginCancelled},
		Creds: &Provider{Cache: credcache.NewMemStore()},
	}

	err := stepUp.Upgrade(context.Background(), testAudience())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginCancelled))
}
