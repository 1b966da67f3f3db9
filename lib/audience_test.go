package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScopedAudience(t *testing.T) {
	aud := NewScopedAudience("https://login.example.com/me/", ScopeReadMethods, ScopeDeleteMethods)
	assert.Equal(t, "openid "+ScopeReadMethods+" "+ScopeDeleteMethods, aud.Scope)
	assert.Equal(t, []string{"openid", ScopeReadMethods, ScopeDeleteMethods}, aud.Scopes())
}

func TestScopedAudienceKey(t *testing.T) {
	a := NewScopedAudience("https://login.example.com/me/", ScopeReadMethods)
	b := NewScopedAudience("https://login.example.com/me/", ScopeReadMethods)
	c := NewScopedAudience("https://login.example.com/me/", ScopeDeleteMethods)
	d := NewScopedAudience("https://other.example.com/me/", ScopeReadMethods)

	assert.Equal(t, a.Key(), b.Key(), "key is deterministic")
	assert.NotEqual(t, a.Key(), c.Key(), "different scope sets get different slots")
	assert.NotEqual(t, a.Key(), d.Key(), "different audiences get different slots")
	assert.Contains(t, a.Key(), "https://login.example.com/me/")
}
