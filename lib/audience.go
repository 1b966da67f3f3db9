package lib

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Scopes understood by the account-management API. Every token request
// additionally carries "openid".
const (
	ScopeReadMethods   = "read:me:authentication_methods"
	ScopeCreateMethods = "create:me:authentication_methods"
	ScopeDeleteMethods = "delete:me:authentication_methods"

	scopeOpenID = "openid"
)

// ScopedAudience identifies what an API credential must be authorized
// for: an audience URI plus a space-delimited scope string. Immutable
// value; build one with NewScopedAudience.
type ScopedAudience struct {
	Audience string
	Scope    string
}

func NewScopedAudience(audience string, scopes ...string) ScopedAudience {
	all := append([]string{scopeOpenID}, scopes...)
	return ScopedAudience{
		Audience: audience,
		Scope:    strings.Join(all, " "),
	}
}

func (a ScopedAudience) Scopes() []string {
	return strings.Fields(a.Scope)
}

// Key returns the cache slot for this audience/scope pair: the audience
// plus a short digest of both fields, so different scope sets for the
// same audience never collide.
func (a ScopedAudience) Key() string {
	hasher := md5.New()
	hasher.Write([]byte(a.Audience))
	hasher.Write([]byte(" "))
	hasher.Write([]byte(a.Scope))
	return fmt.Sprintf("%s (%s)", a.Audience, hex.EncodeToString(hasher.Sum(nil))[0:10])
}
