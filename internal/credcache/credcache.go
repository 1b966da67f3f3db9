// Package credcache caches audience/scope-bound API credentials across
// interchangeable stores (in-memory, OS keyring).
package credcache

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExpired  = errors.New("credential expired")
)

// Credential is a short-lived access token bound to the audience/scope it
// was minted for. The zero value is not usable.
type Credential struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

func (c *Credential) Expired() bool {
	return c.ExpiresAt.Before(time.Now())
}

func (c *Credential) Bytes() ([]byte, error) {
	return json.Marshal(c)
}

// Key identifies the audience/scope slot a credential is cached under.
type Key interface {
	Key() string
}

type Store interface {
	Get(Key) (*Credential, error)
	Put(Key, *Credential) error
	Delete(Key) error
}
