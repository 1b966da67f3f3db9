package credcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// duplicates the subset of Store the lib provider relies on
type store interface {
	Get(Key) (*Credential, error)
	Put(Key, *Credential) error
	Delete(Key) error
}

var theDistantFuture = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
var theDistantPast = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)

type fixedKey struct {
	v string
}

func (k *fixedKey) Key() string {
	return k.v
}

func testStore(t *testing.T, storeFactory func() store) {
	tName := "put-get"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		cred := Credential{
			AccessToken: "at-" + tName,
			TokenType:   "Bearer",
			Scope:       "openid read:me:authentication_methods",
			// avoid expiration
			ExpiresAt: theDistantFuture,
		}
		key := fixedKey{tName}

		err := st.Put(&key, &cred)
		if err != nil {
			t.Fatalf("error on put: %s", err)
		}

		got, err := st.Get(&key)
		if err != nil {
			t.Fatalf("error on get: %s", err)
		}
		assert.Equal(t, cred, *got)
	})

	tName = "get missing should return ErrCredentialNotFound"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()

		_, err := st.Get(&fixedKey{tName})
		if !errors.Is(err, ErrCredentialNotFound) {
			t.Fatalf("expected get err to be ErrCredentialNotFound; is %s", err)
		}
	})

	tName = "get expired should return an error"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		cred := Credential{
			AccessToken: "at-" + tName,
			ExpiresAt:   theDistantPast,
		}
		key := fixedKey{tName}

		err := st.Put(&key, &cred)
		if err != nil {
			t.Fatalf("error on put: %s", err)
		}

		_, err = st.Get(&key)
		if !errors.Is(err, ErrCredentialExpired) && !errors.Is(err, ErrCredentialNotFound) {
			t.Fatalf("expected get err for expired credential; is %v", err)
		}
	})

	tName = "put replaces previous credential for the same key"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		key := fixedKey{tName}

		stale := Credential{AccessToken: "stale", ExpiresAt: theDistantFuture}
		if err := st.Put(&key, &stale); err != nil {
			t.Fatalf("error on put: %s", err)
		}

		upgraded := Credential{AccessToken: "upgraded", ExpiresAt: theDistantFuture}
		if err := st.Put(&key, &upgraded); err != nil {
			t.Fatalf("error on put: %s", err)
		}

		got, err := st.Get(&key)
		if err != nil {
			t.Fatalf("error on get: %s", err)
		}
		assert.Equal(t, "upgraded", got.AccessToken)
	})

	tName = "delete"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		key := fixedKey{tName}

		cred := Credential{AccessToken: "at", ExpiresAt: theDistantFuture}
		if err := st.Put(&key, &cred); err != nil {
			t.Fatalf("error on put: %s", err)
		}
		if err := st.Delete(&key); err != nil {
			t.Fatalf("error on delete: %s", err)
		}

		_, err := st.Get(&key)
		assert.Error(t, err)
	})
}
