package credcache

import (
	"encoding/json"
	"time"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TODO: make these configurable
const KeyringItemKey = "credential-cache"
const KeyringItemLabel = "mfactl credential cache"

type singleKrItemDb struct {
	Credentials map[string]Credential
}

// SingleKrItemStore stores all cached credentials in a single keyring item.
//
// Collapsing the cache into one item means the user only has to authorize
// keychain access for the binary once per upgrade, not once per audience.
type SingleKrItemStore struct {
	Keyring keyring.Keyring
}

func (s *SingleKrItemStore) getDb() (*singleKrItemDb, error) {
	item, err := s.Keyring.Get(KeyringItemKey)
	if err != nil {
		return nil, err
	}

	var unmarshalled singleKrItemDb
	if err := json.Unmarshal(item.Data, &unmarshalled); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal db from keyring item")
	}

	return &unmarshalled, nil
}

func (s *SingleKrItemStore) Get(k Key) (*Credential, error) {
	keyStr := k.Key()

	currentDb, err := s.getDb()
	if err != nil {
		log.Debugf("cache get `%s`: miss (read error): %s", keyStr, err)
		return nil, ErrCredentialNotFound
	}

	cred, ok := currentDb.Credentials[keyStr]
	if !ok {
		log.Debugf("cache get `%s`: miss", keyStr)
		return nil, ErrCredentialNotFound
	}

	if cred.ExpiresAt.Before(time.Now()) {
		log.Debugf("cache get `%s`: expired", keyStr)
		return nil, ErrCredentialExpired
	}

	log.Debugf("cache get `%s`: hit", keyStr)
	return &cred, nil
}

func (s *SingleKrItemStore) Put(k Key, cred *Credential) error {
	keyStr := k.Key()

	currentDb, err := s.getDb()
	if err == keyring.ErrKeyNotFound || (err == nil && currentDb.Credentials == nil) {
		log.Debugf("cache put: new db")
		currentDb = &singleKrItemDb{
			Credentials: map[string]Credential{},
		}
	} else if err != nil {
		log.Debugf("cache put `%s`: error (reading): %s", keyStr, err)
		return err
	}

	currentDb.Credentials[keyStr] = *cred

	bytes, err := json.Marshal(*currentDb)
	if err != nil {
		log.Debugf("cache put `%s`: error (marshalling): %s", keyStr, err)
		return err
	}

	item := keyring.Item{
		Key:                         KeyringItemKey,
		Label:                       KeyringItemLabel,
		Data:                        bytes,
		KeychainNotTrustApplication: false,
	}
	if err := s.Keyring.Set(item); err != nil {
		log.Debugf("cache put `%s`: error (writing): %s", keyStr, err)
		return err
	}
	log.Debugf("cache put `%s`: success", keyStr)

	return nil
}

func (s *SingleKrItemStore) Delete(k Key) error {
	keyStr := k.Key()

	currentDb, err := s.getDb()
	if err == keyring.ErrKeyNotFound {
		return nil
	} else if err != nil {
		return err
	}

	delete(currentDb.Credentials, keyStr)

	bytes, err := json.Marshal(*currentDb)
	if err != nil {
		return err
	}

	return s.Keyring.Set(keyring.Item{
		Key:                         KeyringItemKey,
		Label:                       KeyringItemLabel,
		Data:                        bytes,
		KeychainNotTrustApplication: false,
	})
}
