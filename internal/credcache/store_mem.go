package credcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// MemStore keeps credentials in process memory only. Entries evict
// themselves at the credential's own expiry, so a Get can only return a
// live credential.
type MemStore struct {
	cache *gocache.Cache
}

func NewMemStore() *MemStore {
	return &MemStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *MemStore) Get(k Key) (*Credential, error) {
	keyStr := k.Key()

	v, ok := s.cache.Get(keyStr)
	if !ok {
		log.Debugf("cache get `%s`: miss", keyStr)
		return nil, ErrCredentialNotFound
	}

	cred := v.(Credential)
	if cred.Expired() {
		log.Debugf("cache get `%s`: expired", keyStr)
		return nil, ErrCredentialExpired
	}

	log.Debugf("cache get `%s`: hit", keyStr)
	return &cred, nil
}

func (s *MemStore) Put(k Key, cred *Credential) error {
	s.cache.Set(k.Key(), *cred, time.Until(cred.ExpiresAt))
	return nil
}

func (s *MemStore) Delete(k Key) error {
	s.cache.Delete(k.Key())
	return nil
}
