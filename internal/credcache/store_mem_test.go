package credcache

import (
	"testing"
)

func TestMemStore(t *testing.T) {
	testStore(t, func() store {
		return NewMemStore()
	})
}
