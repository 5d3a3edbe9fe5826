package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	init bool
	c    *cache.Cache
}

var (
	CacheInstance Cache
	lock          = &sync.Mutex{}
)

func NewCache() *Cache {
	lock.Lock()
	defer lock.Unlock()

	if !CacheInstance.init {
		CacheInstance = Cache{
			init: true,
		} // <-- thread safe
	}

	return &CacheInstance
}

func (cm *Cache) Start() error {
	// Revoked tokens only need to outlive their own JWT expiry window
	c := cache.New(24*time.Hour, 30*time.Minute)
	cm.c = c
	return nil
}

func (cm *Cache) Insert(k string, x interface{}) {
	cm.c.Set(k, x, cache.DefaultExpiration)
}

func (cm *Cache) Get(key string) (interface{}, error) {
	val, found := cm.c.Get(key)
	if found {
		return val, nil
	}

	return nil, fmt.Errorf("value not found")
}

// RevokeToken blacklists a bearer token until its natural expiry would have
// passed, so logged-out review-panel sessions cannot be replayed.
func (cm *Cache) RevokeToken(token string) {
	cm.c.Set(revokedKey(token), true, cache.DefaultExpiration)
}

// IsTokenRevoked reports whether the token was blacklisted by a logout.
func (cm *Cache) IsTokenRevoked(token string) bool {
	_, found := cm.c.Get(revokedKey(token))
	return found
}

func revokedKey(token string) string {
	return fmt.Sprintf("revoked:%s", token)
}

func (cm *Cache) Stop() error {
	cm.c.Flush()
	return nil
}
