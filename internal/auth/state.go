package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/ReneKroon/ttlcache"
)

// PendingTTL bounds how long a sign-in may take
const PendingTTL = 10 * time.Minute

// pending is an OAuth round trip in progress
type pending struct {
	Nonce       string
	RedirectURL string
	Next        string
}

// stateStore keeps pending sign-ins keyed by the OAuth state parameter.
// Entries are single use.
type stateStore struct {
	cache *ttlcache.Cache
}

func newStateStore(ttl time.Duration) *stateStore {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &stateStore{cache: cache}
}

// put stores p and returns its state key
func (s *stateStore) put(p pending) string {
	state := randomToken()
	s.cache.Set(state, p)
	return state
}

// take returns and forgets the pending sign-in for state
func (s *stateStore) take(state string) (pending, bool) {
	if state == "" {
		return pending{}, false
	}
	v, ok := s.cache.Get(state)
	if !ok {
		return pending{}, false
	}
	s.cache.Remove(state)
	p, ok := v.(pending)
	return p, ok
}

func (s *stateStore) close() {
	s.cache.Close()
}

func randomToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
