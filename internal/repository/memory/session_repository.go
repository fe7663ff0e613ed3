package memory

import (
	"time"

	"ai-notetaking-agent/pkg/agent/session"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	// Idle sessions are evicted after ttl; the janitor sweeps every 10 minutes.
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(s *session.Session) {
	r.cache.Set(s.Key(), s, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(key string) (*session.Session, bool) {
	if x, found := r.cache.Get(key); found {
		return x.(*session.Session), true
	}
	return nil, false
}

// GetOrCreate returns the cached session and refreshes its expiry.
func (r *SessionRepository) GetOrCreate(key string, create func() *session.Session) *session.Session {
	if s, ok := r.Get(key); ok {
		r.Save(s)
		return s
	}
	s := create()
	if err := r.cache.Add(key, s, cache.DefaultExpiration); err != nil {
		// lost a race with another creator
		if existing, ok := r.Get(key); ok {
			return existing
		}
		r.Save(s)
	}
	return s
}

func (r *SessionRepository) Delete(key string) {
	r.cache.Delete(key)
}
