package memory

import (
	"hash/fnv"
	"sync"
	"time"

	"ai-triage-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// lockShards is the size of the keyed-mutex table. Turns for one session id
// always hash to the same mutex, so they are processed strictly in arrival
// order; distinct session ids almost never contend.
const lockShards = 64

// SessionRepository owns the process-wide session map. Sessions are
// deliberately non-durable: a TTL cache drops idle conversations and a
// process restart starts everyone back at the nurse.
type SessionRepository struct {
	cache *cache.Cache
	locks [lockShards]sync.Mutex
}

func NewSessionRepository() *SessionRepository {
	// Default expiration of 1 hour, purge sweep every 10 minutes.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

// Lock serializes turns for one session id and returns the unlock func.
func (r *SessionRepository) Lock(sessionID string) func() {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	mu := &r.locks[h.Sum32()%lockShards]
	mu.Lock()
	return mu.Unlock
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
