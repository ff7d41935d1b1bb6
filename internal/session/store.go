package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"hpackCodec/internal/logging"
	"hpackCodec/internal/metrics"
)

// Store keeps sessions for ttl after their last use.
type Store struct {
	cache  *cache.Cache
	ttl    time.Duration
	opts   Options
	logger logging.Logger
}

// NewStore creates sessions with opts. Expired sessions are swept every ttl/2.
func NewStore(ttl time.Duration, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	store := &Store{
		cache:  cache.New(ttl, max(ttl/2, time.Second)),
		ttl:    ttl,
		opts:   opts,
		logger: opts.Logger,
	}
	store.cache.OnEvicted(func(id string, _ interface{}) {
		metrics.SessionClosed()
		store.logger.Log(logging.LogLevelDebug, "session %s closed", id)
	})

	return store
}

func (st *Store) Create() *Session {
	s := New(uuid.NewString(), st.opts)
	st.cache.Set(s.ID, s, cache.DefaultExpiration)
	metrics.SessionOpened()

	st.logger.Log(logging.LogLevelInfo, "session %s created", s.ID)
	return s
}

// Get returns the session and extends its lifetime.
func (st *Store) Get(id string) (*Session, bool) {
	v, found := st.cache.Get(id)
	if !found {
		return nil, false
	}

	s := v.(*Session)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

func (st *Store) Delete(id string) bool {
	if _, found := st.cache.Get(id); !found {
		return false
	}
	st.cache.Delete(id)
	return true
}

func (st *Store) Len() int {
	return st.cache.ItemCount()
}

func (st *Store) TTL() time.Duration {
	return st.ttl
}
