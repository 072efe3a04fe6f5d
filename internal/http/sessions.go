package http

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"moneyviz/internal/cache"
	"moneyviz/internal/filtersync"
)

const sessionCookieName = "moneyviz_session"

// sessionStore maps browser sessions to their filter clients. A session
// that expires or is pushed out of the LRU has its client closed, which
// aborts any request it still has in flight.
type sessionStore struct {
	clients  *cache.LRUCache[*filtersync.Client]
	ttl      time.Duration
	active   atomic.Int64
	onChange func(active int)
}

func newSessionStore(maxSessions int, ttl time.Duration, onChange func(active int)) *sessionStore {
	s := &sessionStore{ttl: ttl, onChange: onChange}
	s.clients = cache.NewLRUCache[*filtersync.Client](maxSessions, ttl,
		cache.WithEvictCallback(func(_ string, c *filtersync.Client) {
			c.Close()
			s.report(s.active.Add(-1))
		}))
	return s
}

// get returns the client of a live session and extends its lifetime.
func (s *sessionStore) get(id string) (*filtersync.Client, bool) {
	if id == "" {
		return nil, false
	}
	c, ok := s.clients.Get(id)
	if ok {
		s.clients.Touch(id)
	}
	return c, ok
}

// create registers c under a new session id.
func (s *sessionStore) create(c *filtersync.Client) string {
	id := uuid.NewString()
	s.clients.Set(id, c)
	s.report(s.active.Add(1))
	return id
}

func (s *sessionStore) delete(id string) {
	if id != "" {
		s.clients.Delete(id)
	}
}

// closeAll ends every session.
func (s *sessionStore) closeAll() int {
	return s.clients.Purge()
}

func (s *sessionStore) count() int {
	return s.clients.Size()
}

func (s *sessionStore) report(n int64) {
	if s.onChange != nil {
		s.onChange(int(n))
	}
}

// sessionID reads the session cookie. Values that are not UUIDs are ignored.
func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

func (s *sessionStore) setCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
