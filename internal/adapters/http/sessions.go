package httpadapter

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/usecase"
)

const sessionCookieName = "pdfproc_session"

type sessionEntry struct {
	session    *usecase.Session
	lastResult *domain.DocumentResult
	lastSeen   time.Time
}

// sessionStore keeps browser sessions in memory. Idle entries are pruned
// on access; there is no background sweeper.
type sessionStore struct {
	idle time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func newSessionStore(idle time.Duration) *sessionStore {
	if idle <= 0 {
		idle = time.Hour
	}
	return &sessionStore{
		idle:    idle,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// resolve returns the caller's session, creating one and setting the cookie when needed.
func (s *sessionStore) resolve(w http.ResponseWriter, r *http.Request) *sessionEntry {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if entry, ok := s.entries[cookie.Value]; ok {
			entry.lastSeen = now
			return entry
		}
	}

	id := uuid.NewString()
	entry := &sessionEntry{session: usecase.NewSessionWithID(id), lastSeen: now}
	s.entries[id] = entry
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.idle.Seconds()),
	})
	return entry
}

// lookup returns an existing session without creating one.
func (s *sessionStore) lookup(r *http.Request) (*sessionEntry, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	entry, ok := s.entries[cookie.Value]
	if ok {
		entry.lastSeen = now
	}
	return entry, ok
}

func (s *sessionStore) remember(entry *sessionEntry, result *domain.DocumentResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.lastResult = result
}

func (s *sessionStore) lastResult(entry *sessionEntry) *domain.DocumentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entry.lastResult
}

func (s *sessionStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *sessionStore) pruneLocked(now time.Time) {
	for id, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.idle {
			delete(s.entries, id)
		}
	}
}
