package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

// tokenExpirySkew treats a token as expired slightly before the upstream does.
const tokenExpirySkew = 30 * time.Second

// Session is the explicit token cache of one user session.
type Session struct {
	id  string
	now func() time.Time

	mu       sync.Mutex
	token    domain.Token
	hasToken bool
}

func NewSession() *Session {
	return NewSessionWithID(uuid.NewString())
}

func NewSessionWithID(id string) *Session {
	return &Session{
		id:  id,
		now: time.Now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CachedToken() (domain.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasToken {
		return domain.Token{}, false
	}
	if s.token.Expired(s.now().Add(tokenExpirySkew)) {
		s.token = domain.Token{}
		s.hasToken = false
		return domain.Token{}, false
	}
	return s.token, true
}

func (s *Session) StoreToken(token domain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.hasToken = true
}

func (s *Session) InvalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = domain.Token{}
	s.hasToken = false
}
