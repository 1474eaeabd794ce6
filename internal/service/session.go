package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/batchtxt/internal/domain"
)

// SessionStore keeps one dialogue per chat in memory. Callers work on copies:
// Get returns a snapshot and Update applies a mutation under the store lock,
// so concurrent updates for the same chat never race on a Session.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
	timeout  time.Duration
	now      func() time.Time
}

type sessionEntry struct {
	session domain.Session
	busy    bool
}

func NewSessionStore(timeout time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*sessionEntry),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Start opens a new dialogue for chatID, replacing any existing one. The
// replaced session, if any, is returned so the caller can tell the user.
func (s *SessionStore) Start(chatID, userID int64, platform string, state domain.State) (domain.Session, *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *domain.Session
	if e, ok := s.sessions[chatID]; ok && !e.session.Expired(s.now(), s.timeout) {
		cp := e.session
		prev = &cp
	}

	now := s.now()
	sess := domain.Session{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		UserID:       userID,
		Platform:     platform,
		State:        state,
		StartedAt:    now,
		LastActivity: now,
	}
	s.sessions[chatID] = &sessionEntry{session: sess}
	return sess, prev
}

// Get returns the live session for chatID. Idle sessions past the timeout
// are dropped and reported as absent.
func (s *SessionStore) Get(chatID int64) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[chatID]
	if !ok {
		return domain.Session{}, false
	}
	if !e.busy && e.session.Expired(s.now(), s.timeout) {
		delete(s.sessions, chatID)
		return domain.Session{}, false
	}
	return e.session, true
}

// Update applies fn to the session identified by chatID and sessionID and
// refreshes its activity time. It reports false when that session is gone,
// e.g. ended by /cancel or replaced by a new command in the meantime.
func (s *SessionStore) Update(chatID int64, sessionID string, fn func(*domain.Session)) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[chatID]
	if !ok || e.session.ID != sessionID {
		return domain.Session{}, false
	}
	fn(&e.session)
	e.session.LastActivity = s.now()
	return e.session, true
}

// End removes the session. An empty sessionID ends whatever is active.
func (s *SessionStore) End(chatID int64, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[chatID]
	if !ok || (sessionID != "" && e.session.ID != sessionID) {
		return false
	}
	delete(s.sessions, chatID)
	return true
}

// TryBegin marks the session busy for a long running step. Only one caller
// wins; the others get domain.ErrSessionBusy. Busy sessions are never swept.
func (s *SessionStore) TryBegin(chatID int64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[chatID]
	if !ok || e.session.ID != sessionID {
		return domain.ErrSessionGone
	}
	if e.busy {
		return domain.ErrSessionBusy
	}
	e.busy = true
	e.session.State = domain.StateExtracting
	e.session.LastActivity = s.now()
	return nil
}

// Touch refreshes the activity time without changing anything else.
func (s *SessionStore) Touch(chatID int64, sessionID string) bool {
	_, ok := s.Update(chatID, sessionID, func(*domain.Session) {})
	return ok
}

// Busy reports whether chatID has a step in flight.
func (s *SessionStore) Busy(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[chatID]
	return ok && e.busy
}

// Sweep removes and returns every idle session past the timeout.
func (s *SessionStore) Sweep() []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []domain.Session
	for chatID, e := range s.sessions {
		if e.busy || !e.session.Expired(now, s.timeout) {
			continue
		}
		expired = append(expired, e.session)
		delete(s.sessions, chatID)
	}
	return expired
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stats counts sessions per platform and how many have a step in flight.
func (s *SessionStore) Stats() (perPlatform map[string]int, busy int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perPlatform = make(map[string]int)
	for _, e := range s.sessions {
		perPlatform[e.session.Platform]++
		if e.busy {
			busy++
		}
	}
	return perPlatform, busy
}
