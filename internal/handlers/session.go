package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namaznow/timings-import/internal/form"
	"github.com/namaznow/timings-import/internal/logging"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// SessionCookieName identifies a browser's form session
const SessionCookieName = "timings_session"

// ControllerFactory builds a fresh form controller that reports to the given notifier
type ControllerFactory func(notifier form.Notifier) *form.Controller

// Session is one browser's import form plus the notifications waiting to be shown
type Session struct {
	ID         string
	Controller *form.Controller

	mu       sync.Mutex
	flashes  []form.Notification
	lastSeen time.Time
}

// Notify queues a notification for the next page render
func (s *Session) Notify(n form.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, n)
}

// DrainFlashes returns and clears the queued notifications
func (s *Session) DrainFlashes() []form.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	flashes := s.flashes
	s.flashes = nil
	return flashes
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps form sessions in memory and expires idle ones
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	factory  ControllerFactory
	now      func() time.Time
	active   *atomic.Int64
	created  *atomic.Int64
	logger   zerolog.Logger
}

// NewSessionStore creates a store whose sessions expire after ttl without a request
func NewSessionStore(ttl time.Duration, factory ControllerFactory) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		factory:  factory,
		now:      time.Now,
		active:   atomic.NewInt64(0),
		created:  atomic.NewInt64(0),
		logger:   logging.GetLogger("sessions"),
	}
}

// Get returns the caller's session, creating one and setting the cookie when
// there is none or it has expired. The bool is true for a new session.
func (s *SessionStore) Get(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	now := s.now()

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		s.mu.Lock()
		session, ok := s.sessions[cookie.Value]
		s.mu.Unlock()
		if ok && now.Sub(session.idleSince()) < s.ttl {
			session.touch(now)
			return session, false
		}
		if ok {
			s.remove(cookie.Value)
		}
	}

	session := &Session{ID: uuid.NewString(), lastSeen: now}
	session.Controller = s.factory(session)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	s.active.Inc()
	s.created.Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
	s.logger.Debug().Str("session_id", session.ID).Msg("Created form session")
	return session, true
}

// Sweep closes and drops every session idle for longer than the TTL
func (s *SessionStore) Sweep() int {
	now := s.now()
	var expired []string

	s.mu.Lock()
	for id, session := range s.sessions {
		if now.Sub(session.idleSince()) >= s.ttl {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.remove(id)
	}
	if len(expired) > 0 {
		s.logger.Info().Int("expired", len(expired)).Int64("active", s.active.Load()).Msg("Expired idle form sessions")
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done, then closes all sessions
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll closes every session's controller
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.remove(id)
	}
}

// Active is the number of live sessions
func (s *SessionStore) Active() int64 {
	return s.active.Load()
}

// Created is the number of sessions created since start
func (s *SessionStore) Created() int64 {
	return s.created.Load()
}

func (s *SessionStore) remove(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	session.Controller.Close()
	s.active.Dec()
	s.logger.Debug().Str("session_id", id).Msg("Closed form session")
}
