// Package session keeps the per-browser state of the dashboard: the
// uploaded file and the table materialized from it.
package session

import (
	"context"
	"sync"
	"time"

	"flowdash/adapters/excel"
	"flowdash/domain/table"
	"flowdash/internal"

	"github.com/google/uuid"
)

var logger = internal.DefaultLogger.With("SessionStore")

// State is what one session holds between interactions. A State is created
// empty, filled on a successful upload, replaced by the next upload or sheet
// change and cleared on reset.
type State struct {
	Reader     *excel.DataReader
	Sheets     []string
	Sheet      string
	Table      *table.Table
	UploadedAt time.Time
	flash      Flash
}

// Flash is a one-shot message shown on the next page view
type Flash struct {
	Kind    string
	Message string
}

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Loaded reports whether a table is available
func (s State) Loaded() bool {
	return s.Table != nil
}

// FileName returns the uploaded file's name, or "" when nothing is loaded
func (s State) FileName() string {
	if s.Reader == nil {
		return ""
	}
	return s.Reader.FileName()
}

// Session is one browser session. Interactions on the same session are
// serialized by its mutex.
type Session struct {
	id       string
	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

// ID returns the session identifier stored in the cookie
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update runs fn with exclusive access to the state. If fn fails the state
// is left as it was.
func (s *Session) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Clear drops the loaded file and table
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}

// SetFlash stores a message for the next page view
func (s *Session) SetFlash(kind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.flash = Flash{Kind: kind, Message: msg}
}

// TakeFlash returns and clears the pending message
func (s *Session) TakeFlash() Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.state.flash
	s.state.flash = Flash{}
	return f
}

// Store holds all live sessions in memory
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl without use
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns how long an idle session lives
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create starts a new empty session
func (s *Store) Create() *Session {
	sess := &Session{id: uuid.NewString()}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastSeen = s.now()
	s.sessions[sess.id] = sess
	logger.Debug("Created session %s", sess.id)
	return sess
}

// Get returns a live session and marks it as used. Expired sessions are
// removed and reported as missing.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// GetOrCreate returns the session for id, creating a new one (with a new
// id) when it is unknown or expired
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.Create(), true
}

// Delete removes a session
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions held, expired or not
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were dropped
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("Expired %d idle sessions (%d remaining)", n, s.Len())
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}
