// Package web provides the HTTP server and web UI for MoodFlow.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/justestif/go-moodflow/internal/db"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/pipeline"
)

const (
	sessionCookieName = "session_id"
	sessionTTL        = 24 * time.Hour
)

// Session is a browser session holding the last completed submission.
type Session struct {
	ID        string
	Result    *pipeline.Session // nil until a submission completes
	CreatedAt time.Time
	ExpiresAt time.Time // extended each time a result is saved
}

// SessionManager defines the interface for session management.
type SessionManager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) *Session
	SaveResult(ctx context.Context, id string, result *pipeline.Session) error
	Delete(ctx context.Context, id string)
	DeleteExpired(ctx context.Context) (int64, error)
	GetFromRequest(r *http.Request) *Session
	SetCookie(w http.ResponseWriter, session *Session)
	ClearCookie(w http.ResponseWriter)
}

// ErrSessionNotFound is returned when saving into a session that no longer exists.
var ErrSessionNotFound = errors.New("session not found")

// ============================================================================
// In-Memory Session Store
// ============================================================================

// SessionStore manages sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create starts a new empty session.
func (s *SessionStore) Create(_ context.Context) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID. The returned value is a copy.
func (s *SessionStore) Get(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return nil
	}

	cp := *session
	return &cp
}

// SaveResult replaces the session's result wholesale and extends the
// session's expiry. A nil result clears it.
func (s *SessionStore) SaveResult(_ context.Context, id string, result *pipeline.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return ErrSessionNotFound
	}
	session.Result = result
	session.ExpiresAt = time.Now().Add(sessionTTL)
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// DeleteExpired drops sessions past their expiry.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := time.Now()
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// GetFromRequest extracts the session from the request cookie.
func (s *SessionStore) GetFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	return s.Get(r.Context(), cookie.Value)
}

// SetCookie sets the session cookie on the response.
func (s *SessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// ============================================================================
// Database-Backed Session Store
// ============================================================================

// DBSessionStore manages sessions in PostgreSQL, storing each result as a
// JSON snapshot.
type DBSessionStore struct {
	database *db.DB
}

// NewDBSessionStore creates a new database-backed session store.
func NewDBSessionStore(database *db.DB) *DBSessionStore {
	return &DBSessionStore{database: database}
}

// Create starts a new empty session and stores it in the database.
func (s *DBSessionStore) Create(ctx context.Context) (*Session, error) {
	now := time.Now()
	dbSession := &db.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}

	if err := s.database.Sessions().Create(ctx, dbSession); err != nil {
		return nil, err
	}

	return &Session{ID: dbSession.ID, CreatedAt: now, ExpiresAt: dbSession.ExpiresAt}, nil
}

// Get retrieves a session by ID from the database.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	dbSession, err := s.database.Sessions().Get(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Msg("Loading session failed")
		}
		return nil
	}

	session := &Session{ID: dbSession.ID, CreatedAt: dbSession.CreatedAt, ExpiresAt: dbSession.ExpiresAt}
	if len(dbSession.Snapshot) > 0 {
		var result pipeline.Session
		if err := json.Unmarshal(dbSession.Snapshot, &result); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("session", id).Msg("Discarding unreadable session snapshot")
			return session
		}
		session.Result = &result
	}
	return session
}

// SaveResult stores the result snapshot and extends the session's expiry.
func (s *DBSessionStore) SaveResult(ctx context.Context, id string, result *pipeline.Session) error {
	var snapshot []byte
	if result != nil {
		var err error
		if snapshot, err = json.Marshal(result); err != nil {
			return err
		}
	}

	err := s.database.Sessions().SaveSnapshot(ctx, id, snapshot, time.Now().Add(sessionTTL))
	if errors.Is(err, db.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// Delete removes a session from the database.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	_ = s.database.Sessions().Delete(ctx, id)
}

// DeleteExpired removes expired sessions from the database.
func (s *DBSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	return s.database.Sessions().DeleteExpired(ctx)
}

// GetFromRequest extracts the session from the request cookie.
func (s *DBSessionStore) GetFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	return s.Get(r.Context(), cookie.Value)
}

// SetCookie sets the session cookie on the response.
func (s *DBSessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *DBSessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// setCookie sets the session cookie on the response.
func setCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

// clearCookie removes the session cookie from the response.
func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// inflight tracks sessions with a submission currently running.
type inflight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{ids: make(map[string]struct{})}
}

// acquire marks id as busy. It reports false if id was already busy.
func (f *inflight) acquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inflight) release(id string) {
	f.mu.Lock()
	delete(f.ids, id)
	f.mu.Unlock()
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
)
