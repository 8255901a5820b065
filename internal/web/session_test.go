package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-moodflow/internal/pipeline"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Len(t, session.ID, 36, "uuid string")
	assert.Nil(t, session.Result)

	result := &pipeline.Session{MoodText: "calm"}
	require.NoError(t, store.SaveResult(ctx, session.ID, result))

	got := store.Get(ctx, session.ID)
	require.NotNil(t, got)
	assert.Equal(t, "calm", got.Result.MoodText)

	// Replaced wholesale, never merged.
	require.NoError(t, store.SaveResult(ctx, session.ID, &pipeline.Session{MoodText: "restless"}))
	assert.Equal(t, "restless", store.Get(ctx, session.ID).Result.MoodText)

	require.NoError(t, store.SaveResult(ctx, session.ID, nil))
	assert.Nil(t, store.Get(ctx, session.ID).Result)

	store.Delete(ctx, session.ID)
	assert.Nil(t, store.Get(ctx, session.ID))
	assert.ErrorIs(t, store.SaveResult(ctx, session.ID, result), ErrSessionNotFound)
}

func TestSessionStore_GetReturnsCopy(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	got := store.Get(ctx, session.ID)
	got.Result = &pipeline.Session{MoodText: "mutated"}

	assert.Nil(t, store.Get(ctx, session.ID).Result)
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	fresh, err := store.Create(ctx)
	require.NoError(t, err)
	stale, err := store.Create(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.sessions[stale.ID].ExpiresAt = time.Now().Add(-time.Minute)
	store.mu.Unlock()

	assert.Nil(t, store.Get(ctx, stale.ID))
	assert.NotNil(t, store.Get(ctx, fresh.ID))
	assert.ErrorIs(t, store.SaveResult(ctx, stale.ID, &pipeline.Session{MoodText: "late"}), ErrSessionNotFound)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotNil(t, store.Get(ctx, fresh.ID))
}

func TestSessionStore_SaveResultExtendsExpiry(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(sessionTTL), session.ExpiresAt, time.Minute)

	// First visit long ago, close to expiry.
	store.mu.Lock()
	store.sessions[session.ID].CreatedAt = time.Now().Add(-sessionTTL + time.Minute)
	store.sessions[session.ID].ExpiresAt = time.Now().Add(time.Minute)
	store.mu.Unlock()

	require.NoError(t, store.SaveResult(ctx, session.ID, &pipeline.Session{MoodText: "calm"}))

	got := store.Get(ctx, session.ID)
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now().Add(sessionTTL), got.ExpiresAt, time.Minute)

	// Still alive once the original TTL from CreatedAt has passed.
	store.mu.Lock()
	store.sessions[session.ID].CreatedAt = time.Now().Add(-2 * sessionTTL)
	store.mu.Unlock()

	got = store.Get(ctx, session.ID)
	require.NotNil(t, got)
	assert.Equal(t, "calm", got.Result.MoodText)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionStore_Cookies(t *testing.T) {
	store := NewSessionStore()
	session, err := store.Create(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	store.SetCookie(rec, session)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(sessionTTL.Seconds()), cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got := store.GetFromRequest(req)
	require.NotNil(t, got)
	assert.Equal(t, session.ID, got.ID)

	assert.Nil(t, store.GetFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))

	rec = httptest.NewRecorder()
	store.ClearCookie(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestInflight(t *testing.T) {
	f := newInflight()

	assert.True(t, f.acquire("a"))
	assert.False(t, f.acquire("a"))
	assert.True(t, f.acquire("b"))

	f.release("a")
	assert.True(t, f.acquire("a"))
}
