package web

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/pipeline"
	"github.com/justestif/go-moodflow/internal/qloo"
	assets "github.com/justestif/go-moodflow/web"
)

// blockingMood makes fakeRunner wait on its release channel.
const blockingMood = "block until released"

// fakeRunner implements Runner for testing.
type fakeRunner struct {
	mu      sync.Mutex
	subs    []pipeline.Submission
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, sub pipeline.Submission) (*pipeline.Session, error) {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()

	if sub.Mood == blockingMood {
		f.started <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(sub.Mood) == "" {
		return nil, pipeline.ErrEmptyMood
	}

	analysis := mood.Fallback(sub.Mood)
	return &pipeline.Session{
		MoodText:          sub.Mood,
		AdditionalContext: sub.AdditionalContext,
		TimeContext:       sub.TimeContext,
		Interests:         sub.Interests,
		Analysis:          analysis,
		Recommendations: map[catalog.Category][]qloo.Item{
			catalog.Movie: {{Name: "Paddington 2", Description: "A kind bear.", ImageURL: "https://img.example/p2.jpg"}},
			catalog.Book:  {},
		},
		Summary:     "Take it slow tonight.",
		Notices:     []pipeline.Notice{{Stage: pipeline.StageFetch, Category: catalog.Book, Message: "Couldn't load books right now."}},
		CompletedAt: time.Date(2026, 3, 4, 20, 15, 0, 0, time.UTC),
	}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func newTestServer(t *testing.T, runner Runner, mutate ...func(*ServerConfig)) (*Server, SessionManager) {
	t.Helper()

	templatesFS, err := fs.Sub(assets.TemplatesFS, "templates")
	require.NoError(t, err)
	staticFS, err := fs.Sub(assets.StaticFS, "static")
	require.NoError(t, err)

	sessions := NewSessionStore()
	cfg := ServerConfig{
		TemplatesFS: templatesFS,
		StaticFS:    staticFS,
		Runner:      runner,
		Sessions:    sessions,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv, sessions
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"mood":         {"I'm emotionally drained and need comfort"},
		"time_context": {"Evening"},
		"interests":    {"Movies", "Books"},
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	require.FailNow(t, "session cookie not set")
	return nil
}

func TestHome_NewVisitor(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "How it works")
	assert.Contains(t, body, `value="Movies" checked`)
	assert.Contains(t, body, `value="Books" checked`)
	assert.NotContains(t, body, `value="Music" checked`)
	assert.Contains(t, body, `<option value="Late Night">`)
}

func TestSubmit_ThenHomeShowsResult(t *testing.T) {
	runner := &fakeRunner{}
	srv, _ := newTestServer(t, runner)

	form := validForm()
	form.Set("additional_context", "Long week at work")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postForm("/mood", form))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)

	require.Equal(t, 1, runner.calls())
	assert.Equal(t, []string{"Movies", "Books"}, runner.subs[0].Interests)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Understanding your current state: I&#39;m emotionally drained and need comfort")
	assert.Contains(t, body, "Paddington 2")
	assert.Contains(t, body, "https://img.example/p2.jpg")
	assert.Contains(t, body, "Take it slow tonight.")
	assert.Contains(t, body, "Storytelling")
	assert.Contains(t, body, "No book recommendations found for the AI-selected tags.")
	assert.Contains(t, body, "Couldn&#39;t load books right now.")
	assert.Contains(t, body, "Mar 4, 20:15")
	assert.Contains(t, body, `value="Long week at work"`)
	assert.NotContains(t, body, "How it works")
	assert.NotContains(t, body, "ZgotmplZ")
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(url.Values)
		wantText string
	}{
		{
			name:     "missing mood",
			mutate:   func(v url.Values) { v.Del("mood") },
			wantText: "Mood is required",
		},
		{
			name:     "blank mood",
			mutate:   func(v url.Values) { v.Set("mood", "   \n ") },
			wantText: "Mood is required",
		},
		{
			name:     "unknown interest",
			mutate:   func(v url.Values) { v.Add("interests", "Board Games") },
			wantText: "Interests must be one of",
		},
		{
			name:     "unknown time of day",
			mutate:   func(v url.Values) { v.Set("time_context", "Brunch") },
			wantText: "Time of day must be one of",
		},
		{
			name:     "mood too long",
			mutate:   func(v url.Values) { v.Set("mood", strings.Repeat("a", 2001)) },
			wantText: "Mood must be at most 2000 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv, _ := newTestServer(t, runner)

			form := validForm()
			tt.mutate(form)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, postForm("/mood", form))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.Contains(t, rec.Body.String(), "flash-error")
			assert.Zero(t, runner.calls())
		})
	}
}

func TestSubmit_KeepsFormValuesOnError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})

	form := url.Values{"mood": {""}, "additional_context": {"exam tomorrow"}, "interests": {"Music"}}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postForm("/mood", form))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="exam tomorrow"`)
	assert.Contains(t, body, `value="Music" checked`)
	assert.NotContains(t, body, `value="Movies" checked`)
}

func TestSubmit_CanceledKeepsPreviousResult(t *testing.T) {
	runner := &fakeRunner{}
	srv, sessions := newTestServer(t, runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postForm("/mood", validForm()))
	cookie := sessionCookie(t, rec)

	runner.err = context.Canceled
	form := validForm()
	form.Set("mood", "a different mood")
	req := postForm("/mood", form)
	req.AddCookie(cookie)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	session := sessions.Get(context.Background(), cookie.Value)
	require.NotNil(t, session)
	require.NotNil(t, session.Result)
	assert.Equal(t, "I'm emotionally drained and need comfort", session.Result.MoodText)
}

func TestSubmit_OneInFlightPerSession(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	srv, sessions := newTestServer(t, runner)

	session, err := sessions.Create(context.Background())
	require.NoError(t, err)
	cookie := &http.Cookie{Name: sessionCookieName, Value: session.ID}

	slow := validForm()
	slow.Set("mood", blockingMood)

	firstDone := make(chan int, 1)
	go func() {
		req := postForm("/mood", slow)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		firstDone <- rec.Code
	}()
	<-runner.started

	req := postForm("/mood", validForm())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "still being analyzed")

	// Another session is not blocked.
	other := httptest.NewRecorder()
	srv.Handler().ServeHTTP(other, postForm("/mood", validForm()))
	assert.Equal(t, http.StatusSeeOther, other.Code)

	close(runner.release)
	assert.Equal(t, http.StatusSeeOther, <-firstDone)

	// The guard is released once the submission finishes.
	req = postForm("/mood", validForm())
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestSubmitAPI(t *testing.T) {
	runner := &fakeRunner{}
	srv, sessions := newTestServer(t, runner)

	body := `{"mood":"restless","time_context":"Late Night","interests":["Music"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got pipeline.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "restless", got.MoodText)
	assert.Equal(t, "Late Night", got.TimeContext)
	assert.Equal(t, "urn:tag:genre:media:drama", got.Analysis.SelectedTags[catalog.Movie])
	assert.Len(t, got.Recommendations[catalog.Movie], 1)

	cookie := sessionCookie(t, rec)
	session := sessions.Get(context.Background(), cookie.Value)
	require.NotNil(t, session)
	require.NotNil(t, session.Result)
	assert.Equal(t, "restless", session.Result.MoodText)
}

func TestSubmitAPI_DefaultInterests(t *testing.T) {
	runner := &fakeRunner{}
	srv, _ := newTestServer(t, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(`{"mood":"ok"}`))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, runner.calls())
	assert.Equal(t, catalog.DefaultInterests, runner.subs[0].Interests)
}

func TestSubmitAPI_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"invalid json", `{"mood":`, http.StatusBadRequest, ""},
		{"missing mood", `{"interests":["Movies"]}`, http.StatusBadRequest, "mood"},
		{"bad interest", `{"mood":"x","interests":["Movies","Games"]}`, http.StatusBadRequest, "interests[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv, _ := newTestServer(t, runner)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got apiError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Error)
			if tt.wantField != "" {
				require.NotEmpty(t, got.Fields)
				assert.Equal(t, tt.wantField, got.Fields[0].Field)
			}
			assert.Zero(t, runner.calls())
		})
	}
}

func TestReset(t *testing.T) {
	srv, sessions := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postForm("/mood", validForm()))
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	session := sessions.Get(context.Background(), cookie.Value)
	require.NotNil(t, session)
	assert.Nil(t, session.Result)
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthFunc
		wantStatus int
		wantBody   string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"database down", func(context.Context) error { return errors.New("refused") }, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeRunner{}, func(c *ServerConfig) { c.Health = tt.health })

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestMetricsAndStatic(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmit_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, func(c *ServerConfig) { c.RateLimit = 1 })

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mood", strings.NewReader(`{"mood":"ok"}`)))
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
