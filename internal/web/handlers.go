package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/pipeline"
)

const (
	pageTitle    = "MoodFlow"
	maxBodyBytes = 64 << 10

	busyMessage = "Your previous mood is still being analyzed. Please wait for it to finish."
)

// Runner executes one mood submission.
type Runner interface {
	Run(ctx context.Context, sub pipeline.Submission) (*pipeline.Session, error)
}

// HealthFunc reports whether a dependency is healthy.
type HealthFunc func(ctx context.Context) error

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	runner    Runner
	sessions  SessionManager
	templates *Templates
	inflight  *inflight
	health    HealthFunc
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(runner Runner, sessions SessionManager, templates *Templates, health HealthFunc) *Handlers {
	return &Handlers{
		runner:    runner,
		sessions:  sessions,
		templates: templates,
		inflight:  newInflight(),
		health:    health,
	}
}

// Home renders the mood form and the last result (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.homeData(r)
	if session := h.sessions.GetFromRequest(r); session != nil && session.Result != nil {
		data.Result = newResultData(session.Result)
		data.Form = newFormData(pipeline.Submission{
			Mood:              session.Result.MoodText,
			AdditionalContext: session.Result.AdditionalContext,
			TimeContext:       session.Result.TimeContext,
			Interests:         session.Result.Interests,
		})
	}

	h.render(w, r, http.StatusOK, data)
}

// Submit runs a mood submission from the HTML form (POST /mood).
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, pipeline.Submission{}, nil, "Could not read the submitted form.")
		return
	}

	sub := pipeline.Submission{
		Mood:              strings.TrimSpace(r.PostFormValue("mood")),
		AdditionalContext: strings.TrimSpace(r.PostFormValue("additional_context")),
		TimeContext:       r.PostFormValue("time_context"),
		Interests:         r.PostForm["interests"],
	}

	if err := validateStruct(&sub); err != nil {
		var verr *ValidationError
		errors.As(err, &verr)
		h.renderError(w, r, http.StatusBadRequest, sub, verr, "Please fix the highlighted fields.")
		return
	}

	session, err := h.ensureSession(w, r)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Creating session failed")
		h.renderError(w, r, http.StatusInternalServerError, sub, nil, "Something went wrong. Please try again.")
		return
	}

	if !h.inflight.acquire(session.ID) {
		h.renderError(w, r, http.StatusConflict, sub, nil, busyMessage)
		return
	}
	defer h.inflight.release(session.ID)

	result, err := h.runner.Run(r.Context(), sub)
	switch {
	case errors.Is(err, pipeline.ErrEmptyMood):
		h.renderError(w, r, http.StatusBadRequest, sub, nil, "Please describe how you are feeling.")
		return
	case err != nil:
		// The client went away; keep the previous result.
		logging.Ctx(r.Context()).Info().Err(err).Msg("Submission abandoned")
		return
	}

	if err := h.sessions.SaveResult(r.Context(), session.ID, result); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Saving session result failed")
		h.renderError(w, r, http.StatusInternalServerError, sub, nil, "Your results could not be saved. Please try again.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// apiError is the JSON error body of the API.
type apiError struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// SubmitAPI runs a mood submission from a JSON body (POST /api/mood).
func (h *Handlers) SubmitAPI(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var sub pipeline.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	sub.Mood = strings.TrimSpace(sub.Mood)
	sub.AdditionalContext = strings.TrimSpace(sub.AdditionalContext)
	if sub.Interests == nil {
		sub.Interests = append([]string(nil), catalog.DefaultInterests...)
	}

	if err := validateStruct(&sub); err != nil {
		var verr *ValidationError
		errors.As(err, &verr)
		writeJSON(w, http.StatusBadRequest, apiError{Error: "validation failed", Fields: verr.Fields})
		return
	}

	session, err := h.ensureSession(w, r)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Creating session failed")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "session unavailable"})
		return
	}

	if !h.inflight.acquire(session.ID) {
		writeJSON(w, http.StatusConflict, apiError{Error: busyMessage})
		return
	}
	defer h.inflight.release(session.ID)

	result, err := h.runner.Run(r.Context(), sub)
	switch {
	case errors.Is(err, pipeline.ErrEmptyMood):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	case err != nil:
		logging.Ctx(r.Context()).Info().Err(err).Msg("Submission abandoned")
		return
	}

	if err := h.sessions.SaveResult(r.Context(), session.ID, result); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Saving session result failed")
	}

	writeJSON(w, http.StatusOK, result)
}

// Reset clears the session's last result (POST /reset).
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		if err := h.sessions.SaveResult(r.Context(), session.ID, nil); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Clearing session result failed")
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Healthz reports liveness and, when configured, dependency health (GET /healthz).
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ensureSession returns the request's session, creating one when absent.
func (h *Handlers) ensureSession(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		return session, nil
	}

	session, err := h.sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}
	h.sessions.SetCookie(w, session)
	return session, nil
}

func (h *Handlers) homeData(r *http.Request) HomePageData {
	return HomePageData{
		PageData: PageData{
			Title:       pageTitle,
			CurrentPath: r.URL.Path,
		},
		Form:           defaultFormData(),
		TimeContexts:   catalog.TimeContexts(),
		InterestLabels: catalog.InterestLabels(),
	}
}

// renderError re-renders the form with the submitted values and a flash.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, sub pipeline.Submission, verr *ValidationError, msg string) {
	data := h.homeData(r)
	data.Form = newFormData(sub)
	data.Flash = &FlashMessage{Type: "error", Message: msg}
	if status == http.StatusConflict {
		data.Flash.Type = "warning"
	}
	if verr != nil {
		data.Errors = verr.Fields
	}
	if session := h.sessions.GetFromRequest(r); session != nil {
		data.Result = newResultData(session.Result)
	}

	h.render(w, r, status, data)
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, data HomePageData) {
	var buf strings.Builder
	if err := h.templates.Render(&buf, "home", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Rendering template failed")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
