package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smartgov/exgratia/internal/appid"
	"github.com/smartgov/exgratia/internal/models"
)

const healthCheckTimeout = 5 * time.Second

// healthHandler reports "healthy", or "degraded" with 503 when a dependency fails its ping.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.opts.Pingers))
	healthy := true
	for name, p := range s.opts.Pingers {
		if err := p.PingContext(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	code := http.StatusOK
	if !healthy {
		body["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, body)
}

// StatusResult is the body of a status lookup response.
type StatusResult struct {
	ApplicationID string                    `json:"application_id"`
	Found         bool                      `json:"found"`
	Record        *models.ApplicationRecord `json:"record,omitempty"`
}

// statusHandler handles GET /api/status/{id}.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, ok := appid.First(raw)
	if !ok || !strings.EqualFold(id, strings.TrimSpace(raw)) {
		slog.Debug("statusHandler invalid application ID", "id", raw)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid application ID"))
		return
	}

	res, err := s.lookup.Lookup(r.Context(), id)
	if err != nil {
		slog.Error("statusHandler lookup failed", "error", err, "application_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Status lookup failed"))
		return
	}

	result := StatusResult{ApplicationID: id, Found: res.Found}
	if !res.Found {
		writeJSONResponse(w, http.StatusNotFound, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage("Application not found").
			WithResult(result).
			Build())
		return
	}
	result.Record = &res.Record
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// SubmissionRequest is the body of POST /api/submissions.
type SubmissionRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Details string `json:"details,omitempty"`
}

// createSubmissionHandler handles POST /api/submissions.
func (s *Server) createSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("createSubmissionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	stored, err := s.opts.Submissions.Append(models.Submission{
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
		Details: req.Details,
	})
	if err != nil {
		if errors.Is(err, models.ErrMissingSubmissionName) || errors.Is(err, models.ErrMissingSubmissionPhone) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("createSubmissionHandler append failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record submission"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Recorded(stored))
}

// listSubmissionsHandler handles GET /api/submissions.
func (s *Server) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.opts.Submissions.List()
	if err != nil {
		slog.Error("listSubmissionsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read submissions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(list))
}

// ChatRequest is the body of POST /api/chat. Exactly one of Text, Callback
// and Command must be set.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text,omitempty"`
	Callback       string `json:"callback,omitempty"`
	Command        string `json:"command,omitempty"`
}

func (c ChatRequest) event() (models.Event, error) {
	if strings.TrimSpace(c.ConversationID) == "" {
		return models.Event{}, errors.New("conversation_id is required")
	}
	set := 0
	for _, v := range []string{c.Text, c.Callback, c.Command} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return models.Event{}, errors.New("exactly one of text, callback or command is required")
	}
	switch {
	case c.Callback != "":
		return models.CallbackEvent(c.ConversationID, models.ActionID(c.Callback)), nil
	case c.Command != "":
		return models.CommandEvent(c.ConversationID, strings.TrimPrefix(c.Command, "/")), nil
	default:
		return models.TextEvent(c.ConversationID, c.Text), nil
	}
}

// chatHandler handles POST /api/chat, running one event through the dialog.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("chatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	ev, err := req.event()
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	view := s.opts.Chat.Handle(r.Context(), ev)
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}
