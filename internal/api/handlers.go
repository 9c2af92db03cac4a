// Package api serves the tools and sessions over HTTP.
package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserbase-mcp/internal/session"
	"github.com/shehryarbajwa/browserbase-mcp/internal/tools"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	tools    *tools.Server
	registry *session.Registry
}

// NewHandler creates a new HTTP handler
func NewHandler(toolServer *tools.Server, registry *session.Registry) *Handler {
	return &Handler{
		tools:    toolServer,
		registry: registry,
	}
}

// ListTools handles GET /v1/tools
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.tools.Definitions()})
}

// CallTool handles POST /v1/tools/{name}. Tool failures are reported in the
// result body with a 200, the same way the stdio transport reports them.
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result := h.tools.Call(r.Context(), name, json.RawMessage(body))
	writeJSON(w, http.StatusOK, result)
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.registry.Create(r.Context(), session.CreateOptions{
		ID:               req.SessionID,
		Description:      req.Description,
		Region:           req.Region,
		Timeout:          time.Duration(req.Timeout) * time.Second,
		RecordingEnabled: req.EnableRecording,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec.Info(h.registry.Now()))
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	rec, err := h.registry.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec.Info(h.registry.Now()))
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if _, err := h.registry.Get(id); err != nil {
		writeSessionError(w, err)
		return
	}

	if err := h.registry.Destroy(r.Context(), id); err != nil {
		log.Printf("⚠️  Session %s closed with cleanup errors: %v", id, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionID reads the {id} route variable. Routes match on the encoded path
// so ids containing reserved characters survive the round trip.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id")
		return "", false
	}
	return id, true
}

// statusFor maps a session error kind to an HTTP status
func statusFor(kind session.Kind) int {
	switch kind {
	case session.KindSessionNotFound, session.KindTabNotFound:
		return http.StatusNotFound
	case session.KindDuplicateSession, session.KindDuplicateTab, session.KindNoTabsAvailable:
		return http.StatusConflict
	case session.KindInvalidArgument:
		return http.StatusBadRequest
	case session.KindProvisioning, session.KindDelegatedOperation:
		return http.StatusBadGateway
	case session.KindConnectionLost:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	kind := session.KindOf(err)
	writeJSON(w, statusFor(kind), models.ToolError{Kind: string(kind), Message: err.Error()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
