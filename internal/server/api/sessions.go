package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/dactyl/internal/store"
)

// SessionsHandler serves the history of capture sessions and their letters.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/sessions, /api/sessions/{id}, /api/sessions/{id}/captures
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := pathParts(r, "/api/sessions")
	switch {
	case len(parts) == 0:
		h.list(w, r)
	case len(parts) == 1:
		h.get(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "captures":
		h.captures(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID             string  `json:"id"`
	RequiredFrames int     `json:"required_frames"`
	FrameRate      int     `json:"frame_rate"`
	StartedAt      string  `json:"started_at"`
	EndedAt        *string `json:"ended_at,omitempty"`
	Text           string  `json:"text"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type captureResponse struct {
	ID         int64   `json:"id"`
	Letter     string  `json:"letter"`
	ClassIndex int     `json:"class_index"`
	Score      float64 `json:"score"`
	CapturedAt string  `json:"captured_at"`
}

type listCapturesResponse struct {
	SessionID string            `json:"session_id"`
	Text      string            `json:"text"`
	Captures  []captureResponse `json:"captures"`
}

func toSessionResponse(s *store.Session, text string) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		RequiredFrames: s.RequiredFrames,
		FrameRate:      s.FrameRate,
		StartedAt:      formatTime(s.StartedAt),
		Text:           text,
	}
	if s.EndedAt != nil {
		ended := formatTime(*s.EndedAt)
		resp.EndedAt = &ended
	}
	return resp
}

// list handles GET /api/sessions, newest first.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		text, err := h.store.Captures().Text(s.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load captures")
			return
		}
		response.Sessions = append(response.Sessions, toSessionResponse(s, text))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}
func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := h.lookup(w, id)
	if !ok {
		return
	}

	text, err := h.store.Captures().Text(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load captures")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess, text))
}

// captures handles GET /api/sessions/{id}/captures
func (h *SessionsHandler) captures(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	captures, err := h.store.Captures().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load captures")
		return
	}

	response := listCapturesResponse{
		SessionID: id,
		Captures:  make([]captureResponse, 0, len(captures)),
	}
	for _, c := range captures {
		response.Text += c.Letter
		response.Captures = append(response.Captures, captureResponse{
			ID:         c.ID,
			Letter:     c.Letter,
			ClassIndex: c.ClassIndex,
			Score:      c.Score,
			CapturedAt: formatTime(c.CapturedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, id string) (*store.Session, bool) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, false
	}
	return sess, true
}
