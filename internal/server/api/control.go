package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/dactyl/internal/app"
	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/plugin"
)

// Controller is the Start/Stop surface of the capture loop.
type Controller interface {
	Start() error
	Stop()
	Running() bool
	Session() *app.Session
	LastFrame() (app.Frame, bool)
}

// SessionHandler reports and toggles the running capture session.
type SessionHandler struct {
	ctrl Controller
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ctrl Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

type sessionStateResponse struct {
	Running   bool       `json:"running"`
	SessionID string     `json:"session_id,omitempty"`
	StartedAt string     `json:"started_at,omitempty"`
	Spelled   string     `json:"spelled"`
	Frame     *app.Frame `json:"frame,omitempty"`
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: GET /api/session, POST /api/session/start, POST /api/session/stop
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/session")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	case len(parts) == 1 && (parts[0] == "start" || parts[0] == "stop"):
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if parts[0] == "start" {
			if err := h.ctrl.Start(); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Failed to start capture: "+err.Error())
				return
			}
		} else {
			h.ctrl.Stop()
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, http.StatusOK, h.state())
}

func (h *SessionHandler) state() sessionStateResponse {
	resp := sessionStateResponse{Running: h.ctrl.Running()}
	if sess := h.ctrl.Session(); sess != nil {
		resp.SessionID = sess.ID
		resp.StartedAt = formatTime(sess.StartedAt)
		resp.Spelled = sess.Spelled()
	}
	if f, ok := h.ctrl.LastFrame(); ok && resp.Running {
		resp.Frame = &f
	}
	return resp
}

// ModelController exposes the classifier's load state.
type ModelController interface {
	Status() classifier.Status
	Reload() error
}

// ModelHandler reports the model state and reloads it on request.
type ModelHandler struct {
	model ModelController
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(m ModelController) *ModelHandler {
	return &ModelHandler{model: m}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: GET /api/model, POST /api/model/reload
func (h *ModelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/model")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.model.Status())
	case len(parts) == 1 && parts[0] == "reload":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// A failed reload is reported in the status body; the service keeps running.
		status := http.StatusOK
		if err := h.model.Reload(); err != nil {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, h.model.Status())
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// PluginRegistry lists discovered plugins and rescans the plugin directory.
type PluginRegistry interface {
	List() []*plugin.Plugin
	Discover() error
}

// PluginsHandler lists the plugins letter actions can bind to.
type PluginsHandler struct {
	plugins PluginRegistry
}

// NewPluginsHandler creates a new PluginsHandler.
func NewPluginsHandler(p PluginRegistry) *PluginsHandler {
	return &PluginsHandler{plugins: p}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`

	ConfigSchema json.RawMessage `json:"config_schema,omitempty"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: GET /api/plugins, POST /api/plugins/discover
func (h *PluginsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/plugins")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	case len(parts) == 1 && parts[0] == "discover":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.plugins.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	list := h.plugins.List()
	response := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(list))}
	for _, p := range list {
		actions := p.Manifest.Actions
		if actions == nil {
			actions = []string{}
		}
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,

			ConfigSchema: p.Manifest.ConfigSchema,
		})
	}
	writeJSON(w, http.StatusOK, response)
}
