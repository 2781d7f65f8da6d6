package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/dactyl/internal/app"
	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/confirm"
	"github.com/ayusman/dactyl/internal/plugin"
)

type fakeController struct {
	running  bool
	startErr error
	session  *app.Session
	frame    app.Frame
	hasFrame bool
	starts   int
	stops    int
}

func (f *fakeController) Start() error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	if f.session == nil {
		f.session = app.NewSession("sess-1", nil, nil, confirm.DefaultConfig(), nil)
	}
	return nil
}

func (f *fakeController) Stop() {
	f.stops++
	f.running = false
	f.session = nil
}

func (f *fakeController) Running() bool                { return f.running }
func (f *fakeController) Session() *app.Session        { return f.session }
func (f *fakeController) LastFrame() (app.Frame, bool) { return f.frame, f.hasFrame }

func TestSessionHandler_StartStop(t *testing.T) {
	ctrl := &fakeController{frame: app.Frame{Seq: 7, Text: "А: hold 3s"}, hasFrame: true}
	handler := NewSessionHandler(ctrl)

	var state sessionStateResponse
	decode(t, do(t, handler, http.MethodGet, "/api/session", nil), &state)
	if state.Running || state.SessionID != "" || state.Frame != nil {
		t.Errorf("expected idle state, got %+v", state)
	}

	rec := do(t, handler, http.MethodPost, "/api/session/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &state)
	if !state.Running || state.SessionID != "sess-1" || state.Frame == nil || state.Frame.Seq != 7 {
		t.Errorf("unexpected running state %+v", state)
	}

	decode(t, do(t, handler, http.MethodPost, "/api/session/stop", nil), &state)
	if state.Running || ctrl.stops != 1 {
		t.Errorf("expected stopped state, got %+v", state)
	}
}

func TestSessionHandler_StartFails(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("camera busy")}
	handler := NewSessionHandler(ctrl)

	rec := do(t, handler, http.MethodPost, "/api/session/start", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Failed to start capture: camera busy" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestSessionHandler_Routing(t *testing.T) {
	handler := NewSessionHandler(&fakeController{})

	if rec := do(t, handler, http.MethodGet, "/api/session/start", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start: got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/session", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST state: got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/session/pause", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown command: got %d", rec.Code)
	}
}

type fakeModel struct {
	status    classifier.Status
	reloadErr error
	reloads   int
}

func (f *fakeModel) Status() classifier.Status { return f.status }

func (f *fakeModel) Reload() error {
	f.reloads++
	if f.reloadErr != nil {
		f.status = classifier.Status{Path: f.status.Path, Strategies: []string{}, Error: f.reloadErr.Error()}
		return f.reloadErr
	}
	f.status = classifier.Status{Loaded: true, Path: f.status.Path, Strategies: []string{"predict", "run"}}
	return nil
}

func TestModelHandler(t *testing.T) {
	model := &fakeModel{status: classifier.Status{Path: "model.tflite", Strategies: []string{}}}
	handler := NewModelHandler(model)

	var status classifier.Status
	decode(t, do(t, handler, http.MethodGet, "/api/model", nil), &status)
	if status.Loaded {
		t.Error("expected unloaded model")
	}

	rec := do(t, handler, http.MethodPost, "/api/model/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &status)
	want := classifier.Status{Loaded: true, Path: "model.tflite", Strategies: []string{"predict", "run"}}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	model.reloadErr = errors.New("bad asset")
	rec = do(t, handler, http.MethodPost, "/api/model/reload", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
	decode(t, rec, &status)
	if status.Loaded || status.Error != "bad asset" {
		t.Errorf("unexpected status after failed reload %+v", status)
	}

	if rec := do(t, handler, http.MethodGet, "/api/model/reload", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reload: got %d", rec.Code)
	}
}

type fakeRegistry struct {
	plugins   []*plugin.Plugin
	discovers int
}

func (f *fakeRegistry) List() []*plugin.Plugin { return f.plugins }

func (f *fakeRegistry) Discover() error {
	f.discovers++
	return nil
}

func TestPluginsHandler(t *testing.T) {
	reg := &fakeRegistry{plugins: []*plugin.Plugin{
		{Manifest: plugin.Manifest{Name: "keyboard", Version: "1.0.0", Actions: []string{"type"}}},
		{Manifest: plugin.Manifest{Name: "open", Version: "0.1.0"}},
	}}
	handler := NewPluginsHandler(reg)

	var resp listPluginsResponse
	decode(t, do(t, handler, http.MethodGet, "/api/plugins", nil), &resp)
	want := listPluginsResponse{Plugins: []pluginResponse{
		{Name: "keyboard", Version: "1.0.0", Actions: []string{"type"}},
		{Name: "open", Version: "0.1.0", Actions: []string{}},
	}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, handler, http.MethodPost, "/api/plugins/discover", nil); rec.Code != http.StatusOK || reg.discovers != 1 {
		t.Errorf("discover: status %d, calls %d", rec.Code, reg.discovers)
	}
	if rec := do(t, handler, http.MethodDelete, "/api/plugins", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: got %d", rec.Code)
	}
}
