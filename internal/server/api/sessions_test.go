package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/dactyl/internal/store"
)

func seedSession(t *testing.T, s *store.Store, id string, started time.Time, letters ...string) {
	t.Helper()
	if err := s.Sessions().Create(&store.Session{ID: id, RequiredFrames: 150, FrameRate: 30, StartedAt: started}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	for i, l := range letters {
		c := &store.Capture{SessionID: id, Letter: l, ClassIndex: i, Score: 0.9, CapturedAt: started.Add(time.Duration(i) * time.Second)}
		if err := s.Captures().Create(c); err != nil {
			t.Fatalf("failed to create capture: %v", err)
		}
	}
}

func TestSessionsHandler_List(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedSession(t, s, "old", now.Add(-time.Hour), "Т", "А", "К")
	seedSession(t, s, "new", now)
	if err := s.Sessions().End("old", now.Add(-30*time.Minute)); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	handler := NewSessionsHandler(s)
	rec := do(t, handler, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp listSessionsResponse
	decode(t, rec, &resp)
	if len(resp.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(resp.Sessions))
	}
	if resp.Sessions[0].ID != "new" || resp.Sessions[0].EndedAt != nil {
		t.Errorf("expected running session first, got %+v", resp.Sessions[0])
	}
	if resp.Sessions[1].Text != "ТАК" || resp.Sessions[1].EndedAt == nil {
		t.Errorf("unexpected finished session %+v", resp.Sessions[1])
	}
}

func TestSessionsHandler_GetAndCaptures(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "s1", time.Now(), "Д", "А")
	handler := NewSessionsHandler(s)

	var sess sessionResponse
	decode(t, do(t, handler, http.MethodGet, "/api/sessions/s1", nil), &sess)
	if sess.ID != "s1" || sess.Text != "ДА" || sess.RequiredFrames != 150 {
		t.Errorf("unexpected session %+v", sess)
	}

	rec := do(t, handler, http.MethodGet, "/api/sessions/s1/captures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var caps listCapturesResponse
	decode(t, rec, &caps)
	if caps.Text != "ДА" || len(caps.Captures) != 2 || caps.Captures[1].Letter != "А" {
		t.Errorf("unexpected captures %+v", caps)
	}
}

func TestSessionsHandler_Errors(t *testing.T) {
	handler := NewSessionsHandler(newTestStore(t))

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{http.MethodGet, "/api/sessions/missing/captures", http.StatusNotFound},
		{http.MethodGet, "/api/sessions/s1/other", http.StatusNotFound},
		{http.MethodPost, "/api/sessions", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/sessions/s1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		if rec := do(t, handler, tt.method, tt.path, nil); rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}
