package api

import (
	"encoding/csv"
	"math"
	"net/http"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/dactyl/internal/detector"
	"github.com/ayusman/dactyl/internal/features"
	"github.com/ayusman/dactyl/internal/store"
)

func featureRow(fill float64) []float64 {
	v := make([]float64, features.Length)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestSamplesHandler_CreateFeatures(t *testing.T) {
	s := newTestStore(t)
	handler := NewSamplesHandler(s)

	rec := do(t, handler, http.MethodPost, "/api/samples", map[string]any{
		"class_index": 3,
		"features":    featureRow(0.5),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created sampleResponse
	decode(t, rec, &created)
	if created.ID == 0 || created.ClassIndex != 3 {
		t.Errorf("unexpected sample %+v", created)
	}

	stored, err := s.Samples().List(3)
	if err != nil || len(stored) != 1 {
		t.Fatalf("List() = %v, %v", stored, err)
	}
	if diff := cmp.Diff(featureRow(0.5), stored[0].Features); diff != "" {
		t.Errorf("stored features mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesHandler_CreateLandmarks(t *testing.T) {
	s := newTestStore(t)
	handler := NewSamplesHandler(s)

	hand := detector.VictoryLandmarks()
	rec := do(t, handler, http.MethodPost, "/api/samples", map[string]any{
		"class_index": 1,
		"landmarks":   hand.Slice(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created sampleResponse
	decode(t, rec, &created)

	want := features.FromHand(&hand)
	if len(created.Features) != features.Length {
		t.Fatalf("expected %d features, got %d", features.Length, len(created.Features))
	}
	for i := range want {
		if math.Abs(created.Features[i]-want[i]) > 1e-9 {
			t.Fatalf("feature %d = %v, want %v", i, created.Features[i], want[i])
		}
	}
}

func TestSamplesHandler_Create_Validation(t *testing.T) {
	handler := NewSamplesHandler(newTestStore(t))
	hand := detector.FistLandmarks()

	tests := []struct {
		name string
		body any
		want string
	}{
		{"invalid json", "nope", "Invalid JSON"},
		{"missing class", map[string]any{"features": featureRow(0)}, "class_index is required"},
		{"negative class", map[string]any{"class_index": -1, "features": featureRow(0)}, "class_index must not be negative"},
		{"no data", map[string]any{"class_index": 0}, "features or landmarks is required"},
		{"short features", map[string]any{"class_index": 0, "features": []float64{1, 2}}, "features must hold 42 values"},
		{"short landmarks", map[string]any{"class_index": 0, "landmarks": hand.Slice()[:20]}, "landmarks must hold 21 points"},
		{"both", map[string]any{"class_index": 0, "features": featureRow(0), "landmarks": hand.Slice()}, "Send either features or landmarks, not both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPost, "/api/samples", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.want {
				t.Errorf("error = %q, want %q", msg, tt.want)
			}
		})
	}
}

func seedSamples(t *testing.T, s *store.Store) {
	t.Helper()
	for _, sm := range []*store.Sample{
		{ClassIndex: 0, Features: featureRow(0.25)},
		{ClassIndex: 2, Features: featureRow(-1)},
		{ClassIndex: 0, Features: featureRow(1)},
	} {
		if err := s.Samples().Create(sm); err != nil {
			t.Fatalf("failed to create sample: %v", err)
		}
	}
}

func TestSamplesHandler_ListAndCounts(t *testing.T) {
	s := newTestStore(t)
	seedSamples(t, s)
	handler := NewSamplesHandler(s)

	var all listSamplesResponse
	decode(t, do(t, handler, http.MethodGet, "/api/samples", nil), &all)
	if len(all.Samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(all.Samples))
	}

	var zero listSamplesResponse
	decode(t, do(t, handler, http.MethodGet, "/api/samples?class=0", nil), &zero)
	if len(zero.Samples) != 2 {
		t.Errorf("expected 2 samples for class 0, got %d", len(zero.Samples))
	}

	if rec := do(t, handler, http.MethodGet, "/api/samples?class=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	var counts countsResponse
	decode(t, do(t, handler, http.MethodGet, "/api/samples/counts", nil), &counts)
	want := countsResponse{
		Classes: []classCount{{ClassIndex: 0, Samples: 2}, {ClassIndex: 2, Samples: 1}},
		Total:   3,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesHandler_Export(t *testing.T) {
	s := newTestStore(t)
	seedSamples(t, s)
	handler := NewSamplesHandler(s)

	rec := do(t, handler, http.MethodGet, "/api/samples/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, wantClass := range []string{"0", "2", "0"} {
		if len(rows[i]) != features.Length+1 {
			t.Fatalf("row %d has %d columns", i, len(rows[i]))
		}
		if rows[i][0] != wantClass {
			t.Errorf("row %d class = %s, want %s", i, rows[i][0], wantClass)
		}
	}
	if v, _ := strconv.ParseFloat(rows[0][1], 64); v != 0.25 {
		t.Errorf("row 0 first value = %s", rows[0][1])
	}
	if rows[1][42] != "-1" {
		t.Errorf("row 1 last value = %s", rows[1][42])
	}

	rec = do(t, handler, http.MethodGet, "/api/samples/export?class=2", nil)
	rows, _ = csv.NewReader(rec.Body).ReadAll()
	if len(rows) != 1 {
		t.Errorf("expected 1 row for class 2, got %d", len(rows))
	}
}

func TestSamplesHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSamplesHandler(s)

	sm := &store.Sample{ClassIndex: 0, Features: featureRow(0)}
	if err := s.Samples().Create(sm); err != nil {
		t.Fatalf("failed to create sample: %v", err)
	}
	path := "/api/samples/" + strconv.FormatInt(sm.ID, 10)

	if rec := do(t, handler, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec := do(t, handler, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := do(t, handler, http.MethodDelete, "/api/samples/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec := do(t, handler, http.MethodGet, "/api/samples/1", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
