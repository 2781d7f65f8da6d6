package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/ayusman/dactyl/internal/detector"
	"github.com/ayusman/dactyl/internal/features"
	"github.com/ayusman/dactyl/internal/store"
)

// SamplesHandler handles HTTP requests for training sample resources.
type SamplesHandler struct {
	store *store.Store
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/samples, /api/samples/counts, /api/samples/export,
// /api/samples/{id}
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/samples")

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 1 && parts[0] == "export":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.export(w, r)
	case len(parts) == 1 && parts[0] == "counts":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.counts(w, r)
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.delete(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request types

// createSampleRequest carries either a ready feature vector or raw landmarks,
// which are normalized the same way live frames are.
type createSampleRequest struct {
	ClassIndex *int               `json:"class_index"`
	Features   []float64          `json:"features"`
	Landmarks  []detector.Point3D `json:"landmarks"`
}

// Response types

type sampleResponse struct {
	ID         int64     `json:"id"`
	ClassIndex int       `json:"class_index"`
	Features   []float64 `json:"features"`
	CreatedAt  string    `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type classCount struct {
	ClassIndex int `json:"class_index"`
	Samples    int `json:"samples"`
}

type countsResponse struct {
	Classes []classCount `json:"classes"`
	Total   int          `json:"total"`
}

func toSampleResponse(s *store.Sample) sampleResponse {
	return sampleResponse{
		ID:         s.ID,
		ClassIndex: s.ClassIndex,
		Features:   s.Features,
		CreatedAt:  formatTime(s.CreatedAt),
	}
}

// list handles GET /api/samples. ?class=N restricts the result to one class.
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	class, err := queryInt(r, "class", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "class must be an integer")
		return
	}

	samples, err := h.store.Samples().List(class)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, toSampleResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/samples
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ClassIndex == nil {
		writeError(w, http.StatusBadRequest, "class_index is required")
		return
	}
	if *req.ClassIndex < 0 {
		writeError(w, http.StatusBadRequest, "class_index must not be negative")
		return
	}

	var vec []float64
	switch {
	case req.Features != nil && req.Landmarks != nil:
		writeError(w, http.StatusBadRequest, "Send either features or landmarks, not both")
		return
	case req.Features != nil:
		if len(req.Features) != features.Length {
			writeError(w, http.StatusBadRequest, "features must hold "+strconv.Itoa(features.Length)+" values")
			return
		}
		vec = req.Features
	case req.Landmarks != nil:
		vec = features.Normalize(req.Landmarks)
		if vec == nil {
			writeError(w, http.StatusBadRequest, "landmarks must hold "+strconv.Itoa(detector.NumLandmarks)+" points")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "features or landmarks is required")
		return
	}

	sample := &store.Sample{ClassIndex: *req.ClassIndex, Features: vec}
	if err := h.store.Samples().Create(sample); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sample")
		return
	}

	writeJSON(w, http.StatusCreated, toSampleResponse(sample))
}

// counts handles GET /api/samples/counts
func (h *SamplesHandler) counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Samples().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count samples")
		return
	}

	response := countsResponse{Classes: make([]classCount, 0, len(counts))}
	for idx, n := range counts {
		response.Classes = append(response.Classes, classCount{ClassIndex: idx, Samples: n})
		response.Total += n
	}
	sort.Slice(response.Classes, func(i, j int) bool {
		return response.Classes[i].ClassIndex < response.Classes[j].ClassIndex
	})

	writeJSON(w, http.StatusOK, response)
}

// export handles GET /api/samples/export. Each row is the class index
// followed by the 42 feature values, the layout the keypoint classifier is
// trained from.
func (h *SamplesHandler) export(w http.ResponseWriter, r *http.Request) {
	class, err := queryInt(r, "class", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "class must be an integer")
		return
	}

	samples, err := h.store.Samples().List(class)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="keypoint.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	row := make([]string, 0, features.Length+1)
	for _, s := range samples {
		row = append(row[:0], strconv.Itoa(s.ClassIndex))
		for _, v := range s.Features {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return
		}
	}
	cw.Flush()
}

// delete handles DELETE /api/samples/{id}
func (h *SamplesHandler) delete(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sample id")
		return
	}

	if err := h.store.Samples().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sample")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
