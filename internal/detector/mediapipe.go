package detector

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/dactyl/internal/sidecar"
)

// ScriptName is the MediaPipe helper looked up by sidecar.FindScript.
const ScriptName = "mediapipe_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe helper process.
// Frames are sent JPEG-encoded; the helper replies with one JSON line per frame.
type MediaPipeDetector struct {
	config Config
	proc   *sidecar.Process
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := sidecar.FindScript(ScriptName)
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", ScriptName)
	}

	proc := sidecar.New(sidecar.Config{
		Script: scriptPath,
		Args: []string{
			"--max-hands", strconv.Itoa(config.MaxHands),
			"--model-complexity", strconv.Itoa(config.ModelComplexity),
			"--min-detection-confidence", strconv.FormatFloat(config.MinConfidence, 'f', -1, 64),
			"--min-tracking-confidence", strconv.FormatFloat(config.MinTrackingConf, 'f', -1, 64),
		},
	})

	return &MediaPipeDetector{config: config, proc: proc}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	line, err := d.proc.Call(buf.GetBytes())
	if err != nil {
		return nil, err
	}

	return parseResponse(line)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	return d.proc.Close()
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

type jsonResponse struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

// parseResponse decodes one reply line. Hands with a short landmark list are dropped.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		lm, err := FromPoints(h.Points)
		if err != nil {
			continue
		}
		lm.Handedness = h.Handedness
		lm.Score = h.Score
		result = append(result, lm)
	}

	return result, nil
}
