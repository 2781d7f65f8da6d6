// Package detector provides hand landmark detection for the fingerspelling pipeline.
package detector

import (
	"errors"
	"fmt"
)

// Hand landmark indices following the MediaPipe hand model.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrLandmarkCount is returned when a landmark set does not hold exactly NumLandmarks points.
var ErrLandmarkCount = errors.New("landmark set must contain 21 points")

// Point3D is one landmark in image-fraction coordinates.
// Z is the relative depth reported by the detector; the classifier ignores it.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the landmark set of one detected hand in one frame.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FromPoints builds a HandLandmarks from an ordered point slice.
func FromPoints(points []Point3D) (HandLandmarks, error) {
	var h HandLandmarks
	if len(points) != NumLandmarks {
		return h, fmt.Errorf("%w: got %d", ErrLandmarkCount, len(points))
	}
	copy(h.Points[:], points)
	return h, nil
}

// Slice returns the landmark points in anatomical order.
func (h *HandLandmarks) Slice() []Point3D {
	if h == nil {
		return nil
	}
	return h.Points[:]
}

// First returns the first detected hand, or nil when none was detected.
// Only one hand is classified per frame.
func First(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	return &hands[0]
}
