// Package features turns hand landmarks into the classifier's input vector.
package features

import (
	"math"

	"github.com/ayusman/dactyl/internal/detector"
)

const (
	// Length is the number of values in a feature vector: 21 landmarks times (x, y).
	Length = detector.NumLandmarks * 2

	// minScale floors the normalization divisor so a collapsed hand yields zeros.
	minScale = 1e-6
)

// Vector is a wrist-relative, scale-normalized landmark vector laid out as
// x0, y0, x1, y1, ... x20, y20.
type Vector []float64

// Normalize converts a landmark set into a feature vector.
//
// Every point is translated so the wrist sits at the origin, the 21 pairs are
// flattened x before y, and all values are divided by the largest absolute
// value. Depth is ignored. A nil or empty set means no hand and returns nil,
// as does any set that is not exactly 21 points long.
func Normalize(points []detector.Point3D) Vector {
	if len(points) != detector.NumLandmarks {
		return nil
	}

	base := points[detector.Wrist]
	v := make(Vector, 0, Length)
	for _, p := range points {
		v = append(v, p.X-base.X, p.Y-base.Y)
	}

	scale := minScale
	for _, x := range v {
		if a := math.Abs(x); a > scale {
			scale = a
		}
	}

	for i := range v {
		v[i] /= scale
	}
	return v
}

// FromHand normalizes the landmarks of one detected hand.
func FromHand(h *detector.HandLandmarks) Vector {
	if h == nil {
		return nil
	}
	return Normalize(h.Slice())
}

// Float32 returns the vector as a float32 buffer, the element type model
// runtimes expect.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// MaxAbs returns the largest absolute component.
func (v Vector) MaxAbs() float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
