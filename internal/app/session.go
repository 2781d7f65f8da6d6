package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/confirm"
	"github.com/ayusman/dactyl/internal/detector"
	"github.com/ayusman/dactyl/internal/features"
)

// Inferer scores a feature vector. *classifier.Classifier implements it.
type Inferer interface {
	Classify(ctx context.Context, in features.Vector) (classifier.Scores, error)
}

// LabelResolver maps a class index to a display letter. *labels.Resolver implements it.
type LabelResolver interface {
	Resolve(classIndex int) string
}

// Status summarizes what a Frame shows.
type Status string

const (
	// StatusNoHand means no hand was detected in the frame.
	StatusNoHand Status = "no_hand"
	// StatusTracking means a letter is being held but not yet confirmed.
	StatusTracking Status = "tracking"
	// StatusCaptured means the frame confirmed a letter.
	StatusCaptured Status = "captured"
	// StatusError means detection or inference failed for the frame.
	StatusError Status = "error"
)

// Capture is a confirmed letter.
type Capture struct {
	SessionID  string    `json:"session_id"`
	Letter     string    `json:"letter"`
	ClassIndex int       `json:"class_index"`
	Score      float64   `json:"score"`
	At         time.Time `json:"at"`
}

// Frame is the display record for one processed camera frame.
type Frame struct {
	Seq            int64     `json:"seq"`
	SessionID      string    `json:"session_id"`
	Time           time.Time `json:"time"`
	Status         Status    `json:"status"`
	Text           string    `json:"text"`
	HandPresent    bool      `json:"hand_present"`
	ClassIndex     int       `json:"class_index"`
	Score          float64   `json:"score"`
	Label          string    `json:"label,omitempty"`
	Count          int       `json:"count"`
	RequiredFrames int       `json:"required_frames"`
	Remaining      int       `json:"remaining"`
	Spelled        string    `json:"spelled"`
	Capture        *Capture  `json:"capture,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Session is the state of one Start/Stop run. The confirmation counter and
// label table live here and are dropped with the session.
type Session struct {
	ID        string
	StartedAt time.Time

	inferer  Inferer
	resolver LabelResolver
	counter  *confirm.Counter
	logger   *slog.Logger

	mu      sync.Mutex
	seq     int64
	spelled strings.Builder
}

// NewSession creates a session.
func NewSession(id string, inferer Inferer, resolver LabelResolver, cc confirm.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		inferer:   inferer,
		resolver:  resolver,
		counter:   confirm.NewCounter(cc),
		logger:    logger.With("session", id),
	}
}

// Counter exposes the session's confirmation counter.
func (s *Session) Counter() *confirm.Counter {
	return s.counter
}

// Spelled returns the letters captured so far.
func (s *Session) Spelled() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spelled.String()
}

// Process runs one frame's detections through normalization, classification,
// label lookup and the confirmation counter. Only the first hand is used.
// Failures are reported in the returned Frame and leave the counter as it was.
func (s *Session) Process(ctx context.Context, hands []detector.HandLandmarks) Frame {
	f := s.newFrame()

	vec := features.FromHand(detector.First(hands))
	if vec == nil {
		s.counter.NoHand()
		return s.noHand(f)
	}
	f.HandPresent = true

	scores, err := s.inferer.Classify(ctx, vec)
	if err != nil {
		return s.fail(f, err)
	}

	idx, score := scores.Argmax()
	if idx < 0 {
		return s.fail(f, errors.New("model returned no scores"))
	}

	label := s.resolver.Resolve(idx)
	step := s.counter.Observe(label, idx)

	f.ClassIndex = idx
	f.Score = score
	f.Label = label
	f.Count = step.Count
	f.Remaining = step.Remaining
	f.Status = StatusTracking
	f.Text = fmt.Sprintf("%s: hold %ds", label, step.Remaining)

	if step.Confirmed != nil {
		c := &Capture{
			SessionID:  s.ID,
			Letter:     step.Confirmed.Label,
			ClassIndex: step.Confirmed.ClassIndex,
			Score:      score,
			At:         f.Time,
		}
		s.mu.Lock()
		s.spelled.WriteString(c.Letter)
		s.mu.Unlock()

		f.Capture = c
		f.Status = StatusCaptured
		f.Text = "Captured " + c.Letter
		s.logger.Info("letter captured", "letter", c.Letter, "class", c.ClassIndex, "score", score)
	} else {
		s.logger.Debug("frame", "label", label, "class", idx, "score", score, "count", step.Count)
	}

	f.Spelled = s.Spelled()
	return f
}

// Fail records a frame that could not be processed, such as a detector error.
func (s *Session) Fail(err error) Frame {
	return s.fail(s.newFrame(), err)
}

func (s *Session) newFrame() Frame {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	cfg := s.counter.Config()
	return Frame{
		Seq:            seq,
		SessionID:      s.ID,
		Time:           time.Now(),
		ClassIndex:     -1,
		RequiredFrames: cfg.RequiredFrames,
	}
}

func (s *Session) noHand(f Frame) Frame {
	label, count := s.counter.State()
	f.Status = StatusNoHand
	f.Text = "Show your hand"
	f.Label = label
	f.Count = count
	f.Remaining = s.counter.Remaining(count)
	f.Spelled = s.Spelled()
	return f
}

func (s *Session) fail(f Frame, err error) Frame {
	label, count := s.counter.State()
	f.Status = StatusError
	f.Error = err.Error()
	f.Label = label
	f.Count = count
	f.Remaining = s.counter.Remaining(count)
	f.Spelled = s.Spelled()

	switch {
	case errors.Is(err, classifier.ErrModelNotLoaded):
		f.Text = "Model not loaded"
	default:
		var infErr *classifier.InferenceError
		if errors.As(err, &infErr) {
			f.Text = "Recognition failed"
		} else {
			f.Text = "Error"
		}
	}
	s.logger.Debug("frame failed", "error", err)
	return f
}
