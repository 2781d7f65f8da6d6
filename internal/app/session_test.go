package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/confirm"
	"github.com/ayusman/dactyl/internal/detector"
	"github.com/ayusman/dactyl/internal/features"
	"github.com/ayusman/dactyl/internal/labels"
)

// fakeInferer scores by the hand shape: class 0 for a fist, class 1 otherwise.
type fakeInferer struct {
	err   error
	calls int
	last  features.Vector
}

func (f *fakeInferer) Classify(ctx context.Context, in features.Vector) (classifier.Scores, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	if isFist(in) {
		return classifier.Scores{0.9, 0.1}, nil
	}
	return classifier.Scores{0.2, 0.8}, nil
}

// isFist compares against the normalized fist fixture.
func isFist(v features.Vector) bool {
	fist := detector.FistLandmarks()
	want := features.FromHand(&fist)
	for i := range want {
		if want[i] != v[i] {
			return false
		}
	}
	return true
}

func newTestSession(inf Inferer, cc confirm.Config) *Session {
	return NewSession("test", inf, labels.NewStaticResolver([]string{"A", "V"}), cc, nil)
}

func hands(h ...detector.HandLandmarks) []detector.HandLandmarks { return h }

func TestSession_HoldCapturesLetter(t *testing.T) {
	inf := &fakeInferer{}
	s := newTestSession(inf, confirm.DefaultConfig())
	fist := hands(detector.FistLandmarks())

	var captured []Frame
	var last Frame
	for i := 0; i < 151; i++ {
		f := s.Process(context.Background(), fist)
		if f.Capture != nil {
			captured = append(captured, f)
		}
		if i == 145 && f.Remaining != 1 {
			t.Errorf("frame 145 remaining = %d, want 1", f.Remaining)
		}
		last = f
	}

	if len(captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(captured))
	}

	c := captured[0]
	if c.Status != StatusCaptured || c.Capture.Letter != "А" || c.Capture.ClassIndex != 0 {
		t.Errorf("unexpected capture frame: %+v", c)
	}
	if c.Count != 150 || c.Remaining != 0 {
		t.Errorf("capture frame count/remaining = %d/%d, want 150/0", c.Count, c.Remaining)
	}
	if last.Seq != 151 || last.Spelled != "А" {
		t.Errorf("last frame seq=%d spelled=%q", last.Seq, last.Spelled)
	}
	if s.Spelled() != "А" {
		t.Errorf("Spelled() = %q", s.Spelled())
	}

	if len(inf.last) != features.Length {
		t.Errorf("inferer got %d features", len(inf.last))
	}
}

func TestSession_FirstHandOnly(t *testing.T) {
	inf := &fakeInferer{}
	s := newTestSession(inf, confirm.DefaultConfig())

	f := s.Process(context.Background(), hands(detector.VictoryLandmarks(), detector.FistLandmarks()))
	if f.Label != "В" || f.ClassIndex != 1 {
		t.Errorf("expected first hand (В), got %q/%d", f.Label, f.ClassIndex)
	}
	if inf.calls != 1 {
		t.Errorf("expected one inference call, got %d", inf.calls)
	}
}

func TestSession_NoHand(t *testing.T) {
	tests := []struct {
		name      string
		policy    confirm.Policy
		wantCount int
		wantAfter int
	}{
		{"freeze", confirm.PolicyFreeze, 4, 5},
		{"reset", confirm.PolicyReset, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &fakeInferer{}
			s := newTestSession(inf, confirm.Config{RequiredFrames: 150, FrameRate: 30, NoHand: tt.policy})

			for i := 0; i < 5; i++ {
				s.Process(context.Background(), hands(detector.FistLandmarks()))
			}

			f := s.Process(context.Background(), nil)
			if f.Status != StatusNoHand || f.HandPresent {
				t.Errorf("unexpected frame %+v", f)
			}
			if f.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", f.Count, tt.wantCount)
			}
			if inf.calls != 5 {
				t.Errorf("no-hand frame must not run inference, calls = %d", inf.calls)
			}

			f = s.Process(context.Background(), hands(detector.FistLandmarks()))
			if f.Count != tt.wantAfter {
				t.Errorf("count after hand returns = %d, want %d", f.Count, tt.wantAfter)
			}
		})
	}
}

func TestSession_ErrorsKeepState(t *testing.T) {
	inf := &fakeInferer{}
	s := newTestSession(inf, confirm.DefaultConfig())

	for i := 0; i < 3; i++ {
		s.Process(context.Background(), hands(detector.FistLandmarks()))
	}

	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{"not loaded", classifier.ErrModelNotLoaded, "Model not loaded"},
		{"all strategies failed", &classifier.InferenceError{Attempts: []classifier.Attempt{
			{Strategy: "predict", Err: classifier.ErrUnsupported},
			{Strategy: "run", Err: errors.New("boom")},
		}}, "Recognition failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf.err = tt.err
			f := s.Process(context.Background(), hands(detector.FistLandmarks()))

			if f.Status != StatusError || f.Text != tt.wantText || f.Error == "" {
				t.Errorf("unexpected frame %+v", f)
			}
			if f.Label != "А" || f.Count != 2 {
				t.Errorf("counter should be untouched, got %q/%d", f.Label, f.Count)
			}
		})
	}

	inf.err = nil
	if f := s.Process(context.Background(), hands(detector.FistLandmarks())); f.Count != 3 {
		t.Errorf("count after recovery = %d, want 3", f.Count)
	}
}

func TestSession_Fail(t *testing.T) {
	s := newTestSession(&fakeInferer{}, confirm.DefaultConfig())

	f := s.Fail(errors.New("camera unplugged"))
	if f.Status != StatusError || !strings.Contains(f.Error, "unplugged") {
		t.Errorf("unexpected frame %+v", f)
	}
	if f.ClassIndex != -1 || f.RequiredFrames != 150 {
		t.Errorf("unexpected defaults in frame %+v", f)
	}
}

func TestSession_UnknownClassUsesIndex(t *testing.T) {
	s := NewSession("x", &fakeInferer{}, labels.NewStaticResolver([]string{"A"}), confirm.DefaultConfig(), nil)

	f := s.Process(context.Background(), hands(detector.VictoryLandmarks()))
	if f.Label != "1" {
		t.Errorf("Label = %q, want 1", f.Label)
	}
}
