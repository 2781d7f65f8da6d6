package classifier

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/dactyl/internal/features"
)

// Predictor is the tensor-in, tensor-out calling convention.
// The returned Mat is owned by the caller.
type Predictor interface {
	Predict(input gocv.Mat) (*gocv.Mat, error)
}

// Runner is the typed-buffer calling convention. Implementations resolve keyed
// replies to a single buffer before returning.
type Runner interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
}

// Strategy is one way of invoking the model. Invoke never panics past its
// caller; the Classifier recovers and records any panic as a failed attempt.
type Strategy interface {
	Name() string
	Invoke(ctx context.Context, in features.Vector) Output
}

// Strategy names.
const (
	StrategyPredict = "predict"
	StrategyRun     = "run"
)

type predictStrategy struct {
	model Predictor
}

func (s predictStrategy) Name() string { return StrategyPredict }

// Invoke feeds a 1xN CV_32F tensor and reads the output tensor as a sequence.
// Both tensors are released before returning.
func (s predictStrategy) Invoke(ctx context.Context, in features.Vector) Output {
	if s.model == nil {
		return Failed(ErrUnsupported)
	}

	blob := gocv.NewMatWithSize(1, len(in), gocv.MatTypeCV32F)
	defer blob.Close()
	for i, x := range in {
		blob.SetFloatAt(0, i, float32(x))
	}

	res, err := s.model.Predict(blob)
	if err != nil {
		return Failed(err)
	}
	if res == nil {
		return Failed(fmt.Errorf("predict returned no tensor"))
	}
	defer res.Close()

	data, err := res.DataPtrFloat32()
	if err != nil {
		return Failed(fmt.Errorf("read output tensor: %w", err))
	}

	seq := make([]float64, len(data))
	for i, x := range data {
		seq[i] = float64(x)
	}
	return SequenceOutput(seq)
}

type runStrategy struct {
	model Runner
}

func (s runStrategy) Name() string { return StrategyRun }

func (s runStrategy) Invoke(ctx context.Context, in features.Vector) Output {
	if s.model == nil {
		return Failed(ErrUnsupported)
	}

	out, err := s.model.Run(ctx, in.Float32())
	if err != nil {
		return Failed(err)
	}
	return BufferOutput(out)
}

// invoke runs one strategy, turning a panic into a failed output.
func invoke(ctx context.Context, s Strategy, in features.Vector) (out Output) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("panic: %v", r))
		}
	}()
	return s.Invoke(ctx, in)
}
