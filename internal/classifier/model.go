package classifier

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ayusman/dactyl/internal/sidecar"
)

// LoadConfig locates a model asset and its optional interpreter helper.
type LoadConfig struct {
	// Path is the model asset (.tflite, .onnx, .pb).
	Path string
	// RunnerScript is the interpreter helper. Empty means look up RunnerScriptName.
	RunnerScript string
	// Interpreter runs RunnerScript. Empty means sidecar.FindPython.
	Interpreter string
}

// Model is a loaded classifier exposing an ordered list of calling conventions.
type Model struct {
	path       string
	strategies []Strategy
	available  []string
	closers    []io.Closer
}

// NewModel builds a model from the two calling conventions, tried predict first.
// Either may be nil when the runtime does not expose it.
func NewModel(path string, predictor Predictor, runner Runner) *Model {
	m := &Model{
		path: path,
		strategies: []Strategy{
			predictStrategy{model: predictor},
			runStrategy{model: runner},
		},
	}
	if predictor != nil {
		m.available = append(m.available, StrategyPredict)
		if c, ok := predictor.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}
	if runner != nil {
		m.available = append(m.available, StrategyRun)
		if c, ok := runner.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}
	return m
}

// NewModelWithStrategies builds a model from an explicit strategy list.
func NewModelWithStrategies(path string, strategies ...Strategy) *Model {
	m := &Model{path: path, strategies: strategies}
	for _, s := range strategies {
		m.available = append(m.available, s.Name())
	}
	return m
}

// Path returns the asset path the model was loaded from.
func (m *Model) Path() string { return m.path }

// Strategies returns the calling conventions in the order they are tried.
func (m *Model) Strategies() []Strategy { return m.strategies }

// Available names the strategies backed by a runtime.
func (m *Model) Available() []string { return m.available }

// Close releases every runtime handle held by the model.
func (m *Model) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open loads a model asset. The predict convention is served by OpenCV DNN
// when it can read the file; the run convention is served by the interpreter
// helper when one is found. At least one must be available.
func Open(config LoadConfig) (*Model, error) {
	info, err := os.Stat(config.Path)
	if err != nil {
		return nil, &ModelLoadError{Path: config.Path, Err: err}
	}
	if info.IsDir() {
		return nil, &ModelLoadError{Path: config.Path, Err: errors.New("is a directory")}
	}
	if info.Size() == 0 {
		return nil, &ModelLoadError{Path: config.Path, Err: errors.New("empty file")}
	}

	var predictor Predictor
	net, netErr := OpenNet(config.Path)
	if netErr == nil {
		predictor = net
	}

	var runner Runner
	script := config.RunnerScript
	if script == "" {
		script = sidecar.FindScript(RunnerScriptName)
	}
	if script != "" {
		runner = NewServiceRunner(sidecar.New(sidecar.Config{
			Script:      script,
			Args:        []string{"--model", config.Path},
			Interpreter: config.Interpreter,
		}))
	}

	if predictor == nil && runner == nil {
		return nil, &ModelLoadError{
			Path: config.Path,
			Err:  fmt.Errorf("no runtime can serve the model (%v) and %s was not found", netErr, RunnerScriptName),
		}
	}

	return NewModel(config.Path, predictor, runner), nil
}
