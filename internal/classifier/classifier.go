// Package classifier runs the keypoint classifier behind a fallback list of
// calling conventions.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/dactyl/internal/features"
)

// Opener loads a model from a LoadConfig.
type Opener func(LoadConfig) (*Model, error)

// Status describes the classifier's load state.
type Status struct {
	Loaded     bool     `json:"loaded"`
	Path       string   `json:"path"`
	Strategies []string `json:"strategies"`
	Error      string   `json:"error,omitempty"`
}

// Classifier owns the loaded model. Classify calls may run while a reload
// waits; the swap happens once in-flight calls return.
type Classifier struct {
	mu      sync.RWMutex
	config  LoadConfig
	open    Opener
	model   *Model
	loadErr error
	logger  *slog.Logger
}

// New creates a classifier with no model loaded. Call Load to open the asset.
func New(config LoadConfig, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		config: config,
		open:   Open,
		logger: logger.With("component", "classifier"),
	}
}

// SetOpener replaces how Load opens the model asset.
func (c *Classifier) SetOpener(open Opener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

// SetModel installs an already opened model, closing any previous one.
func (c *Classifier) SetModel(m *Model) {
	c.mu.Lock()
	old := c.model
	c.model = m
	c.loadErr = nil
	c.mu.Unlock()

	if old != nil && old != m {
		old.Close()
	}
}

// Load opens the configured model asset. On failure the classifier is left
// without a model and every Classify call reports ErrModelNotLoaded until a
// later Load succeeds. The error is a *ModelLoadError.
func (c *Classifier) Load() error {
	c.mu.RLock()
	open, config := c.open, c.config
	c.mu.RUnlock()

	m, err := open(config)
	if err != nil {
		var loadErr *ModelLoadError
		if !errors.As(err, &loadErr) {
			err = &ModelLoadError{Path: config.Path, Err: err}
		}
	}

	c.mu.Lock()
	old := c.model
	c.model = m
	c.loadErr = err
	c.mu.Unlock()

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			c.logger.Warn("closing previous model", "error", cerr)
		}
	}

	if err != nil {
		c.logger.Error("model load failed", "path", config.Path, "error", err)
		return err
	}

	c.logger.Info("model loaded", "path", config.Path, "strategies", m.Available())
	return nil
}

// Reload re-opens the configured asset.
func (c *Classifier) Reload() error {
	return c.Load()
}

// Loaded reports whether a model is ready.
func (c *Classifier) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Status returns the current load state.
func (c *Classifier) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{Path: c.config.Path, Strategies: []string{}}
	if c.model != nil {
		st.Loaded = true
		st.Path = c.model.Path()
		st.Strategies = append(st.Strategies, c.model.Available()...)
	}
	if c.loadErr != nil {
		st.Error = c.loadErr.Error()
	}
	return st
}

// Classify scores one feature vector. Strategies are tried in order and the
// first usable output wins. When all fail the result is an *InferenceError;
// nothing is retried.
func (c *Classifier) Classify(ctx context.Context, in features.Vector) (Scores, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return nil, ErrModelNotLoaded
	}
	if len(in) != features.Length {
		return nil, fmt.Errorf("feature vector has %d values, want %d", len(in), features.Length)
	}

	var attempts []Attempt
	for _, s := range c.model.Strategies() {
		scores, err := invoke(ctx, s, in).Scores()
		if err == nil {
			return scores, nil
		}
		attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
		if !errors.Is(err, ErrUnsupported) {
			c.logger.Debug("strategy failed", "strategy", s.Name(), "error", err)
		}
	}

	err := &InferenceError{Attempts: attempts}
	c.logger.Warn("inference failed", "error", err)
	return nil, err
}

// Close releases the loaded model.
func (c *Classifier) Close() error {
	c.mu.Lock()
	m := c.model
	c.model = nil
	c.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Close()
}
