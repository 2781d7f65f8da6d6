// Package app runs the fingerspelling capture loop: camera frames go through
// hand detection, the keypoint classifier and the hold-to-confirm counter, and
// confirmed letters are stored and handed to plugins.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/dactyl/internal/capture"
	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/confirm"
	"github.com/ayusman/dactyl/internal/detector"
	"github.com/ayusman/dactyl/internal/labels"
	"github.com/ayusman/dactyl/internal/plugin"
	"github.com/ayusman/dactyl/internal/store"
)

// ErrNotRunning is returned when a frame is processed with no active session.
var ErrNotRunning = errors.New("capture session not running")

// ErrNoDetector is reported on every frame when no hand detector is available.
var ErrNoDetector = errors.New("no hand detector")

// Config holds configuration options for the application.
type Config struct {
	Store         *store.Store
	PluginDir     string
	PluginTimeout time.Duration
	Camera        capture.Config
	Confirm       confirm.Config
	Model         classifier.LoadConfig
	LabelsPath    string
	// MockDetector uses the fixture detector instead of MediaPipe.
	MockDetector bool
	Logger       *slog.Logger
}

// App owns the camera, detector, classifier and the current session.
type App struct {
	config     Config
	logger     *slog.Logger
	camera     capture.Camera
	detector   detector.Detector
	detErr     error
	classifier *classifier.Classifier
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	// lifecycle serializes Begin, Start and Stop so a teardown never
	// overlaps a new loop.
	lifecycle sync.Mutex

	mu       sync.RWMutex
	session  *Session
	stopCh   chan struct{}
	loopDone chan struct{}
	last     Frame
	hasLast  bool

	// newResolver builds the label table for a new session.
	newResolver func() LabelResolver

	broker  *broker
	preview *preview

	captureMu sync.RWMutex
	onCapture []func(Capture)

	actions   sync.WaitGroup
	actionCtx context.Context
	cancelCtx context.CancelFunc
}

// New creates a new App instance with the given configuration. The model is
// not loaded until LoadModel is called.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Camera.FPS <= 0 {
		config.Camera.FPS = config.Confirm.FrameRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		config:     config,
		logger:     logger.With("component", "app"),
		camera:     capture.NewCamera(config.Camera),
		classifier: classifier.New(config.Model, logger),
		pluginMgr:  plugin.NewManager(config.PluginDir),
		pluginExec: plugin.NewExecutor(config.PluginTimeout),
		broker:     newBroker(),
		preview:    &preview{},
		actionCtx:  ctx,
		cancelCtx:  cancel,
	}
	a.pluginMgr.SetLogger(logger)
	a.newResolver = func() LabelResolver {
		return labels.NewResolver(config.LabelsPath, logger)
	}

	if config.MockDetector {
		a.detector = detector.NewMockDetector()
		a.logger.Warn("using mock hand detection")
	} else if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		a.detector = mp
		a.logger.Info("using MediaPipe hand detection")
	} else {
		// Frames report the missing detector until SetDetector installs one.
		a.detErr = fmt.Errorf("%w: %v", ErrNoDetector, err)
		a.logger.Error("MediaPipe not available", "error", err)
	}

	return a
}

// LoadModel opens the classifier model. A failure is logged and reported but
// leaves the app usable; frames report the missing model until a reload
// succeeds.
func (a *App) LoadModel() error {
	return a.classifier.Load()
}

// ReloadModel re-opens the configured model asset.
func (a *App) ReloadModel() error {
	return a.classifier.Reload()
}

// Classifier returns the keypoint classifier.
func (a *App) Classifier() *classifier.Classifier {
	return a.classifier
}

// SetDetector sets the hand detector implementation to use. The previous
// detector is closed.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	old := a.detector
	a.detector = d
	a.detErr = nil
	a.mu.Unlock()

	if old != nil && old != d {
		if err := old.Close(); err != nil {
			a.logger.Warn("closing detector", "error", err)
		}
	}
}

// SetCamera replaces the frame source. It must be called while stopped.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetLabels makes new sessions use a fixed label table.
func (a *App) SetLabels(r LabelResolver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.newResolver = func() LabelResolver { return r }
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// OnCapture registers a callback run for every confirmed letter.
func (a *App) OnCapture(fn func(Capture)) {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	a.onCapture = append(a.onCapture, fn)
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session != nil
}

// Session returns the active session, or nil.
func (a *App) Session() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// LastFrame returns the most recently processed frame.
func (a *App) LastFrame() (Frame, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.hasLast
}

// Begin starts a session without opening the camera; frames are fed through
// ProcessFrame. Start uses it before launching the camera loop.
func (a *App) Begin() (*Session, error) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}
	return a.beginLocked()
}

func (a *App) beginLocked() (*Session, error) {
	cc := a.config.Confirm
	sess := NewSession(uuid.NewString(), a.classifier, a.newResolver(), cc, a.logger)
	cc = sess.Counter().Config()

	if a.config.Store != nil {
		err := a.config.Store.Sessions().Create(&store.Session{
			ID:             sess.ID,
			RequiredFrames: cc.RequiredFrames,
			FrameRate:      cc.FrameRate,
			StartedAt:      sess.StartedAt,
		})
		if err != nil {
			return nil, err
		}
	}

	a.session = sess
	a.hasLast = false
	a.logger.Info("session started", "session", sess.ID, "required_frames", cc.RequiredFrames, "frame_rate", cc.FrameRate)
	return sess, nil
}

// Start opens the camera, begins a session and runs the capture loop. It is
// the Start button: calling it while running does nothing.
func (a *App) Start() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	sess := a.session
	if sess == nil {
		var err error
		if sess, err = a.beginLocked(); err != nil {
			a.camera.Close()
			return err
		}
	}

	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	go a.runPipeline(sess, a.camera, a.stopCh, a.loopDone)

	a.logger.Info("capture loop started", "fps", a.camera.FPS())
	return nil
}

// Stop halts the capture loop and ends the session. It is the Stop button.
func (a *App) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	stopCh, done := a.stopCh, a.loopDone
	a.stopCh, a.loopDone = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("closing camera", "error", err)
	}

	sess := a.session
	if sess == nil {
		return
	}
	a.session = nil

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().End(sess.ID, time.Now()); err != nil {
			a.logger.Warn("ending session", "session", sess.ID, "error", err)
		}
	}
	a.logger.Info("session stopped", "session", sess.ID, "spelled", sess.Spelled())
}

// Close stops the loop, waits for running plugin actions and releases the
// detector and model.
func (a *App) Close() error {
	a.Stop()
	a.cancelCtx()
	a.actions.Wait()
	a.broker.close()

	var errs []error
	if d := a.Detector(); d != nil {
		errs = append(errs, d.Close())
	}
	errs = append(errs, a.classifier.Close())
	return errors.Join(errs...)
}

// ProcessFrame detects hands in mat and runs them through the session. Detector
// errors are recovered into an error Frame. The frame is published to
// subscribers and confirmed letters are stored and dispatched to plugins.
func (a *App) ProcessFrame(ctx context.Context, mat *gocv.Mat) (Frame, error) {
	a.mu.RLock()
	sess, det, detErr := a.session, a.detector, a.detErr
	a.mu.RUnlock()

	if sess == nil {
		return Frame{}, ErrNotRunning
	}

	var f Frame
	if det == nil {
		if detErr == nil {
			detErr = ErrNoDetector
		}
		f = sess.Fail(detErr)
	} else if hands, err := det.Detect(mat); err != nil {
		a.logger.Warn("hand detection failed", "error", err)
		f = sess.Fail(err)
	} else {
		f = sess.Process(ctx, hands)
	}

	a.mu.Lock()
	if a.session == sess {
		a.last, a.hasLast = f, true
	}
	a.mu.Unlock()

	a.broker.publish(f)
	if f.Capture != nil {
		a.handleCapture(*f.Capture)
	}
	return f, nil
}

// handleCapture persists a confirmed letter and runs the bound actions.
func (a *App) handleCapture(c Capture) {
	if a.config.Store != nil {
		err := a.config.Store.Captures().Create(&store.Capture{
			SessionID:  c.SessionID,
			Letter:     c.Letter,
			ClassIndex: c.ClassIndex,
			Score:      c.Score,
			CapturedAt: c.At,
		})
		if err != nil {
			a.logger.Error("storing capture", "letter", c.Letter, "error", err)
		}
	}

	a.captureMu.RLock()
	callbacks := append([]func(Capture){}, a.onCapture...)
	a.captureMu.RUnlock()
	for _, fn := range callbacks {
		fn(c)
	}

	a.executeActions(c)
}
