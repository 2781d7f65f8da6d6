package app

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/dactyl/internal/capture"
	"github.com/ayusman/dactyl/internal/plugin"
)

// runPipeline is the capture loop. Each tick reads one frame and processes it
// to completion before the next read, so at most one frame is in flight. Ticks
// that fire while a frame is still being processed are dropped by the ticker.
func (a *App) runPipeline(sess *Session, cam capture.Camera, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := cam.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	ctx := context.Background()
	var readErrors int

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			readErrors++
			// Log the first failure of a run and then once a second.
			if readErrors == 1 || readErrors%fps == 0 {
				a.logger.Warn("reading frame", "error", err, "consecutive", readErrors)
			}
			continue
		}
		readErrors = 0

		a.preview.update(frame)
		if _, err := a.ProcessFrame(ctx, frame); err != nil {
			a.logger.Debug("frame skipped", "session", sess.ID, "error", err)
		}
		frame.Close()
	}
}

// executeActions runs every enabled action bound to the captured letter.
// Actions run in the background so the capture loop never waits on a plugin.
func (a *App) executeActions(c Capture) {
	if a.config.Store == nil {
		return
	}

	bound, err := a.config.Store.Actions().ListForLetter(c.Letter)
	if err != nil {
		a.logger.Error("looking up actions", "letter", c.Letter, "error", err)
		return
	}

	for _, act := range bound {
		p, err := a.pluginMgr.Get(act.PluginName)
		if err != nil {
			a.logger.Warn("action plugin unavailable", "action", act.ID, "plugin", act.PluginName, "error", err)
			continue
		}

		req := &plugin.Request{
			Action:    act.ActionName,
			Letter:    c.Letter,
			SessionID: c.SessionID,
			Config:    act.Config,
			Params:    json.RawMessage("{}"),
		}

		a.actions.Add(1)
		go func(actionID string) {
			defer a.actions.Done()
			if err := a.pluginExec.Run(a.actionCtx, p, req); err != nil {
				a.logger.Warn("action failed", "action", actionID, "plugin", p.Manifest.Name, "letter", c.Letter, "error", err)
				return
			}
			a.logger.Info("action executed", "action", actionID, "plugin", p.Manifest.Name, "letter", c.Letter)
		}(act.ID)
	}
}

// WaitActions blocks until all dispatched plugin actions have finished.
func (a *App) WaitActions() {
	a.actions.Wait()
}

// Subscribe returns a channel receiving every processed Frame. Slow
// subscribers miss frames rather than stall the loop. Call cancel when done.
func (a *App) Subscribe() (<-chan Frame, func()) {
	return a.broker.subscribe()
}

// Snapshot returns the latest camera frame as JPEG and its sequence number.
// Frames are only encoded while at least one viewer is watching.
func (a *App) Snapshot() ([]byte, uint64) {
	return a.preview.snapshot()
}

// WatchPreview marks a preview viewer as active until release is called.
func (a *App) WatchPreview() (release func()) {
	return a.preview.watch()
}

// broker fans frames out to subscribers.
type broker struct {
	mu     sync.Mutex
	subs   map[int]chan Frame
	next   int
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Frame)}
}

func (b *broker) subscribe() (<-chan Frame, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Frame, 16)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broker) publish(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// preview holds the most recent JPEG for the MJPEG stream.
type preview struct {
	viewers atomic.Int32

	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

func (p *preview) watch() func() {
	p.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { p.viewers.Add(-1) })
	}
}

func (p *preview) update(frame *gocv.Mat) {
	if p.viewers.Load() == 0 {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.mu.Lock()
	p.jpeg = data
	p.seq++
	p.mu.Unlock()
}

func (p *preview) snapshot() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}
