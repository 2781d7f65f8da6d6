// Package sidecar runs long-lived helper processes that answer framed requests.
//
// The wire format is a 4-byte big-endian length followed by the payload on the
// child's stdin, and one newline-terminated reply line on its stdout. The child
// is started lazily on the first call and stopped after an idle period.
package sidecar

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a child may sit unused before it is stopped.
const DefaultIdleTimeout = 30 * time.Second

// ErrClosed is returned by Call after Close.
var ErrClosed = errors.New("sidecar closed")

// Config describes how to launch a helper process.
type Config struct {
	// Script is the helper script path passed as the first interpreter argument.
	Script string
	// Args are extra arguments appended after Script.
	Args []string
	// Interpreter runs Script. Defaults to the project virtualenv Python, then python3.
	Interpreter string
	// IdleTimeout stops the child after this long without calls. Zero uses DefaultIdleTimeout.
	IdleTimeout time.Duration
	// Stderr receives the child's stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// Process is a lazily started helper process. Calls are serialized.
type Process struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	closed    bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// New creates a Process. Nothing is started until the first Call.
func New(config Config) *Process {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	return &Process{config: config}
}

// Call sends one framed payload and returns the reply line without its newline.
// A failed exchange stops the child so the next call starts a fresh one.
func (p *Process) Call(payload []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}

	reply, err := p.exchange(payload)
	if err != nil {
		p.shutdown()
		return nil, err
	}

	p.lastUsed = time.Now()
	p.resetIdleTimer()
	return reply, nil
}

func (p *Process) exchange(payload []byte) ([]byte, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := p.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := p.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}

	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return line[:len(line)-1], nil
}

// Running reports whether the child is currently alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Close stops the child. Further calls fail with ErrClosed.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.shutdown()
}

func (p *Process) ensureStarted() error {
	if p.started {
		return nil
	}

	if p.config.Script == "" {
		return errors.New("sidecar script not configured")
	}

	interpreter := p.config.Interpreter
	if interpreter == "" {
		interpreter = FindPython()
	}

	args := append([]string{p.config.Script}, p.config.Args...)
	p.cmd = exec.Command(interpreter, args...)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	p.cmd.Stderr = p.config.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(p.config.Script), err)
	}

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	p.lastUsed = time.Now()

	return nil
}

func (p *Process) shutdown() error {
	if !p.started {
		return nil
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}

	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil

	return err
}

func (p *Process) resetIdleTimer() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.shutdown()
	})
}

// FindScript looks for a helper script under scripts/ in the working directory,
// its parent, next to the executable, and in ~/.dactyl/scripts.
// Returns an empty string when none exists.
func FindScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	home, _ := os.UserHomeDir()

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(home, ".dactyl", "scripts", name),
	}

	return firstExisting(candidates)
}

// FindPython returns the project virtualenv interpreter if one exists, else python3.
func FindPython() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	home, _ := os.UserHomeDir()

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(home, ".dactyl/venv/bin/python"),
	}

	if p := firstExisting(candidates); p != "" {
		return p
	}
	return "python3"
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
