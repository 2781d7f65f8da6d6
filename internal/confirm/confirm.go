// Package confirm turns a stream of per-frame predictions into confirmed
// letters: a letter is captured once it has been held steady long enough.
package confirm

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// DefaultRequiredFrames is how many consecutive repeats confirm a letter.
	DefaultRequiredFrames = 150
	// DefaultFrameRate converts frame counts into displayed seconds.
	DefaultFrameRate = 30
)

// Policy decides what a frame without a hand does to the counter.
type Policy string

const (
	// PolicyFreeze leaves the counter untouched while no hand is visible.
	PolicyFreeze Policy = "freeze"
	// PolicyReset clears the counter when the hand disappears.
	PolicyReset Policy = "reset"
)

// ParsePolicy parses a policy name. The empty string selects PolicyFreeze.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFreeze:
		return PolicyFreeze, nil
	case PolicyReset:
		return PolicyReset, nil
	default:
		return "", fmt.Errorf("unknown no-hand policy %q", s)
	}
}

// Config holds the counter settings.
type Config struct {
	RequiredFrames int
	FrameRate      int
	NoHand         Policy
}

// DefaultConfig returns the default counter settings.
func DefaultConfig() Config {
	return Config{
		RequiredFrames: DefaultRequiredFrames,
		FrameRate:      DefaultFrameRate,
		NoHand:         PolicyFreeze,
	}
}

// Confirmation is emitted when a letter has been held for the required frames.
type Confirmation struct {
	Label      string `json:"label"`
	ClassIndex int    `json:"class_index"`
}

// Step is the counter state after one observation.
type Step struct {
	Label      string        `json:"label"`
	ClassIndex int           `json:"class_index"`
	Count      int           `json:"count"`
	Remaining  int           `json:"remaining"`
	Confirmed  *Confirmation `json:"confirmed,omitempty"`
}

// Counter tracks how long the same letter has been shown.
// It is safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	config Config

	label string
	count int
}

// NewCounter creates a counter. Zero fields in config take their defaults.
func NewCounter(config Config) *Counter {
	if config.RequiredFrames <= 0 {
		config.RequiredFrames = DefaultRequiredFrames
	}
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}
	if config.NoHand == "" {
		config.NoHand = PolicyFreeze
	}
	return &Counter{config: config}
}

// Config returns the effective settings.
func (c *Counter) Config() Config {
	return c.config
}

// Observe records one frame's letter. The first frame of a new letter starts
// the count at zero; each repeat adds one. When the count reaches the
// required frames the letter is confirmed and the count starts over.
func (c *Counter) Observe(label string, classIndex int) Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	if label == c.label {
		c.count++
	} else {
		c.label = label
		c.count = 0
	}

	step := Step{
		Label:      label,
		ClassIndex: classIndex,
		Count:      c.count,
		Remaining:  c.remaining(c.count),
	}

	if c.count >= c.config.RequiredFrames {
		step.Confirmed = &Confirmation{Label: label, ClassIndex: classIndex}
		c.count = 0
	}
	return step
}

// NoHand records a frame in which no hand was detected.
func (c *Counter) NoHand() {
	if c.config.NoHand != PolicyReset {
		return
	}
	c.Reset()
}

// Reset clears the tracked letter and count.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = ""
	c.count = 0
}

// State returns the tracked letter and its count.
func (c *Counter) State() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label, c.count
}

// Remaining converts a count into whole seconds left until confirmation.
func (c *Counter) Remaining(count int) int {
	return c.remaining(count)
}

func (c *Counter) remaining(count int) int {
	r := c.config.RequiredFrames/c.config.FrameRate - count/c.config.FrameRate
	if r < 0 {
		return 0
	}
	return r
}
