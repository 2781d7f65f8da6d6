// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/dactyl/internal/confirm"
)

// Config holds the service settings. Load fills it from the environment.
type Config struct {
	HTTPAddr       string
	DataDir        string
	ModelPath      string
	LabelsPath     string
	RunnerScript   string
	CameraID       int
	RequiredFrames int
	FrameRate      int
	NoHandPolicy   string
	PluginDir      string
	PluginTimeout  time.Duration
	Tray           bool
	MockDetector   bool
	LogLevel       string

	// parseErrs records values that were set but could not be parsed.
	parseErrs []error
}

// Load reads an optional .env file (or the given files) and then the
// environment. Variables already set in the environment win over the file.
func Load(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read env file", "error", err)
	}

	dataDir := getEnv("DACTYL_DATA_DIR", defaultDataDir())

	var errs []error
	envInt := func(key string, def int) int {
		i, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return i
	}

	cfg := &Config{
		HTTPAddr:       getEnv("DACTYL_HTTP_ADDR", ":8080"),
		DataDir:        dataDir,
		ModelPath:      getEnv("DACTYL_MODEL_PATH", filepath.Join("model", "keypoint_classifier.tflite")),
		LabelsPath:     getEnv("DACTYL_LABELS_PATH", filepath.Join("model", "keypoint_classifier_label.csv")),
		RunnerScript:   getEnv("DACTYL_RUNNER_SCRIPT", ""),
		CameraID:       envInt("DACTYL_CAMERA_ID", 0),
		RequiredFrames: envInt("DACTYL_REQUIRED_FRAMES", confirm.DefaultRequiredFrames),
		FrameRate:      envInt("DACTYL_FRAME_RATE", confirm.DefaultFrameRate),
		NoHandPolicy:   getEnv("DACTYL_NO_HAND_POLICY", string(confirm.PolicyFreeze)),
		PluginDir:      getEnv("DACTYL_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		PluginTimeout:  time.Duration(envInt("DACTYL_PLUGIN_TIMEOUT_MS", 5000)) * time.Millisecond,
		Tray:           getEnvBool("DACTYL_TRAY", false),
		MockDetector:   getEnvBool("DACTYL_MOCK_DETECTOR", false),
		LogLevel:       getEnv("DACTYL_LOG_LEVEL", "info"),
	}
	cfg.parseErrs = errs
	return cfg
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if c.RequiredFrames <= 0 {
		errs = append(errs, fmt.Errorf("DACTYL_REQUIRED_FRAMES must be positive, got %d", c.RequiredFrames))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("DACTYL_FRAME_RATE must be positive, got %d", c.FrameRate))
	}
	if _, err := confirm.ParsePolicy(c.NoHandPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.PluginTimeout <= 0 {
		errs = append(errs, errors.New("DACTYL_PLUGIN_TIMEOUT_MS must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("DACTYL_MODEL_PATH is empty"))
	}
	return errors.Join(errs...)
}

// DBPath is the sqlite database inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "dactyl.db")
}

// Confirm builds the counter settings.
func (c *Config) Confirm() confirm.Config {
	policy, _ := confirm.ParsePolicy(c.NoHandPolicy)
	return confirm.Config{
		RequiredFrames: c.RequiredFrames,
		FrameRate:      c.FrameRate,
		NoHand:         policy,
	}
}

// Level returns the slog level for LogLevel, falling back to Info.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("DACTYL_LOG_LEVEL: %w", err)
	}
	return l, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dactyl"
	}
	return filepath.Join(home, ".dactyl")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns def when key is unset. A value that is not an integer
// yields def and an error naming the variable.
func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
