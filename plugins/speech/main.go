// Package main provides a speech plugin for macOS.
// It speaks the captured letter with the system "say" command.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Letter    string          `json:"letter"`
	SessionID string          `json:"session_id,omitempty"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-action configuration.
type Config struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"` // words per minute
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "say":
		if err := say(req.Letter, req.Config); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

func say(letter string, raw json.RawMessage) error {
	if letter == "" {
		return fmt.Errorf("letter is required")
	}

	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return exec.Command("say", sayArgs(letter, cfg)...).Run()
}

func sayArgs(letter string, cfg Config) []string {
	var args []string
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	if cfg.Rate > 0 {
		args = append(args, "-r", strconv.Itoa(cfg.Rate))
	}
	return append(args, letter)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
