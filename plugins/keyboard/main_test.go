package main

import "testing"

func TestBuildKeystrokeScript(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		modifiers []string
		want      string
	}{
		{"letter", "Ж", nil, `tell application "System Events" to keystroke "Ж"`},
		{"quote escaped", `"`, nil, `tell application "System Events" to keystroke "\""`},
		{"shortcut", "c", []string{"cmd", "shift"}, `tell application "System Events" to keystroke "c" using {command down, shift down}`},
		{"unknown modifiers dropped", "v", []string{"hyper"}, `tell application "System Events" to keystroke "v"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildKeystrokeScript(tt.key, tt.modifiers); got != tt.want {
				t.Errorf("buildKeystrokeScript() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTypeLetter_RequiresLetter(t *testing.T) {
	if err := typeLetter(""); err == nil {
		t.Error("expected error for empty letter")
	}
}
