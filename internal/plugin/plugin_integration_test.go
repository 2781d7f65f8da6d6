package plugin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestPlugin_Speech_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("speech plugin only works on macOS")
	}

	pluginDir := findPluginDir("speech")
	if pluginDir == "" {
		t.Skip("speech plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.Get("speech")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// An empty letter is rejected without speaking.
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Action: "say"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty letter")
	}
}

func TestPlugin_Keyboard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "darwin" {
		t.Skip("keyboard plugin only works on macOS")
	}

	pluginDir := findPluginDir("keyboard")
	if pluginDir == "" {
		t.Skip("keyboard plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.Get("keyboard")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), plug, &Request{Action: "type"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty letter")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	// The manifest names a binary built next to it with the plugin's name.
	for _, dir := range candidates {
		manifest := filepath.Join(dir, "plugin.json")
		binary := filepath.Join(dir, name)
		if _, err := os.Stat(manifest); err != nil {
			continue
		}
		if _, err := os.Stat(binary); err == nil {
			return dir
		}
	}
	return ""
}
