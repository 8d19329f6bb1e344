package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return configPath
}

func TestNewWatcher(t *testing.T) {
	loader := NewLoader()

	t.Run("valid config path", func(t *testing.T) {
		configPath := writeTempConfig(t, "app:\n  name: test\n")

		watcher, err := NewWatcher(configPath, loader)
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.ConfigPath() != configPath {
			t.Errorf("expected config path %s, got %s", configPath, watcher.ConfigPath())
		}
	})

	t.Run("empty config path", func(t *testing.T) {
		_, err := NewWatcher("", loader)
		if err == nil {
			t.Fatal("expected error for empty config path")
		}
	})
}

func TestWatcher_OnChange(t *testing.T) {
	configPath := writeTempConfig(t, "app:\n  name: watch-test\n")

	watcher, err := NewWatcher(configPath, NewLoader(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	var mu sync.Mutex
	var reloaded *Config
	done := make(chan struct{})
	watcher.OnChange(func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		if reloaded == nil {
			reloaded = cfg
			close(done)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = watcher.Watch(ctx)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	update := "app:\n  name: watch-test\nentropy:\n  spike_threshold: 0.4\n"
	if err := os.WriteFile(configPath, []byte(update), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for config reload")
	}

	mu.Lock()
	defer mu.Unlock()
	if reloaded.App.Name != "watch-test" {
		t.Errorf("expected app name 'watch-test', got %s", reloaded.App.Name)
	}
	if reloaded.Entropy.SpikeThreshold != 0.4 {
		t.Errorf("expected spike threshold 0.4, got %f", reloaded.Entropy.SpikeThreshold)
	}
}

func TestWatcher_Stop(t *testing.T) {
	configPath := writeTempConfig(t, "app:\n  name: stop-test\n")

	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Watch(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)
	if !watcher.IsRunning() {
		t.Error("expected watcher to be running")
	}

	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Watch returned error after Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}

func TestExtractHotReloadable(t *testing.T) {
	cfg := DefaultConfig()
	h := ExtractHotReloadable(cfg)

	if h.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", h.LogLevel)
	}
	if h.SpikeThreshold != 0.2 {
		t.Errorf("expected spike threshold 0.2, got %f", h.SpikeThreshold)
	}

	other := h
	if h.Changed(other) {
		t.Error("expected identical configs to report unchanged")
	}

	other.SpikeThreshold = 0.3
	if !h.Changed(other) {
		t.Error("expected changed spike threshold to be detected")
	}
}
