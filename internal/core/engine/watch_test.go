package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestWatcherReload(t *testing.T) {
	path := writeFile(t, "config.json", `{"endpoints":{"a":{"target_url":"http://a"}}}`)
	first, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	holder := NewHolder(first)

	var reloads []error
	w := NewWatcher(path, holder, zaptest.NewLogger(t), WithReloadHook(func(_ *Engine, _ []Warning, err error) {
		reloads = append(reloads, err)
	}))

	if err := os.WriteFile(path, []byte(`{"endpoints":{"b":{"target_url":"http://b"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if _, ok := holder.Load().Endpoint("b"); !ok {
		t.Fatal("Expected the reloaded snapshot to be published")
	}

	if err := os.WriteFile(path, []byte(`{"endpoints":`), 0o644); err != nil {
		t.Fatal(err)
	}
	current := holder.Load()
	w.Reload()
	if holder.Load() != current {
		t.Error("A broken file must keep the previous snapshot")
	}

	if len(reloads) != 2 || reloads[0] != nil || reloads[1] == nil {
		t.Errorf("Unexpected reload results %v", reloads)
	}
}

func TestWatcherReloadLogsSnapshot(t *testing.T) {
	path := writeFile(t, "config.json", `{"endpoints":{"a":{"target_url":"http://a"}}}`)
	holder := NewHolder(nil)

	observed, logs := observer.New(zap.InfoLevel)
	w := NewWatcher(path, holder, zap.New(observed))
	w.Reload()

	entries := logs.FilterMessage("Endpoint configuration reloaded").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one reload entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["endpoints"] != int64(1) {
		t.Errorf("endpoints = %v", fields["endpoints"])
	}
	if got, ok := fields["loaded_at"].(time.Time); !ok || !got.Equal(holder.Load().LoadedAt()) {
		t.Errorf("loaded_at = %v, want %v", fields["loaded_at"], holder.Load().LoadedAt())
	}
}

func TestWatcherRunFollowsFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"endpoints":{"a":{"target_url":"http://a"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	first, _, _ := Load(path)
	holder := NewHolder(first)

	reloaded := make(chan struct{}, 4)
	w := NewWatcher(path, holder, zaptest.NewLogger(t),
		WithDebounce(20*time.Millisecond),
		WithReloadHook(func(_ *Engine, _ []Warning, err error) {
			if err == nil {
				reloaded <- struct{}{}
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// fsnotify needs the watch registered before the write
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	content := []byte(`{"endpoints":{"b":{"target_url":"http://b"}}}`)
	for {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case <-reloaded:
			if _, ok := holder.Load().Endpoint("b"); !ok {
				t.Error("Expected endpoint b after reload")
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run returned %v", err)
			}
			return
		case <-tick.C:
		case <-deadline:
			cancel()
			<-done
			t.Fatal("Timed out waiting for reload")
		}
	}
}
