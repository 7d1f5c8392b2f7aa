package watcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/retest/internal/model"
)

func testConfig() model.Config {
	return model.Config{
		Watch: model.WatchConfig{
			DebounceMs: 50,
			Ignore:     []string{".git", "node_modules"},
		},
		Logging: model.LoggingConfig{Level: "error"},
	}
}

// startWatcher runs w until the test ends and returns a channel of batches.
func startWatcher(t *testing.T, root string, cfg model.Config) <-chan []string {
	t.Helper()
	batches := make(chan []string, 10)
	run := func(ctx context.Context, changeSet []string) (model.Verdict, error) {
		batches <- changeSet
		return model.Verdict{Overall: model.OverallNothingToRun}, nil
	}

	w := New(root, cfg, run, &bytes.Buffer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = w.Run(ctx)
	}()
	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a batch")
		return nil
	}
}

func TestWatcherBatchesWrites(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, testConfig())

	a := filepath.Join(root, "a.py")
	b := filepath.Join(root, "b.py")
	require.NoError(t, os.WriteFile(a, []byte("pass\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("pass\n"), 0644))

	// Both changes arrive, usually as one debounced batch.
	seen := make(map[string]bool)
	deadline := time.After(5 * time.Second)
	for !(seen[a] && seen[b]) {
		select {
		case batch := <-batches:
			for _, p := range batch {
				seen[p] = true
			}
		case <-deadline:
			t.Fatalf("changes never reported, seen=%v", seen)
		}
	}
}

func TestWatcherIgnoresConfiguredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0755))
	batches := startWatcher(t, root, testConfig())

	ignored := filepath.Join(root, "node_modules", "dep", "index.js")
	watched := filepath.Join(root, "app.js")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(watched, []byte("x"), 0644))

	batch := waitBatch(t, batches)
	assert.Contains(t, batch, watched)
	assert.NotContains(t, batch, ignored)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, testConfig())

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Allow the create event to register the new directory.
	time.Sleep(200 * time.Millisecond)
	drain(batches)

	inner := filepath.Join(sub, "mod.go")
	require.NoError(t, os.WriteFile(inner, []byte("package pkg\n"), 0644))

	found := false
	deadline := time.After(5 * time.Second)
	for !found {
		select {
		case batch := <-batches:
			for _, p := range batch {
				if p == inner {
					found = true
				}
			}
		case <-deadline:
			t.Fatal("nested file change never reported")
		}
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	w := New(root, testConfig(), func(ctx context.Context, cs []string) (model.Verdict, error) {
		return model.Verdict{}, nil
	}, &bytes.Buffer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func drain(ch <-chan []string) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
