// Package watcher runs the orchestrator on filesystem change batches. It is
// the in-process variant of the external file-watcher trigger: every settled
// batch of change events becomes one independent change-set.
package watcher

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/retest/internal/aggregate"
	"github.com/msageha/retest/internal/model"
	"github.com/msageha/retest/internal/orchestrator"
)

// RunFunc executes one change-set and returns its verdict.
type RunFunc func(ctx context.Context, changeSet []string) (model.Verdict, error)

// Watcher debounces change events under a project root into run batches.
type Watcher struct {
	root     string
	cfg      model.Config
	run      RunFunc
	out      io.Writer
	logger   *log.Logger
	logLevel orchestrator.LogLevel
	ignored  map[string]bool
}

// New creates a Watcher rooted at root.
func New(root string, cfg model.Config, run RunFunc, out io.Writer, logger *log.Logger) *Watcher {
	ignored := make(map[string]bool, len(cfg.Watch.Ignore))
	for _, name := range cfg.Watch.Ignore {
		ignored[name] = true
	}
	return &Watcher{
		root:     root,
		cfg:      cfg,
		run:      run,
		out:      out,
		logger:   logger,
		logLevel: orchestrator.ParseLogLevel(cfg.Logging.Level),
		ignored:  ignored,
	}
}

// Run watches the tree and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.log(orchestrator.LogLevelInfo, "watching %s", w.root)

	debounce := time.Duration(w.cfg.Watch.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			w.log(orchestrator.LogLevelInfo, "watch stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignoredPath(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories must be added so nested changes are seen.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.log(orchestrator.LogLevelWarn, "watch new dir %s: %v", event.Name, err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.log(orchestrator.LogLevelDebug, "event op=%s file=%s", event.Op, event.Name)
				pending[event.Name] = true
				timer.Reset(debounce)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)
			w.runBatch(ctx, batch)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log(orchestrator.LogLevelError, "fsnotify error=%v", err)
		}
	}
}

// runBatch executes one debounced batch as a standalone invocation.
func (w *Watcher) runBatch(ctx context.Context, batch []string) {
	w.log(orchestrator.LogLevelInfo, "batch of %d changed path(s)", len(batch))
	v, err := w.run(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log(orchestrator.LogLevelError, "run failed: %v", err)
		return
	}
	fmt.Fprint(w.out, aggregate.Summary(v, aggregate.Options{ExcerptLines: w.cfg.Run.ExcerptLines}))
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored[d.Name()] {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) ignoredPath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.ignored[filepath.Base(dir)] {
			return true
		}
	}
	return false
}

func (w *Watcher) log(level orchestrator.LogLevel, format string, args ...any) {
	if w.logger == nil || level < w.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case orchestrator.LogLevelDebug:
		levelStr = "DEBUG"
	case orchestrator.LogLevelWarn:
		levelStr = "WARN"
	case orchestrator.LogLevelError:
		levelStr = "ERROR"
	}
	w.logger.Printf("%s watch: %s", levelStr, fmt.Sprintf(format, args...))
}
