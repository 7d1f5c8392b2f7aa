// Package orchestrator drives one run: classify the change-set, locate the
// impacted tests, execute them, and aggregate a single verdict.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/msageha/retest/internal/aggregate"
	"github.com/msageha/retest/internal/classify"
	"github.com/msageha/retest/internal/locate"
	"github.com/msageha/retest/internal/model"
	"github.com/msageha/retest/internal/runner"
)

// ErrInterrupted is returned when the run was cancelled before completion.
// An aborted run never reports a partial verdict as final.
var ErrInterrupted = errors.New("run interrupted before completion")

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Runner executes a single test target.
type Runner interface {
	Run(ctx context.Context, target model.TestTarget) (model.ExecutionResult, error)
}

// Orchestrator is a pure pipeline over the change-set and the filesystem:
// no state survives between Run calls.
type Orchestrator struct {
	cfg      model.Config
	runner   Runner
	locate   func(model.ClassifiedPath) []model.TestTarget
	logger   *log.Logger
	logLevel LogLevel
}

// New creates an Orchestrator with the real runner and locator.
func New(cfg model.Config, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		runner:   runner.New(cfg),
		locate:   locate.Locate,
		logger:   logger,
		logLevel: ParseLogLevel(cfg.Logging.Level),
	}
}

// SetRunner overrides the runner. Allows testing without real test tools.
func (o *Orchestrator) SetRunner(r Runner) {
	o.runner = r
}

// Run processes one change-set through Collecting → Executing → Reporting.
func (o *Orchestrator) Run(ctx context.Context, changeSet []string) (model.Verdict, error) {
	work, locatorSkips := o.collect(changeSet)
	o.log(LogLevelInfo, "collected targets=%d locator_skips=%d from paths=%d", len(work), len(locatorSkips), len(changeSet))

	results, err := o.execute(ctx, work)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrInterrupted, err)
	}

	v := aggregate.Aggregate(append(results, locatorSkips...), aggregate.Options{
		FailOnNoTests: o.cfg.Policy.FailOnNoTests,
		ExcerptLines:  o.cfg.Run.ExcerptLines,
	})
	o.log(LogLevelInfo, "verdict overall=%s passed=%d failed=%d skipped=%d",
		v.Overall, len(v.Passed), len(v.Failed), len(v.Skipped))
	return v, nil
}

// collect classifies every path and unions the located targets into one
// deduplicated work list, keyed by target path. Production files with no
// related tests become skip results so low coverage stays visible.
func (o *Orchestrator) collect(changeSet []string) ([]model.TestTarget, []model.ExecutionResult) {
	var work []model.TestTarget
	index := make(map[string]int)
	var skips []model.ExecutionResult
	skipSeen := make(map[string]bool)

	for _, path := range changeSet {
		cp, ok := classify.Classify(path)
		if !ok {
			o.log(LogLevelDebug, "excluded path=%s", path)
			continue
		}
		if !o.cfg.EcosystemEnabled(cp.Ecosystem) {
			o.log(LogLevelDebug, "ecosystem disabled path=%s ecosystem=%s", path, cp.Ecosystem)
			continue
		}

		targets := o.locate(cp)
		if len(targets) == 0 {
			if !skipSeen[path] {
				skipSeen[path] = true
				skips = append(skips, model.ExecutionResult{
					Target:     model.TestTarget{Path: path, Ecosystem: cp.Ecosystem},
					Outcome:    model.OutcomeSkipped,
					SkipReason: model.SkipNoRelatedTests,
				})
			}
			continue
		}

		for _, tgt := range targets {
			if i, ok := index[tgt.Path]; ok {
				work[i].Sources = mergeSources(work[i].Sources, tgt.Sources)
				continue
			}
			index[tgt.Path] = len(work)
			work = append(work, tgt)
		}
	}
	return work, skips
}

// execute runs every target through a bounded pool, fanning results into a
// single collector. Targets are independent; only cancellation aborts the
// run as a whole.
func (o *Orchestrator) execute(ctx context.Context, work []model.TestTarget) ([]model.ExecutionResult, error) {
	if len(work) == 0 {
		return nil, ctx.Err()
	}

	workers := o.cfg.Run.Workers
	if workers <= 0 {
		workers = 4
	}

	resCh := make(chan model.ExecutionResult)
	done := make(chan struct{})
	results := make([]model.ExecutionResult, 0, len(work))
	go func() {
		defer close(done)
		for res := range resCh {
			results = append(results, res)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, tgt := range work {
		tgt := tgt
		g.Go(func() error {
			o.log(LogLevelDebug, "running target=%s ecosystem=%s", tgt.Path, tgt.Ecosystem)
			res, err := o.runner.Run(gctx, tgt)
			if err != nil {
				return err
			}
			select {
			case resCh <- res:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(resCh)
	<-done
	if err != nil {
		return nil, err
	}
	return results, nil
}

func mergeSources(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			a = append(a, s)
		}
	}
	return a
}

func (o *Orchestrator) log(level LogLevel, format string, args ...any) {
	if o.logger == nil || level < o.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	o.logger.Printf("%s retest: %s", levelStr, fmt.Sprintf(format, args...))
}
