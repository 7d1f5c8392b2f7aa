// Package runner executes test targets under each ecosystem's native test
// tool as a synchronous subprocess with a per-target timeout.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/msageha/retest/internal/model"
)

// execFunc runs a command and returns its combined output. Injectable so
// tests can run without the real test tools installed.
type execFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Runner dispatches targets to per-ecosystem command templates.
type Runner struct {
	timeout  time.Duration
	lookPath func(string) (string, error)
	execute  execFunc
}

// New creates a Runner with the configured per-target timeout.
func New(cfg model.Config) *Runner {
	timeout := cfg.Run.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{
		timeout:  timeout,
		lookPath: exec.LookPath,
		execute:  runCommand,
	}
}

// invocation is a fully resolved subprocess call for one target.
type invocation struct {
	dir  string
	name string
	args []string
}

// Run executes the target's test tool and maps the subprocess outcome to an
// ExecutionResult. The returned error is non-nil only when ctx was
// cancelled; every per-target condition is encoded in the result instead.
func (r *Runner) Run(ctx context.Context, target model.TestTarget) (model.ExecutionResult, error) {
	res := model.ExecutionResult{Target: target}

	inv, skipReason, err := r.resolve(target)
	if err != nil {
		res.Outcome = model.OutcomeSkipped
		res.SkipReason = skipReason
		res.Output = err.Error()
		return res, nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, runErr := r.execute(tctx, inv.dir, inv.name, inv.args...)
	res.Duration = time.Since(start)
	res.Output = string(out)

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	switch {
	case tctx.Err() == context.DeadlineExceeded:
		// A hung test is a failure, not a skip.
		res.Outcome = model.OutcomeFailed
		res.Output += fmt.Sprintf("\n(terminated: timeout after %s)", r.timeout)
	case runErr == nil:
		res.Outcome = model.OutcomePassed
	case isExitError(runErr):
		res.Outcome = model.OutcomeFailed
	default:
		// The subprocess never launched; not a test regression.
		res.Outcome = model.OutcomeSkipped
		res.SkipReason = model.SkipExecutionError
		res.Output = runErr.Error()
	}
	return res, nil
}

// resolveFunc builds the subprocess invocation for a target after probing
// tool and project-manifest availability.
type resolveFunc func(r *Runner, target model.TestTarget) (invocation, string, error)

// commandTable dispatches ecosystems to their command templates.
var commandTable = map[model.Ecosystem]resolveFunc{
	model.EcosystemPython:     resolvePython,
	model.EcosystemJavaScript: resolveJavaScript,
	model.EcosystemGo:         resolveGo,
	model.EcosystemRust:       resolveRust,
}

func (r *Runner) resolve(target model.TestTarget) (invocation, string, error) {
	fn, ok := commandTable[target.Ecosystem]
	if !ok {
		return invocation{}, model.SkipExecutionError, fmt.Errorf("no runner for ecosystem %q", target.Ecosystem)
	}
	return fn(r, target)
}

func resolvePython(r *Runner, target model.TestTarget) (invocation, string, error) {
	if _, err := r.lookPath("pytest"); err != nil {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("pytest not found in PATH")
	}
	return invocation{
		name: "pytest",
		args: []string{"-v", "--tb=short", target.Path},
	}, "", nil
}

func resolveJavaScript(r *Runner, target model.TestTarget) (invocation, string, error) {
	pkgDir, ok := findUp(filepath.Dir(target.Path), "package.json")
	if !ok {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("no package.json above %s", target.Path)
	}
	if _, err := r.lookPath("npx"); err != nil {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("npx not found in PATH")
	}
	abs, err := filepath.Abs(target.Path)
	if err != nil {
		abs = target.Path
	}
	return invocation{
		dir:  pkgDir,
		name: "npx",
		args: []string{"--no-install", "jest", "--findRelatedTests", abs, "--passWithNoTests"},
	}, "", nil
}

func resolveGo(r *Runner, target model.TestTarget) (invocation, string, error) {
	if _, err := r.lookPath("go"); err != nil {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("go not found in PATH")
	}
	// go test operates on packages; scope to the directory holding the target.
	return invocation{
		dir:  filepath.Dir(target.Path),
		name: "go",
		args: []string{"test", "-v", "."},
	}, "", nil
}

func resolveRust(r *Runner, target model.TestTarget) (invocation, string, error) {
	crateDir, ok := findUp(filepath.Dir(target.Path), "Cargo.toml")
	if !ok {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("no Cargo.toml above %s", target.Path)
	}
	if _, err := r.lookPath("cargo"); err != nil {
		return invocation{}, model.SkipToolUnavailable, fmt.Errorf("cargo not found in PATH")
	}
	return invocation{
		dir:  crateDir,
		name: "cargo",
		args: []string{"test"},
	}, "", nil
}

// findUp walks from dir toward the filesystem root looking for name.
func findUp(dir, name string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.Mode().IsRegular() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	return cmd.CombinedOutput()
}
