// Package model defines the data structures for retest's classification,
// execution, and verdict reporting.
package model

import (
	"fmt"
	"time"
)

// Ecosystem is a language/tool family inferred from a file's extension.
type Ecosystem string

const (
	EcosystemPython     Ecosystem = "python"
	EcosystemJavaScript Ecosystem = "javascript"
	EcosystemGo         Ecosystem = "go"
	EcosystemRust       Ecosystem = "rust"
	EcosystemNone       Ecosystem = "none"
)

// Role distinguishes test files from production source within an ecosystem.
type Role string

const (
	RoleTestFile       Role = "test_file"
	RoleProductionFile Role = "production_file"
)

// Outcome is the per-target execution result category.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Skip reasons attached to OutcomeSkipped results.
const (
	SkipNoRelatedTests  = "no related tests"
	SkipToolUnavailable = "tool unavailable"
	SkipExecutionError  = "execution error"
)

// Overall is the aggregated verdict category for one invocation.
type Overall string

const (
	OverallAllPassed    Overall = "all_passed"
	OverallSomeFailed   Overall = "some_failed"
	OverallNothingToRun Overall = "nothing_to_run"
)

var knownEcosystems = map[Ecosystem]bool{
	EcosystemPython:     true,
	EcosystemJavaScript: true,
	EcosystemGo:         true,
	EcosystemRust:       true,
}

// IsRunnable reports whether e is a recognized ecosystem with a runner.
func (e Ecosystem) IsRunnable() bool {
	return knownEcosystems[e]
}

// ValidateOutcome rejects outcome values outside the fixed set.
func ValidateOutcome(o Outcome) error {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeSkipped:
		return nil
	}
	return fmt.Errorf("unknown outcome %q", o)
}

// ClassifiedPath is a change-set path with its inferred ecosystem and role.
type ClassifiedPath struct {
	Path      string    `json:"path"`
	Ecosystem Ecosystem `json:"ecosystem"`
	Role      Role      `json:"role"`
}

// TestTarget is a concrete test path selected for execution. Sources lists
// the production files that resolved to it (empty for directly modified
// test files).
type TestTarget struct {
	Path      string    `json:"path"`
	Ecosystem Ecosystem `json:"ecosystem"`
	Sources   []string  `json:"sources,omitempty"`
}

// ExecutionResult captures one runner invocation. Immutable once created.
type ExecutionResult struct {
	Target     TestTarget    `json:"target"`
	Outcome    Outcome       `json:"outcome"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Output     string        `json:"output,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Verdict is the terminal output of one orchestrator invocation.
type Verdict struct {
	Overall Overall           `json:"overall"`
	Passed  []ExecutionResult `json:"passed"`
	Failed  []ExecutionResult `json:"failed"`
	Skipped []ExecutionResult `json:"skipped"`
}

// Blocking reports whether the verdict should block the triggering change.
func (v Verdict) Blocking() bool {
	return v.Overall == OverallSomeFailed
}
