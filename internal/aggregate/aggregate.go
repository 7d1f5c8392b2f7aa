// Package aggregate folds execution results into a single verdict and
// renders the human-readable run summary.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/msageha/retest/internal/model"
)

// Options adjust verdict computation and summary rendering.
type Options struct {
	// FailOnNoTests makes locator misses block the overall verdict.
	FailOnNoTests bool
	// ExcerptLines bounds the failure output excerpt in the summary.
	ExcerptLines int
}

// Aggregate partitions results by outcome and computes the overall verdict.
// Results are deduplicated by target path (sources merged) so a target
// reached from several production files is counted exactly once. Output
// ordering is by target path, keeping verdicts deterministic regardless of
// execution order.
func Aggregate(results []model.ExecutionResult, opts Options) model.Verdict {
	deduped := dedupe(results)
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Target.Path < deduped[j].Target.Path
	})

	v := model.Verdict{}
	for _, res := range deduped {
		switch res.Outcome {
		case model.OutcomePassed:
			v.Passed = append(v.Passed, res)
		case model.OutcomeFailed:
			v.Failed = append(v.Failed, res)
		default:
			v.Skipped = append(v.Skipped, res)
		}
	}

	switch {
	case len(v.Failed) > 0:
		v.Overall = model.OverallSomeFailed
	case opts.FailOnNoTests && hasNoTestsSkip(v.Skipped):
		v.Overall = model.OverallSomeFailed
	case len(v.Passed) == 0:
		// Skips alone do not constitute success.
		v.Overall = model.OverallNothingToRun
	default:
		v.Overall = model.OverallAllPassed
	}
	return v
}

func dedupe(results []model.ExecutionResult) []model.ExecutionResult {
	byPath := make(map[string]int)
	var out []model.ExecutionResult
	for _, res := range results {
		if i, ok := byPath[res.Target.Path]; ok {
			out[i].Target.Sources = mergeSources(out[i].Target.Sources, res.Target.Sources)
			continue
		}
		byPath[res.Target.Path] = len(out)
		out = append(out, res)
	}
	return out
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

func hasNoTestsSkip(skipped []model.ExecutionResult) bool {
	for _, res := range skipped {
		if res.SkipReason == model.SkipNoRelatedTests {
			return true
		}
	}
	return false
}

// Summary renders the verdict for humans. Failing targets always appear
// with an excerpt of their captured output so the triggering developer can
// diagnose without re-running manually.
func Summary(v model.Verdict, opts Options) string {
	excerptLines := opts.ExcerptLines
	if excerptLines <= 0 {
		excerptLines = 20
	}

	var b strings.Builder
	fmt.Fprintf(&b, "retest: %s (%d passed, %d failed, %d skipped)\n",
		overallLabel(v.Overall), len(v.Passed), len(v.Failed), len(v.Skipped))

	for _, res := range v.Failed {
		fmt.Fprintf(&b, "\nFAIL %s (%s)%s\n", res.Target.Path, res.Duration.Round(time.Millisecond), sourcesSuffix(res.Target))
		for _, line := range excerpt(res.Output, excerptLines) {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
	}
	for _, res := range v.Skipped {
		fmt.Fprintf(&b, "SKIP %s (%s)%s\n", res.Target.Path, res.SkipReason, sourcesSuffix(res.Target))
	}
	for _, res := range v.Passed {
		fmt.Fprintf(&b, "PASS %s (%s)%s\n", res.Target.Path, res.Duration.Round(time.Millisecond), sourcesSuffix(res.Target))
	}
	return b.String()
}

func overallLabel(o model.Overall) string {
	switch o {
	case model.OverallAllPassed:
		return "all passed"
	case model.OverallSomeFailed:
		return "some failed"
	case model.OverallNothingToRun:
		return "nothing to run"
	}
	return string(o)
}

func sourcesSuffix(t model.TestTarget) string {
	if len(t.Sources) == 0 {
		return ""
	}
	return fmt.Sprintf(" [for %s]", strings.Join(t.Sources, ", "))
}

// excerpt keeps the tail of the output: test tools print their failure
// summary last.
func excerpt(output string, n int) []string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > n {
		kept := lines[len(lines)-n:]
		return append([]string{fmt.Sprintf("... (%d lines truncated)", len(lines)-n)}, kept...)
	}
	return lines
}
