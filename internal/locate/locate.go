// Package locate derives candidate test paths for production sources using
// each ecosystem's naming conventions and filters them by existence.
package locate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/msageha/retest/internal/model"
)

// Locate resolves a classified path to the set of existing test targets.
// A test file is its own target; a production file expands to every existing
// candidate under its ecosystem's conventions. An empty result for a
// production file means "no related tests found" and is not an error.
func Locate(cp model.ClassifiedPath) []model.TestTarget {
	if cp.Role == model.RoleTestFile {
		return []model.TestTarget{{Path: cp.Path, Ecosystem: cp.Ecosystem}}
	}

	var targets []model.TestTarget
	seen := make(map[string]bool)
	for _, candidate := range Candidates(cp) {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		if !regularFileExists(candidate) {
			continue
		}
		targets = append(targets, model.TestTarget{
			Path:      candidate,
			Ecosystem: cp.Ecosystem,
			Sources:   []string{cp.Path},
		})
	}
	return targets
}

// Candidates returns the ordered conventional test paths for a production
// file. Exported for the candidate-order contract; no existence checks.
func Candidates(cp model.ClassifiedPath) []string {
	dir := filepath.Dir(cp.Path)
	base := filepath.Base(cp.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	switch cp.Ecosystem {
	case model.EcosystemPython:
		return []string{
			filepath.Join(dir, fmt.Sprintf("test_%s.py", stem)),
			filepath.Join(dir, fmt.Sprintf("%s_test.py", stem)),
			filepath.Join(dir, "tests", fmt.Sprintf("test_%s.py", stem)),
			filepath.Join(dir, "tests", fmt.Sprintf("%s_test.py", stem)),
		}
	case model.EcosystemJavaScript:
		e := strings.TrimPrefix(ext, ".")
		return []string{
			filepath.Join(dir, fmt.Sprintf("%s.test.%s", stem, e)),
			filepath.Join(dir, fmt.Sprintf("%s.spec.%s", stem, e)),
			filepath.Join(dir, "__tests__", fmt.Sprintf("%s.test.%s", stem, e)),
			filepath.Join(dir, "__tests__", fmt.Sprintf("%s.spec.%s", stem, e)),
		}
	case model.EcosystemGo:
		return []string{
			filepath.Join(dir, fmt.Sprintf("%s_test.go", stem)),
		}
	case model.EcosystemRust:
		return []string{
			filepath.Join(dir, fmt.Sprintf("%s_test.rs", stem)),
			filepath.Join(dir, "tests", fmt.Sprintf("%s.rs", stem)),
		}
	}
	return nil
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
