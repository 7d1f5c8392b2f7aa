// Package classify infers a changed path's ecosystem and role.
// Classification is a pure function of the path string; no filesystem access.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/msageha/retest/internal/model"
)

// extensionTable maps extensions to ecosystems. Order is fixed so that
// classification stays deterministic if overlapping entries are ever added.
var extensionTable = []struct {
	ext string
	eco model.Ecosystem
}{
	{".py", model.EcosystemPython},
	{".js", model.EcosystemJavaScript},
	{".jsx", model.EcosystemJavaScript},
	{".ts", model.EcosystemJavaScript},
	{".tsx", model.EcosystemJavaScript},
	{".go", model.EcosystemGo},
	{".rs", model.EcosystemRust},
}

// Test-filename predicates, matched against the basename only.
var testFilePatterns = map[model.Ecosystem]*regexp.Regexp{
	model.EcosystemPython:     regexp.MustCompile(`^test_.*\.py$|^.*_test\.py$`),
	model.EcosystemJavaScript: regexp.MustCompile(`^.*\.(test|spec)\.(js|jsx|ts|tsx)$`),
	model.EcosystemGo:         regexp.MustCompile(`^.*_test\.go$`),
	model.EcosystemRust:       regexp.MustCompile(`^.*_test\.rs$`),
}

// Classify determines the ecosystem and role for path. The second return
// value is false for unrecognized extensions; such paths are excluded from
// all downstream processing.
func Classify(path string) (model.ClassifiedPath, bool) {
	eco := ecosystemFor(path)
	if eco == model.EcosystemNone {
		return model.ClassifiedPath{}, false
	}

	cp := model.ClassifiedPath{
		Path:      path,
		Ecosystem: eco,
		Role:      model.RoleProductionFile,
	}
	if isTestFile(path, eco) {
		cp.Role = model.RoleTestFile
	}
	return cp, true
}

func ecosystemFor(path string) model.Ecosystem {
	ext := strings.ToLower(filepath.Ext(path))
	for _, entry := range extensionTable {
		if entry.ext == ext {
			return entry.eco
		}
	}
	return model.EcosystemNone
}

func isTestFile(path string, eco model.Ecosystem) bool {
	base := filepath.Base(path)
	if re, ok := testFilePatterns[eco]; ok && re.MatchString(base) {
		return true
	}
	// Cargo integration tests live under a tests/ directory and carry no
	// naming marker of their own.
	if eco == model.EcosystemRust && underTestsDir(path) {
		return true
	}
	return false
}

func underTestsDir(path string) bool {
	dir := filepath.Dir(path)
	for {
		if filepath.Base(dir) == "tests" {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
