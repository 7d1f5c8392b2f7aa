package locate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/retest/internal/model"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("// test\n"), 0644))
}

func TestLocateTestFileIsItsOwnTarget(t *testing.T) {
	cp := model.ClassifiedPath{
		Path:      "src/test_pay.py",
		Ecosystem: model.EcosystemPython,
		Role:      model.RoleTestFile,
	}
	targets := Locate(cp)
	require.Len(t, targets, 1)
	assert.Equal(t, "src/test_pay.py", targets[0].Path)
	assert.Empty(t, targets[0].Sources)
}

func TestLocatePythonConventions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "pay.py")
	writeFile(t, src)
	writeFile(t, filepath.Join(dir, "src", "test_pay.py"))
	writeFile(t, filepath.Join(dir, "src", "tests", "pay_test.py"))

	cp := model.ClassifiedPath{Path: src, Ecosystem: model.EcosystemPython, Role: model.RoleProductionFile}
	targets := Locate(cp)

	// All existing candidates are returned, not just the first match.
	require.Len(t, targets, 2)
	assert.Equal(t, filepath.Join(dir, "src", "test_pay.py"), targets[0].Path)
	assert.Equal(t, filepath.Join(dir, "src", "tests", "pay_test.py"), targets[1].Path)
	for _, tgt := range targets {
		assert.Equal(t, []string{src}, tgt.Sources)
	}
}

func TestLocateJavaScriptKeepsSourceExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "api.ts")
	writeFile(t, src)
	writeFile(t, filepath.Join(dir, "api.test.ts"))
	writeFile(t, filepath.Join(dir, "__tests__", "api.spec.ts"))

	cp := model.ClassifiedPath{Path: src, Ecosystem: model.EcosystemJavaScript, Role: model.RoleProductionFile}
	targets := Locate(cp)
	require.Len(t, targets, 2)
	assert.Equal(t, filepath.Join(dir, "api.test.ts"), targets[0].Path)
	assert.Equal(t, filepath.Join(dir, "__tests__", "api.spec.ts"), targets[1].Path)
}

func TestLocateGoColocated(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "queue.go")
	writeFile(t, src)
	writeFile(t, filepath.Join(dir, "queue_test.go"))

	cp := model.ClassifiedPath{Path: src, Ecosystem: model.EcosystemGo, Role: model.RoleProductionFile}
	targets := Locate(cp)
	require.Len(t, targets, 1)
	assert.Equal(t, filepath.Join(dir, "queue_test.go"), targets[0].Path)
}

func TestLocateNoCandidateExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "orphan.py")
	writeFile(t, src)

	cp := model.ClassifiedPath{Path: src, Ecosystem: model.EcosystemPython, Role: model.RoleProductionFile}
	assert.Empty(t, Locate(cp))
}

func TestLocateIgnoresDirectoriesNamedLikeTests(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pay.py")
	writeFile(t, src)
	// A directory matching the candidate name must not count as a test file.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "test_pay.py"), 0755))

	cp := model.ClassifiedPath{Path: src, Ecosystem: model.EcosystemPython, Role: model.RoleProductionFile}
	assert.Empty(t, Locate(cp))
}

func TestCandidatesOrder(t *testing.T) {
	cp := model.ClassifiedPath{Path: "src/pay.py", Ecosystem: model.EcosystemPython, Role: model.RoleProductionFile}
	want := []string{
		filepath.Join("src", "test_pay.py"),
		filepath.Join("src", "pay_test.py"),
		filepath.Join("src", "tests", "test_pay.py"),
		filepath.Join("src", "tests", "pay_test.py"),
	}
	assert.Equal(t, want, Candidates(cp))
}

func TestCandidatesRust(t *testing.T) {
	cp := model.ClassifiedPath{Path: "src/parser.rs", Ecosystem: model.EcosystemRust, Role: model.RoleProductionFile}
	want := []string{
		filepath.Join("src", "parser_test.rs"),
		filepath.Join("src", "tests", "parser.rs"),
	}
	assert.Equal(t, want, Candidates(cp))
}
