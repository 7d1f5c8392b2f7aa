package classify

import (
	"testing"

	"github.com/msageha/retest/internal/model"
)

func TestClassifyEcosystems(t *testing.T) {
	tests := []struct {
		path string
		eco  model.Ecosystem
	}{
		{"src/pay.py", model.EcosystemPython},
		{"web/app.js", model.EcosystemJavaScript},
		{"web/App.jsx", model.EcosystemJavaScript},
		{"web/api.ts", model.EcosystemJavaScript},
		{"web/View.tsx", model.EcosystemJavaScript},
		{"internal/queue.go", model.EcosystemGo},
		{"src/lib.rs", model.EcosystemRust},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cp, ok := Classify(tt.path)
			if !ok {
				t.Fatalf("Classify(%q) excluded, want ecosystem %q", tt.path, tt.eco)
			}
			if cp.Ecosystem != tt.eco {
				t.Errorf("Classify(%q).Ecosystem = %q, want %q", tt.path, cp.Ecosystem, tt.eco)
			}
		})
	}
}

func TestClassifyExcluded(t *testing.T) {
	for _, path := range []string{
		"README.md",
		"config.yaml",
		"Makefile",
		"notes.txt",
		"image.png",
		"noextension",
	} {
		t.Run(path, func(t *testing.T) {
			if _, ok := Classify(path); ok {
				t.Errorf("Classify(%q) recognized, want excluded", path)
			}
		})
	}
}

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		path string
		role model.Role
	}{
		{"src/test_pay.py", model.RoleTestFile},
		{"src/pay_test.py", model.RoleTestFile},
		{"src/pay.py", model.RoleProductionFile},
		{"src/testutil.py", model.RoleProductionFile}, // test_ prefix requires underscore
		{"web/app.test.ts", model.RoleTestFile},
		{"web/app.spec.jsx", model.RoleTestFile},
		{"web/app.ts", model.RoleProductionFile},
		{"internal/queue_test.go", model.RoleTestFile},
		{"internal/queue.go", model.RoleProductionFile},
		{"src/parser_test.rs", model.RoleTestFile},
		{"tests/integration.rs", model.RoleTestFile},
		{"crate/tests/api/helpers.rs", model.RoleTestFile},
		{"src/parser.rs", model.RoleProductionFile},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cp, ok := Classify(tt.path)
			if !ok {
				t.Fatalf("Classify(%q) excluded", tt.path)
			}
			if cp.Role != tt.role {
				t.Errorf("Classify(%q).Role = %q, want %q", tt.path, cp.Role, tt.role)
			}
		})
	}
}

func TestClassifyMatchesBasenameNotPath(t *testing.T) {
	// A directory named like a test file must not mark its contents.
	cp, ok := Classify("test_helpers.py/module.go")
	if !ok {
		t.Fatal("excluded")
	}
	if cp.Ecosystem != model.EcosystemGo || cp.Role != model.RoleProductionFile {
		t.Errorf("got %+v, want go production file", cp)
	}
}
