package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCascade(t *testing.T) {
	path := writeRules(t, `
rules:
  - pattern: 'pay\.reach\.tools'
    type: INTERNAL
    processor: Reach
    domain: pay.reach.tools
  - pattern: '\.(com|net|gt)/payment'
    exclude: ["reach."]
    type: EXTERNAL
    processor: Generic Checkout
    domain: generic
`)

	c, err := LoadCascade(path, validator.New())
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("got %d rules, want 2", c.Len())
	}

	got := c.Classify("Pague aqui: https://PAY.REACH.TOOLS/abc")
	if got.Type != TypeInternal || got.Processor != "Reach" {
		t.Errorf("got %+v", got)
	}
}

func TestLoadCascadeRejectsBadType(t *testing.T) {
	path := writeRules(t, `
rules:
  - pattern: 'x'
    type: SIDEWAYS
    processor: P
    domain: d
`)

	if _, err := LoadCascade(path, validator.New()); err == nil {
		t.Fatal("want validation error for unknown rule type")
	}
}

func TestLoadCascadeRejectsBadPattern(t *testing.T) {
	path := writeRules(t, `
rules:
  - pattern: '(?!lookahead)'
    type: EXTERNAL
    processor: P
    domain: d
`)

	if _, err := LoadCascade(path, validator.New()); err == nil {
		t.Fatal("want compile error for unsupported pattern")
	}
}

func TestLoadCascadeRejectsEmptyFile(t *testing.T) {
	path := writeRules(t, "rules: []\n")

	if _, err := LoadCascade(path, validator.New()); err == nil {
		t.Fatal("want validation error for empty rule list")
	}
}
