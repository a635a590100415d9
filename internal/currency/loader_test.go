package currency

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeTable(t, `
currencies:
  - code: USD
    symbol: "$"
    rate: 1.0
  - code: GTQ
    symbol: "Q"
    rate: 8.0
countries:
  GT: GTQ
`)

	tbl, err := LoadTable(path, validator.New())
	if err != nil {
		t.Fatal(err)
	}

	c := tbl.Resolve("", "GT")
	if c.Code != "GTQ" || !c.Rate.Equal(decimal.NewFromFloat(8.0)) {
		t.Errorf("got %+v", c)
	}
}

func TestLoadTableRejectsNonPositiveRate(t *testing.T) {
	path := writeTable(t, `
currencies:
  - code: USD
    symbol: "$"
    rate: 0
`)

	if _, err := LoadTable(path, validator.New()); err == nil {
		t.Fatal("want error for zero rate")
	}
}

func TestLoadTableRejectsDanglingCountry(t *testing.T) {
	path := writeTable(t, `
currencies:
  - code: USD
    symbol: "$"
    rate: 1.0
countries:
  GT: GTQ
`)

	if _, err := LoadTable(path, validator.New()); err == nil {
		t.Fatal("want error for country referencing unknown currency")
	}
}

func TestLoadTableRejectsEmpty(t *testing.T) {
	path := writeTable(t, "currencies: []\n")

	if _, err := LoadTable(path, validator.New()); err == nil {
		t.Fatal("want validation error for empty currency list")
	}
}
