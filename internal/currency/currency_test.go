package currency

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testTable() *Table {
	return NewTable(
		[]Currency{
			{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1)},
			{Code: "GTQ", Symbol: "Q", Rate: decimal.NewFromFloat(8.0)},
			{Code: "HNL", Symbol: "L", Rate: decimal.NewFromFloat(24.2)},
		},
		map[string]string{
			"GT": "GTQ",
			"HN": "HNL",
			"XX": "ZZZ", // unknown code, dropped by NewTable
		},
	)
}

func TestResolveOrderCodeWins(t *testing.T) {
	tbl := testTable()

	c := tbl.Resolve("HNL", "GT")
	if c.Code != "HNL" {
		t.Errorf("got %s, want the order's own currency over the country fallback", c.Code)
	}
}

func TestResolveUntabledCode(t *testing.T) {
	tbl := testTable()

	c := tbl.Resolve("MXN", "")
	if c.Code != "MXN" || !c.Rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("got %+v, want untabled code kept with rate 1", c)
	}
}

func TestResolveCountryFallback(t *testing.T) {
	tbl := testTable()

	c := tbl.Resolve("", "GT")
	if c.Code != "GTQ" {
		t.Errorf("got %s, want country fallback", c.Code)
	}
}

func TestResolveUnknown(t *testing.T) {
	tbl := testTable()

	for _, country := range []string{"", "BR", "XX"} {
		c := tbl.Resolve("", country)
		if c.Code != UnknownCode {
			t.Errorf("country %q: got %s, want %s", country, c.Code, UnknownCode)
		}
		if !c.Rate.Equal(decimal.NewFromInt(1)) {
			t.Errorf("country %q: unknown currency must convert 1:1", country)
		}
	}
}

func TestToUSDRounding(t *testing.T) {
	tbl := testTable()
	gtq := tbl.Resolve("GTQ", "")

	got := tbl.ToUSD(decimal.NewFromFloat(100.0), gtq)
	if !got.Equal(decimal.NewFromFloat(12.50)) {
		t.Errorf("100 GTQ = %s USD, want 12.50", got)
	}

	// 3 decimal places in the quotient must round to 2.
	got = tbl.ToUSD(decimal.NewFromFloat(100.10), gtq)
	if !got.Equal(decimal.NewFromFloat(12.51)) {
		t.Errorf("100.10 GTQ = %s USD, want 12.51", got)
	}
}

func TestToUSDZeroRateGuard(t *testing.T) {
	tbl := testTable()
	broken := Currency{Code: "VES", Symbol: "Bs", Rate: decimal.Zero}

	got := tbl.ToUSD(decimal.NewFromFloat(42.00), broken)
	if !got.Equal(decimal.NewFromFloat(42.00)) {
		t.Errorf("got %s, want zero rate to pass amounts through at 1:1", got)
	}
}

func TestRate(t *testing.T) {
	tbl := testTable()

	if got := tbl.Rate("GTQ"); !got.Equal(decimal.NewFromFloat(8.0)) {
		t.Errorf("GTQ rate = %s", got)
	}
	if got := tbl.Rate("ZZZ"); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("missing code rate = %s, want 1", got)
	}
}
