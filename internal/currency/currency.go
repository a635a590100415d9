// Package currency resolves order currencies and converts revenue
// totals to USD using a configured exchange table.
package currency

import (
	"github.com/shopspring/decimal"
)

// UnknownCode marks revenue whose currency could not be resolved.
// Unknown amounts convert at rate 1, matching how the dashboard treats
// unclassified revenue.
const UnknownCode = "Unknown"

// Currency is one entry of the exchange table.
type Currency struct {
	Code   string
	Symbol string
	Rate   decimal.Decimal
}

// Table holds the exchange rates keyed by currency code plus the
// country fallback map for orders that carry no currency of their own.
type Table struct {
	byCode    map[string]Currency
	byCountry map[string]Currency
}

// NewTable builds a table from a currency list and a country to
// currency-code map. Countries referencing unknown codes are skipped;
// the loader validates them before getting here.
func NewTable(currencies []Currency, countries map[string]string) *Table {
	t := &Table{
		byCode:    make(map[string]Currency, len(currencies)),
		byCountry: make(map[string]Currency, len(countries)),
	}
	for _, c := range currencies {
		t.byCode[c.Code] = c
	}
	for country, code := range countries {
		if c, ok := t.byCode[code]; ok {
			t.byCountry[country] = c
		}
	}
	return t
}

// Resolve picks the currency for an order: the order's own code when
// present, otherwise the account country's currency, otherwise
// Unknown.
func (t *Table) Resolve(orderCode, country string) Currency {
	if orderCode != "" {
		if c, ok := t.byCode[orderCode]; ok {
			return c
		}
		// Known code missing from the table still identifies the
		// currency, it just cannot be converted.
		return Currency{Code: orderCode, Symbol: orderCode, Rate: decimal.NewFromInt(1)}
	}
	if country != "" {
		if c, ok := t.byCountry[country]; ok {
			return c
		}
	}
	return Currency{Code: UnknownCode, Symbol: UnknownCode, Rate: decimal.NewFromInt(1)}
}

// ToUSD converts an amount of the given currency to USD, rounded to 2
// decimal places. A zero or missing rate converts at 1:1 so revenue is
// never silently dropped.
func (t *Table) ToUSD(amount decimal.Decimal, c Currency) decimal.Decimal {
	rate := c.Rate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return amount.DivRound(rate, 2)
}

// Rate returns the exchange rate used for a currency code, for
// reporting alongside converted amounts.
func (t *Table) Rate(code string) decimal.Decimal {
	if c, ok := t.byCode[code]; ok && !c.Rate.IsZero() {
		return c.Rate
	}
	return decimal.NewFromInt(1)
}
