// Package money provides amount-string parsing and ISO-4217 currency
// validation for the ingestion pipeline. Amounts are kept as
// shopspring/decimal values so no precision is lost between a source
// document and the canonical table.
package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// currencySymbols are stripped before numeric parsing. Order matters: "R$"
// must be removed before "$".
var currencySymbols = []string{"R$", "$", "€", "£", "¥", "₹", "USD", "EUR", "GBP", "BRL"}

// ParseAmount parses a monetary string into a decimal. It tolerates
// currency symbols, thousands separators, surrounding whitespace and
// accounting-style parenthetical negatives ("(1,234.56)" == -1234.56).
// The boolean is false when the string is not numeric at all.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "+" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// IsNumeric reports whether s parses as an amount under ParseAmount's rules.
func IsNumeric(s string) bool {
	_, ok := ParseAmount(s)
	return ok
}

// NormalizeCurrency validates a declared currency code against the ISO-4217
// registry. Recognized codes come back upper-cased; unrecognized codes are
// returned trimmed but otherwise untouched so the declaration is preserved
// in metadata.
func NormalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if c := gomoney.GetCurrency(strings.ToUpper(code)); c != nil {
		return c.Code
	}
	return code
}
