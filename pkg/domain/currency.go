package domain

import (
	"sort"
	"strings"

	dErrors "efrn/pkg/domain-errors"
)

// Currency is an ISO 4217 code recognized by the orchestrator.
// Invariant: the value is one of the recognized codes, upper-case.
//
// Recognition is independent of whether reference data (FX rates) exists for
// the code; a recognized currency with no rate is a policy fault, not a
// validation failure.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyJPY Currency = "JPY"
	CurrencyINR Currency = "INR"
	CurrencySGD Currency = "SGD"
	CurrencyKES Currency = "KES"
	CurrencyNGN Currency = "NGN"
	CurrencyZAR Currency = "ZAR"
)

var recognizedCurrencies = map[Currency]bool{
	CurrencyUSD: true,
	CurrencyEUR: true,
	CurrencyGBP: true,
	CurrencyCHF: true,
	CurrencyCAD: true,
	CurrencyAUD: true,
	CurrencyJPY: true,
	CurrencyINR: true,
	CurrencySGD: true,
	CurrencyKES: true,
	CurrencyNGN: true,
	CurrencyZAR: true,
}

// ParseCurrency normalizes and validates a currency code from external input.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "currency is required")
	}
	if !recognizedCurrencies[c] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unrecognized currency: "+string(c))
	}
	return c, nil
}

// RecognizedCurrencies returns the supported codes in lexical order.
func RecognizedCurrencies() []Currency {
	out := make([]Currency, 0, len(recognizedCurrencies))
	for c := range recognizedCurrencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Currency) String() string {
	return string(c)
}
