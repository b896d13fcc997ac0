// Package currency converts host amounts to and from Chargebee's integer
// minor units and computes the payable cost including gateway surcharge.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal currencies are charged in whole units by Chargebee.
var zeroDecimal = map[string]struct{}{
	"CLP": {}, "JPY": {}, "KRW": {}, "VND": {}, "XAF": {}, "XOF": {},
}

// supported holds zero- and two-decimal currencies only. Three-decimal
// currencies (BHD, KWD, OMR...) are not accepted.
var supported = map[string]struct{}{}

func init() {
	for _, code := range []string{
		"AED", "AFN", "ALL", "AMD", "ANG", "AOA", "ARS", "AUD", "AWG", "AZN",
		"BAM", "BBD", "BDT", "BGN", "BIF", "BMD", "BND", "BOB", "BRL", "BSD",
		"BWP", "BYN", "BZD", "CAD", "CDF", "CHF", "CLP", "CNY", "COP", "CRC",
		"CVE", "CZK", "DJF", "DKK", "DOP", "DZD", "EEK", "EGP", "ETB", "EUR",
		"FJD", "FKP", "GBP", "GEL", "GHS", "GIP", "GMD", "GNF", "GTQ", "GYD",
		"HKD", "HNL", "HRK", "HTG", "HUF", "IDR", "ILS", "INR", "ISK", "JMD",
		"JPY", "KES", "KGS", "KHR", "KMF", "KRW", "KYD", "KZT", "LAK", "LBP",
		"LKR", "LRD", "LSL", "LTL", "LVL", "MAD", "MDL", "MGA", "MKD", "MMK",
		"MNT", "MOP", "MUR", "MVR", "MWK", "MXN", "MYR", "MZN", "NAD", "NGN",
		"NIO", "NOK", "NPR", "NZD", "PAB", "PEN", "PGK", "PHP", "PKR", "PLN",
		"PYG", "QAR", "RON", "RSD", "RUB", "RWF", "SAR", "SBD", "SCR", "SEK",
		"SGD", "SHP", "SLL", "SOS", "SRD", "STD", "SZL", "THB", "TJS", "TOP",
		"TRY", "TTD", "TWD", "TZS", "UAH", "UGX", "USD", "UYU", "UZS", "VND",
		"VUV", "WST", "XAF", "XCD", "XOF", "XPF", "YER", "ZAR", "ZMW",
	} {
		supported[code] = struct{}{}
	}
}

var hundred = decimal.NewFromInt(100)

// Supported returns the currency codes Chargebee accepts, sorted.
func Supported() []string {
	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func IsSupported(code string) bool {
	_, ok := supported[normalize(code)]
	return ok
}

func IsZeroDecimal(code string) bool {
	_, ok := zeroDecimal[normalize(code)]
	return ok
}

// Digits is the number of fractional digits a host amount carries in code.
func Digits(code string) int32 {
	if IsZeroDecimal(code) {
		return 0
	}
	return 2
}

// ToMinorUnits converts a host amount to the integer Chargebee charges.
// Amounts with more precision than the currency allows are rejected rather
// than silently rounded.
func ToMinorUnits(amount decimal.Decimal, code string) (int64, error) {
	if !IsSupported(code) {
		return 0, fmt.Errorf("unsupported currency %q", code)
	}
	units := amount
	if !IsZeroDecimal(code) {
		units = amount.Mul(hundred)
	}
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", amount.String(), Digits(code), normalize(code))
	}
	return units.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(units int64, code string) decimal.Decimal {
	d := decimal.NewFromInt(units)
	if IsZeroDecimal(code) {
		return d
	}
	return d.Div(hundred)
}

// RoundedCost applies a percentage surcharge and rounds half-up to the
// currency precision.
func RoundedCost(amount decimal.Decimal, code string, surchargePercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(surchargePercent.Div(hundred))
	return amount.Mul(factor).Round(Digits(code))
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
