package domain

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// UnitDecimals is the number of fractional digits of the display unit (1 unit = 10^18 wei).
const UnitDecimals = 18

// ParseAmount converts a human-entered unit amount ("3.2") into wei.
// Only the boundary deals with decimal text; the core only ever sees integers.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", s)
	}

	scaled := d.Shift(UnitDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", s, UnitDecimals)
	}

	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", s)
	}
	return v, nil
}

// MustParseAmount panics on malformed input. Used for fixed seed data only.
func MustParseAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatAmount renders wei as a unit string with trailing zeros trimmed ("3.2", "0").
func FormatAmount(v *uint256.Int) string {
	if v == nil || v.IsZero() {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -UnitDecimals).String()
}

// ParseWei parses a raw integer amount as sent by the ledger (decimal or 0x-hex).
func ParseWei(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("wei amount is empty")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(strings.ToLower(s[2:]), "0")
		if digits == "" {
			digits = "0"
		}
		return uint256.FromHex("0x" + digits)
	}
	return uint256.FromDecimal(s)
}
