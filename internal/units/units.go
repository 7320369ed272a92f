// Package units converts between user-entered decimal amounts and the
// contract's fixed-point base units. Nothing else in the module performs this
// conversion.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Decimals is the fixed-point precision of both FLOW and PREDICT.
const Decimals = 18

// maxAmountLen bounds the accepted input: 78 integer digits (uint256), a
// point, and the fractional digits.
const maxAmountLen = 78 + 1 + Decimals

// maxUint256 is the largest value a contract amount can hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ParseUnits converts a plain decimal string such as "1.5" into base units
// with the given number of decimals. Signs, exponents, more fractional digits
// than decimals and results above 2^256-1 are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("units: empty amount: %w", domain.ErrInvalidAmount)
	}
	if len(s) > maxAmountLen {
		return nil, fmt.Errorf("units: amount too long (%d chars): %w", len(s), domain.ErrInvalidAmount)
	}
	whole, frac, hasPoint := strings.Cut(s, ".")
	if !allDigits(whole) || (hasPoint && !allDigits(frac)) {
		return nil, fmt.Errorf("units: parse %q: %w", amount, domain.ErrInvalidAmount)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("units: %q has more than %d decimals: %w", amount, decimals, domain.ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("units: parse %q: %w", amount, domain.ErrInvalidAmount)
	}
	v := d.Shift(decimals).BigInt()
	if v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("units: %q exceeds uint256: %w", amount, domain.ErrInvalidAmount)
	}
	return v, nil
}

// allDigits reports whether s is a non-empty run of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// ToBaseUnits is ParseUnits with 18 decimals.
func ToBaseUnits(amount string) (*big.Int, error) {
	return ParseUnits(amount, Decimals)
}

// FromBaseUnits is FormatUnits with 18 decimals.
func FromBaseUnits(v *big.Int) string {
	return FormatUnits(v, Decimals)
}

// ToFloat returns an approximate float of an 18-decimal amount, for the
// off-chain mirror's numeric columns.
func ToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -Decimals).InexactFloat64()
}

// Positive parses amount and requires it to be strictly greater than zero.
func Positive(amount string) (*big.Int, error) {
	v, err := ToBaseUnits(amount)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("units: amount must be > 0: %w", domain.ErrInvalidAmount)
	}
	return v, nil
}
