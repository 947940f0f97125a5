// Package units converts between human decimal amounts and base-unit
// integers. All arithmetic is exact big.Int; floating point would lose
// precision above 2^53 and token balances routinely exceed that.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// ErrMalformedAmount indicates a decimal string that cannot be converted
// exactly at the token's decimal count.
var ErrMalformedAmount = errors.New("malformed decimal amount")

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a decimal string into base units for a token with
// the given decimal count. It fails when the string is not a plain
// decimal or carries more fractional digits than decimals allows.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrMalformedAmount, decimals)
	}
	if !decimalPattern.MatchString(amount) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}

	intPart, fracPart, _ := strings.Cut(amount, ".")
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrMalformedAmount, amount, decimals)
	}

	combined := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}

	value, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}

	return value, nil
}

// FromBaseUnits renders a base-unit value as a canonical decimal string:
// no trailing fractional zeros, no leading zeros, "0" for zero.
func FromBaseUnits(value *big.Int, decimals int) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	if decimals <= 0 {
		return value.String()
	}

	s := value.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}

	return intPart + "." + fracPart
}

// MustParse converts a base-10 integer string into a big.Int, returning
// zero when the string is not a valid integer. Flow data stores balances
// as strings produced by big.Int.String, so failures indicate corrupted
// session state rather than user input.
func MustParse(s string) *big.Int {
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}
