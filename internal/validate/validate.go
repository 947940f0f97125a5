// Package validate holds pure input validators used by the flow engine.
// Every function is total: malformed input yields false, never an error.
package validate

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

// amountPattern rejects redundant leading zeros and caps the fraction at
// 18 digits, the highest decimal count of tokens we trade.
var amountPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)(\.[0-9]{1,18})?$`)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// IsAddress reports whether s is a well-formed 20-byte hex address,
// either all-lowercase or with a valid EIP-55 checksum.
func IsAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}

	hexPart := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hexPart == strings.ToLower(hexPart) {
		return true
	}

	// Mixed case must match the checksummed rendering exactly.
	return common.HexToAddress(s).Hex() == s
}

// IsAmount reports whether s is a positive decimal amount with no
// redundant leading zero and at most 18 fractional digits.
func IsAmount(s string) bool {
	if !amountPattern.MatchString(s) {
		return false
	}

	// The pattern admits zero values like "0" and "0.000"; the flows
	// only ever accept strictly positive amounts.
	return strings.ContainsFunc(s, func(r rune) bool { return r >= '1' && r <= '9' })
}

// IsPrivateKey reports whether s is exactly 64 hexadecimal characters
// after stripping an optional 0x prefix.
func IsPrivateKey(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return len(s) == 64 && hexPattern.MatchString(s)
}

// IsSlippagePercent reports whether v is a usable slippage tolerance.
func IsSlippagePercent(v float64) bool {
	return v > 0 && v <= 50
}

// IsGasPriority reports whether s names a known gas tier.
func IsGasPriority(s string) bool {
	switch domain.GasPriority(s) {
	case domain.GasPriorityLow, domain.GasPriorityMedium, domain.GasPriorityHigh:
		return true
	default:
		return false
	}
}
