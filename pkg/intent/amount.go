package intent

import (
	"fmt"
	"math/big"
	"strings"
)

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ParseAmount converts a user-entered decimal string to a fixed-point
// integer with 18 fractional digits. The conversion is pure integer
// arithmetic; amounts used in writes never pass through floating point.
// The result must be strictly positive.
func ParseAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}

	whole := amount
	frac := ""
	if idx := strings.Index(amount, "."); idx >= 0 {
		whole = amount[:idx]
		frac = amount[idx+1:]
		if frac == "" {
			return nil, fmt.Errorf("invalid amount format: %s", amount)
		}
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return nil, fmt.Errorf("amount has more than %d decimal places: %s", TokenDecimals, amount)
	}

	// Only bare digits are allowed in either part. SetString alone would
	// also accept a sign, letting "1.-5" parse to a value the user never
	// typed.
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	wholeInt, _ := new(big.Int).SetString(whole, 10)
	result := new(big.Int).Mul(wholeInt, scale)
	if frac != "" {
		fracInt, _ := new(big.Int).SetString(frac, 10)
		// Right-pad the fractional part to 18 digits.
		pad := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(TokenDecimals-len(frac))), nil)
		result.Add(result, fracInt.Mul(fracInt, pad))
	}

	if result.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0: %s", amount)
	}

	return result, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders a fixed-point integer as a decimal string with the
// given number of fractional digits shown. decimals is the scaling of the
// raw value; places is how many fractional digits to keep in the output.
func FormatAmount(raw *big.Int, decimals, places int) string {
	if raw == nil {
		return "--"
	}
	if decimals == 0 {
		return raw.String()
	}

	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(raw, div, new(big.Int))
	if places <= 0 {
		return quo.String()
	}

	fracStr := fmt.Sprintf("%0*s", decimals, rem.Abs(rem).String())
	if places < len(fracStr) {
		fracStr = fracStr[:places]
	}
	return quo.String() + "." + fracStr
}
