package intent

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the fixed-point convention for on-chain token amounts.
const TokenDecimals = 18

// TokenID identifies one of the two pool tokens.
type TokenID int

const (
	Token0 TokenID = iota
	Token1
)

// String returns the display symbol for a token.
func (t TokenID) String() string {
	if t == Token0 {
		return "TKNA"
	}
	return "TKNB"
}

// ParseTokenID resolves a token symbol to its TokenID.
func ParseTokenID(symbol string) (TokenID, error) {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "TKNA", "TOKEN0", "0":
		return Token0, nil
	case "TKNB", "TOKEN1", "1":
		return Token1, nil
	default:
		return 0, fmt.Errorf("unknown token symbol: %s", symbol)
	}
}

// Kind identifies the user-level action an Intent requests.
type Kind int

const (
	KindSwap Kind = iota
	KindAddLiquidity
	KindFaucet
)

// String returns a human-readable name for the intent kind.
func (k Kind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindAddLiquidity:
		return "add-liquidity"
	case KindFaucet:
		return "faucet"
	default:
		return "unknown"
	}
}

// Intent is a validated user request to be expanded into one or more
// on-chain write steps. Construct intents only through NewSwap,
// NewAddLiquidity and NewFaucet; a zero Intent is not submittable.
type Intent struct {
	kind Kind

	// Swap
	TokenIn  TokenID
	AmountIn *big.Int

	// AddLiquidity
	Amount0 *big.Int
	Amount1 *big.Int

	// Faucet
	Token TokenID
}

// Kind returns the intent's action kind.
func (i Intent) Kind() Kind {
	return i.kind
}

// NewSwap builds a swap intent from a user-entered decimal amount.
// Zero, negative or unparseable amounts are rejected so the intent
// is never submitted.
func NewSwap(tokenIn TokenID, amountIn string) (Intent, error) {
	amount, err := ParseAmount(amountIn)
	if err != nil {
		return Intent{}, fmt.Errorf("invalid swap amount: %w", err)
	}

	return Intent{
		kind:     KindSwap,
		TokenIn:  tokenIn,
		AmountIn: amount,
	}, nil
}

// NewAddLiquidity builds an add-liquidity intent. Both amounts must be
// strictly positive.
func NewAddLiquidity(amount0, amount1 string) (Intent, error) {
	a0, err := ParseAmount(amount0)
	if err != nil {
		return Intent{}, fmt.Errorf("invalid token0 amount: %w", err)
	}
	a1, err := ParseAmount(amount1)
	if err != nil {
		return Intent{}, fmt.Errorf("invalid token1 amount: %w", err)
	}

	return Intent{
		kind:    KindAddLiquidity,
		Amount0: a0,
		Amount1: a1,
	}, nil
}

// NewFaucet builds a faucet intent for the given token. Faucet mints a
// fixed contract-side amount, so there is nothing to validate.
func NewFaucet(token TokenID) Intent {
	return Intent{
		kind:  KindFaucet,
		Token: token,
	}
}
