package orchestrator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"defi-hub/pkg/contracts"
	"defi-hub/pkg/intent"
)

// Step is one atomic on-chain write within an intent's execution plan.
// Steps run strictly in submission order; step N+1 waits for step N's
// confirmation.
type Step struct {
	Contract common.Address
	Method   string
	Args     []interface{}
}

// ExpandSteps translates an intent into its fixed step sequence:
//
//	Faucet        → mint-to-caller on the token contract.
//	Swap          → approve the pool for amountIn, then swap.
//	AddLiquidity  → approve token0, approve token1, then addLiquidity.
//
// Approvals always precede the pool call: a swap or add-liquidity
// executed before its allowance is on-chain would be rejected by the
// contract, or race with a stale allowance.
func ExpandSteps(it intent.Intent, book contracts.AddressBook) ([]Step, error) {
	switch it.Kind() {
	case intent.KindFaucet:
		return []Step{
			{Contract: book.Token(it.Token), Method: contracts.MethodFaucet},
		}, nil

	case intent.KindSwap:
		if it.AmountIn == nil || it.AmountIn.Sign() <= 0 {
			return nil, fmt.Errorf("swap amount must be greater than 0")
		}
		tokenIn := book.Token(it.TokenIn)
		return []Step{
			{Contract: tokenIn, Method: contracts.MethodApprove, Args: []interface{}{book.AMM, it.AmountIn}},
			{Contract: book.AMM, Method: contracts.MethodSwap, Args: []interface{}{tokenIn, it.AmountIn}},
		}, nil

	case intent.KindAddLiquidity:
		if it.Amount0 == nil || it.Amount0.Sign() <= 0 || it.Amount1 == nil || it.Amount1.Sign() <= 0 {
			return nil, fmt.Errorf("liquidity amounts must be greater than 0")
		}
		return []Step{
			{Contract: book.Token0, Method: contracts.MethodApprove, Args: []interface{}{book.AMM, it.Amount0}},
			{Contract: book.Token1, Method: contracts.MethodApprove, Args: []interface{}{book.AMM, it.Amount1}},
			{Contract: book.AMM, Method: contracts.MethodAddLiquidity, Args: []interface{}{it.Amount0, it.Amount1}},
		}, nil

	default:
		return nil, fmt.Errorf("unknown intent kind: %d", it.Kind())
	}
}
