// Package contracts holds the ABI surface of the deployed contract set:
// the two pool tokens, the AMM, the dynamic-fee/points hook and the
// position manager. All chain reads and writes go through these method
// names and parsed ABIs.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"defi-hub/pkg/intent"
)

const erc20ABI = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"faucet","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
]`

const ammABI = `[
	{"type":"function","name":"swap","inputs":[{"name":"_tokenIn","type":"address"},{"name":"_amountIn","type":"uint256"}],"outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"addLiquidity","inputs":[{"name":"_amount0","type":"uint256"},{"name":"_amount1","type":"uint256"}],"outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"reserve0","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"reserve1","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const hookABI = `[
	{"type":"function","name":"getDynamicFee","inputs":[],"outputs":[{"name":"fee","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const positionManagerABI = `[
	{"type":"function","name":"getOptimizedPosition","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"sharesA","type":"uint128"},{"name":"sharesB","type":"uint128"}],"stateMutability":"view"}
]`

// Contract method names.
const (
	MethodBalanceOf    = "balanceOf"
	MethodApprove      = "approve"
	MethodFaucet       = "faucet"
	MethodSwap         = "swap"
	MethodAddLiquidity = "addLiquidity"
	MethodReserve0     = "reserve0"
	MethodReserve1     = "reserve1"
	MethodDynamicFee   = "getDynamicFee"
	MethodPosition     = "getOptimizedPosition"
)

// PointsTokenID is the ERC-1155 id under which swap points are tracked.
var PointsTokenID = big.NewInt(1)

// Parsed ABIs for the deployed contract set.
var (
	ERC20           abi.ABI
	AMM             abi.ABI
	Hook            abi.ABI
	PositionManager abi.ABI
)

func init() {
	ERC20 = mustParseABI(erc20ABI)
	AMM = mustParseABI(ammABI)
	Hook = mustParseABI(hookABI)
	PositionManager = mustParseABI(positionManagerABI)
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// AddressBook holds the deployed addresses of the contract set.
type AddressBook struct {
	Token0          common.Address
	Token1          common.Address
	AMM             common.Address
	Hook            common.Address
	PositionManager common.Address
}

// Token returns the address of the given pool token.
func (b AddressBook) Token(id intent.TokenID) common.Address {
	if id == intent.Token0 {
		return b.Token0
	}
	return b.Token1
}

// Position is the decoded result of getOptimizedPosition. The contract
// packs both uint128 share counts into one storage slot; they are decoded
// into a typed structure once, at the read boundary.
type Position struct {
	Shares0 *big.Int `json:"shares0"`
	Shares1 *big.Int `json:"shares1"`
}

// DecodePosition converts the raw multi-value output of
// getOptimizedPosition into a Position.
func DecodePosition(out []interface{}) (Position, error) {
	if len(out) != 2 {
		return Position{}, fmt.Errorf("getOptimizedPosition returned %d values, want 2", len(out))
	}
	shares0, ok := out[0].(*big.Int)
	if !ok {
		return Position{}, fmt.Errorf("sharesA has unexpected type %T", out[0])
	}
	shares1, ok := out[1].(*big.Int)
	if !ok {
		return Position{}, fmt.Errorf("sharesB has unexpected type %T", out[1])
	}
	return Position{Shares0: shares0, Shares1: shares1}, nil
}

// DecodeUint256 converts a single-value read result into a *big.Int.
func DecodeUint256(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("read returned %d values, want 1", len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("read result has unexpected type %T", out[0])
	}
	return value, nil
}
