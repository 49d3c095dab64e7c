// Package chain abstracts the on-chain client the rest of the system
// consumes: read-only contract calls and mined write transactions.
package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned by Write when the transaction was mined but
// the contract-side execution failed.
var ErrReverted = errors.New("transaction reverted on-chain")

// ErrNoSigner is returned by Write when the client was opened without a
// private key and cannot submit transactions.
var ErrNoSigner = errors.New("no signing key configured")

// Reader performs read-only contract calls.
type Reader interface {
	Read(ctx context.Context, contract common.Address, method string, args ...interface{}) ([]interface{}, error)
}

// Writer submits a contract write and blocks until it is mined or fails.
// A nil error means the write is confirmed on-chain; callers rely on this
// to sequence dependent steps.
type Writer interface {
	Write(ctx context.Context, contract common.Address, method string, args ...interface{}) (*types.Receipt, error)
}

// Client is the full surface the hub wires against. Register associates a
// contract address with its ABI so Read and Write can pack arguments.
type Client interface {
	Reader
	Writer
	Register(contract common.Address, contractABI abi.ABI)
}
