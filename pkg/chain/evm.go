package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMClient talks to an EVM node over JSON-RPC. Reads go through
// eth_call; writes are signed locally, submitted and awaited until mined.
type EVMClient struct {
	client     *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	from       common.Address

	mu   sync.Mutex // serializes nonce assignment across writes
	abis map[common.Address]abi.ABI
}

// Dial connects to the RPC endpoint. privateKeyHex may be empty for a
// read-only client; Write then fails with ErrNoSigner.
func Dial(rpcURL, privateKeyHex string, chainID int64) (*EVMClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c := &EVMClient{
		client:  client,
		chainID: big.NewInt(chainID),
		abis:    make(map[common.Address]abi.ABI),
	}

	if privateKeyHex != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("failed to derive public key")
		}
		c.privateKey = privateKey
		c.from = crypto.PubkeyToAddress(*publicKey)
	}

	return c, nil
}

// Register associates a contract address with its ABI.
func (c *EVMClient) Register(contract common.Address, contractABI abi.ABI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abis[contract] = contractABI
}

// Account returns the address controlled by the signing key, if any.
func (c *EVMClient) Account() (common.Address, bool) {
	return c.from, c.privateKey != nil
}

// Read performs an eth_call against the contract and unpacks the result.
func (c *EVMClient) Read(ctx context.Context, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	contractABI, err := c.abiFor(contract)
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}
	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}

	return out, nil
}

// Write signs and submits a contract call, then waits for it to be mined.
// A mined-but-reverted transaction returns ErrReverted.
func (c *EVMClient) Write(ctx context.Context, contract common.Address, method string, args ...interface{}) (*types.Receipt, error) {
	if c.privateKey == nil {
		return nil, ErrNoSigner
	}

	contractABI, err := c.abiFor(contract)
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	signedTx, err := c.buildAndSign(ctx, contract, data)
	if err != nil {
		return nil, err
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s confirmation: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s (tx %s): %w", method, signedTx.Hash().Hex(), ErrReverted)
	}

	return receipt, nil
}

// buildAndSign assigns a nonce, estimates gas and signs the transaction.
// Nonce assignment is serialized so back-to-back writes do not collide.
func (c *EVMClient) buildAndSign(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := uint64(300000)
	msg := ethereum.CallMsg{
		From: c.from,
		To:   &contract,
		Data: data,
	}
	if estimated, err := c.client.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100
	}

	tx := types.NewTransaction(nonce, contract, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}

func (c *EVMClient) abiFor(contract common.Address) (abi.ABI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contractABI, ok := c.abis[contract]
	if !ok {
		return abi.ABI{}, fmt.Errorf("no ABI registered for contract %s", contract.Hex())
	}
	return contractABI, nil
}

// Close closes the underlying RPC connection.
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
