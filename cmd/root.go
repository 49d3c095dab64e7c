package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"defi-hub/config"
	"defi-hub/pkg/chain"
	"defi-hub/pkg/hub"
)

var rootCmd = &cobra.Command{
	Use:   "defi-hub",
	Short: "A CLI and local dashboard for a two-token AMM deployment",
	Long: `defi-hub connects a wallet to a two-token AMM deployment and lets you
inspect balances, pool reserves, the dynamic fee and swap points, and
submit swap, add-liquidity and faucet transactions.

Writes are multi-step: approvals are confirmed on-chain before the pool
call is submitted, and cached read state is refreshed after a settle
delay once the final step confirms.

Examples:
  defi-hub dashboard
  defi-hub swap 10 TKNA
  defi-hub add-liquidity 5 7
  defi-hub faucet TKNB
  defi-hub serve`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

// openHub dials the configured RPC endpoint, wires a hub over it and
// connects the signing account if a private key is configured.
func openHub(requireSigner bool) (*hub.Hub, *chain.EVMClient, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := chain.Dial(cfg.RPCURL, cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return nil, nil, nil, err
	}

	h, err := hub.New(cfg, client)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	account, ok := client.Account()
	if ok {
		h.Connect(account)
	} else if requireSigner {
		client.Close()
		return nil, nil, nil, fmt.Errorf("no private key configured; set DEFI_HUB_PRIVATE_KEY")
	}

	return h, client, cfg, nil
}
