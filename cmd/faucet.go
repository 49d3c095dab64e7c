package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"defi-hub/pkg/intent"
)

var faucetCmd = &cobra.Command{
	Use:   "faucet <token>",
	Short: "Mint test tokens from the token faucet",
	Long: `Call the token contract's faucet, minting a fixed amount of test
tokens to your account. Balances are refreshed once the mint settles.

Examples:
  defi-hub faucet TKNA
  defi-hub faucet TKNB`,
	Args: cobra.ExactArgs(1),
	Run:  runFaucet,
}

func init() {
	rootCmd.AddCommand(faucetCmd)
}

func runFaucet(cmd *cobra.Command, args []string) {
	token, err := intent.ParseTokenID(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	h, client, _, err := openHub(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer client.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Requesting %s from the faucet...", token)
	s.Start()

	result, err := h.SubmitFaucet(context.Background(), token)
	s.Stop()

	finishIntent(result, err)
}
