package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var liquidityCmd = &cobra.Command{
	Use:   "add-liquidity <amount0> <amount1>",
	Short: "Add liquidity to the pool",
	Long: `Deposit both pool tokens into the AMM.

Three dependent on-chain steps run in order: approve the pool for the
TKNA amount, approve it for the TKNB amount, then call addLiquidity.
Each step waits for the previous step's confirmation.

Examples:
  defi-hub add-liquidity 5 7`,
	Args: cobra.ExactArgs(2),
	Run:  runAddLiquidity,
}

func init() {
	rootCmd.AddCommand(liquidityCmd)
}

func runAddLiquidity(cmd *cobra.Command, args []string) {
	amount0, amount1 := args[0], args[1]

	h, client, _, err := openHub(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer client.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Adding %s TKNA / %s TKNB liquidity...", amount0, amount1)
	s.Start()

	result, err := h.SubmitAddLiquidity(context.Background(), amount0, amount1)
	s.Stop()

	finishIntent(result, err)
}
