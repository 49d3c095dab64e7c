package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"defi-hub/pkg/intent"
	"defi-hub/pkg/orchestrator"
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token>",
	Short: "Swap one pool token for the other",
	Long: `Swap an amount of one pool token for the other through the AMM.

The swap runs as two dependent on-chain steps: the pool is first
approved to spend the input amount, and the swap itself is submitted
only after the approval is confirmed. Balances, reserves and points are
refreshed once the swap settles.

Examples:
  defi-hub swap 10 TKNA
  defi-hub swap 0.5 TKNB`,
	Args: cobra.ExactArgs(2),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
}

func runSwap(cmd *cobra.Command, args []string) {
	amount := args[0]
	tokenIn, err := intent.ParseTokenID(args[1])
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
	s.Suffix = fmt.Sprintf(" Swapping %s %s...", amount, tokenIn)
	s.Start()

	result, err := h.SubmitSwap(context.Background(), tokenIn, amount)
	s.Stop()

	finishIntent(result, err)
}

// finishIntent reports the orchestration outcome to the user.
func finishIntent(result *orchestrator.Result, err error) {
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	switch result.Outcome {
	case orchestrator.OutcomeSuccess:
		color.Green("\nConfirmed in %d steps (orchestration %s)\n", result.Steps, result.ID)
	case orchestrator.OutcomeCancelled:
		color.Yellow("\nCancelled: %v\n", result.Err)
		os.Exit(1)
	default:
		color.Red("\nFailed: %v\n", result.Err)
		os.Exit(1)
	}
}
