package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"defi-hub/pkg/hub"
	"defi-hub/pkg/intent"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show balances, reserves, fee, points and position",
	Long: `Read the full dashboard state from the chain: your token balances,
the pool reserves, the current dynamic fee, your swap points and your
optimized liquidity position.

Examples:
  defi-hub dashboard
  defi-hub dashboard --json`,
	Run: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	h, client, cfg, err := openHub(false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer client.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Reading on-chain state..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	h.RefetchAll(ctx)

	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		printDashboardJSON(h, cfg.PointsDecimals)
		return
	}

	fmt.Println()
	color.New(color.Bold).Println("DeFi Hub")

	if account, ok := h.Session.Account(); ok {
		fmt.Printf("  Account:       %s\n", account.Hex())
	} else {
		fmt.Println("  Account:       not connected (read-only)")
	}

	if fee, ok := h.Fee(); ok {
		feePct := intent.FormatAmount(fee, 2, 2)
		if feePct == "0.30" {
			fmt.Printf("  AMM fee:       %s%%\n", feePct)
		} else {
			color.Yellow("  AMM fee:       %s%% (high volatility)", feePct)
		}
	} else {
		fmt.Println("  AMM fee:       unknown")
	}

	fmt.Println()
	color.Cyan("  Balances")
	balance0, ok0 := h.Balance(intent.Token0)
	balance1, ok1 := h.Balance(intent.Token1)
	printAmountLine("TKNA", balance0, ok0)
	printAmountLine("TKNB", balance1, ok1)

	fmt.Println()
	color.Cyan("  Pool reserves")
	if r0, r1, ok := h.Reserves(); ok {
		fmt.Printf("    TKNA:        %s\n", intent.FormatAmount(r0, intent.TokenDecimals, 2))
		fmt.Printf("    TKNB:        %s\n", intent.FormatAmount(r1, intent.TokenDecimals, 2))
	} else {
		fmt.Println("    unknown")
	}

	fmt.Println()
	color.Cyan("  Rewards")
	if points, ok := h.Points(); ok {
		fmt.Printf("    Points:      %s PTS\n", intent.FormatAmount(points, cfg.PointsDecimals, 2))
	} else {
		fmt.Println("    Points:      --")
	}
	if position, ok := h.Position(); ok {
		fmt.Printf("    Shares TKNA: %s\n", position.Shares0.String())
		fmt.Printf("    Shares TKNB: %s\n", position.Shares1.String())
	} else {
		fmt.Println("    Shares:      --")
	}
	fmt.Println()
}

func printAmountLine(symbol string, raw *big.Int, ok bool) {
	if !ok {
		fmt.Printf("    %s:        --\n", symbol)
		return
	}
	fmt.Printf("    %s:        %s\n", symbol, intent.FormatAmount(raw, intent.TokenDecimals, 2))
}

func printDashboardJSON(h *hub.Hub, pointsDecimals int) {
	output := make(map[string]interface{})

	if account, ok := h.Session.Account(); ok {
		output["account"] = account.Hex()
	}
	if balance0, ok := h.Balance(intent.Token0); ok {
		output["balance0"] = intent.FormatAmount(balance0, intent.TokenDecimals, 2)
	}
	if balance1, ok := h.Balance(intent.Token1); ok {
		output["balance1"] = intent.FormatAmount(balance1, intent.TokenDecimals, 2)
	}
	if r0, r1, ok := h.Reserves(); ok {
		output["reserve0"] = intent.FormatAmount(r0, intent.TokenDecimals, 2)
		output["reserve1"] = intent.FormatAmount(r1, intent.TokenDecimals, 2)
	}
	if fee, ok := h.Fee(); ok {
		output["fee_pct"] = intent.FormatAmount(fee, 2, 2)
	}
	if points, ok := h.Points(); ok {
		output["points"] = intent.FormatAmount(points, pointsDecimals, 2)
	}
	if position, ok := h.Position(); ok {
		output["shares0"] = position.Shares0.String()
		output["shares1"] = position.Shares1.String()
	}

	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}
