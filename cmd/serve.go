package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"defi-hub/pkg/dashboard"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard state over a local HTTP API",
	Long: `Run a local HTTP server exposing the dashboard read model and
intent submission endpoints:

  GET  /api/v1/state
  GET  /api/v1/orchestration
  POST /api/v1/intents/swap       {"token":"TKNA","amount":"10"}
  POST /api/v1/intents/liquidity  {"amount0":"5","amount1":"7"}
  POST /api/v1/intents/faucet     {"token":"TKNB"}

While an orchestration is running, intent submissions answer 409.

Examples:
  defi-hub serve
  defi-hub serve --listen 127.0.0.1:9000`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (defaults to configuration)")
}

func runServe(cmd *cobra.Command, args []string) {
	h, client, cfg, err := openHub(false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	h.RefetchAll(ctx)
	cancel()

	addr := listenAddr
	if addr == "" {
		addr = cfg.Listen
	}

	server := dashboard.NewServer(h, cfg.PointsDecimals)
	if err := server.ListenAndServe(addr); err != nil {
		printError(err)
		os.Exit(1)
	}
}
