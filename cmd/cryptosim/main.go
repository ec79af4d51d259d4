package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cryptosim",
	Short: "A paper-trading simulator for cryptocurrencies",
	Long: `Cryptosim streams live prices from Kraken and lets you buy and sell
against them with a simulated USD balance.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
