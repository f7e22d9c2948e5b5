// Package main provides the command-line interface for Prism.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "prism",
	Short: "Prism CLI tool builds demonstration fabrics and inserts " +
		"programming circuitry into them.",
	Long: `Prism CLI tool builds demonstration fabrics and inserts ` +
		`programming circuitry into them. Currently, it supports the ` +
		`scanchain, frame, and pktchain protocols.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
