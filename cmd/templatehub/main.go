package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "templatehub",
	Short: "Templatehub - deployable script-template bundle server",
	Long: `Templatehub manages versioned script-template bundles: it stores
downloaded archives, unpacks them asynchronously onto disk, tracks the
extraction lifecycle, and reconciles recorded state with on-disk evidence.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
